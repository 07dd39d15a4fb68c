// MIT License
//
// Copyright (c) 2023-2026 Mosaic Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package registry

import (
	"fmt"
	"strings"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/internal/validation"
)

// Metadata carries optional presentation hints used by hosts to render
// navigation for an extension.
type Metadata struct {
	Label string
	Route string
	Order int
}

// Extension binds a fragment contract (an Entry) into a Domain.
type Extension struct {
	// ID uniquely identifies the extension. An id of the shape
	// "name/seg1.seg2..." participates in package grouping, where the package
	// is the first two dot-segments of the instance suffix.
	ID string
	// DomainID references a registered domain.
	DomainID string
	// EntryID references a registered entry contract.
	EntryID string
	// Type optionally names the extension's type in the type system, checked
	// against the domain's RequiredExtensionType. When empty the id is used.
	Type string
	// Metadata carries optional presentation hints.
	Metadata *Metadata
	// LifecycleHooks are the extension's stage hooks.
	LifecycleHooks []LifecycleHook
}

// TypeID returns the id used for type-ancestry checks.
func (x *Extension) TypeID() string {
	if x.Type != "" {
		return x.Type
	}
	return x.ID
}

// Validate checks the structural integrity of the extension record, the
// package naming convention included.
func (x *Extension) Validate() error {
	if err := validation.
		New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("extension.ID", x.ID)).
		AddValidator(validation.NewEmptyStringValidator("extension.DomainID", x.DomainID)).
		AddValidator(validation.NewEmptyStringValidator("extension.EntryID", x.EntryID)).
		Validate(); err != nil {
		return err
	}
	_, err := PackageID(x.ID)
	return err
}

// packageSuffixPattern requires an instance suffix to open with two non-empty
// dot-segments.
const packageSuffixPattern = `^[^.]+\.[^.]+`

// PackageID derives the package grouping of an extension id. Ids without an
// instance suffix (no "/") carry no package and return the empty string. Ids
// with a suffix must have at least two non-empty dot-segments; anything else
// is malformed and rejected rather than guessed at.
func PackageID(extensionID string) (string, error) {
	slash := strings.IndexByte(extensionID, '/')
	if slash < 0 {
		return "", nil
	}
	suffix := extensionID[slash+1:]
	if err := validation.NewPatternValidator(packageSuffixPattern, suffix,
		fmt.Errorf("id=(%s): %w", extensionID, merrors.ErrMalformedExtensionID)).Validate(); err != nil {
		return "", err
	}
	segments := strings.SplitN(suffix, ".", 3)
	return segments[0] + "." + segments[1], nil
}
