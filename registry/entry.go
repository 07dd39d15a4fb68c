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
	"github.com/hostmosaic/mosaic/internal/validation"
)

// Entry is the communication contract a fragment promises to satisfy. It must
// be registered before any extension referencing it.
type Entry struct {
	// ID uniquely identifies the contract.
	ID string
	// Type is the loader selection key, e.g. the bundling technology of the
	// fragment. Loader handlers advertise which types they can load.
	Type string
	// RequiredProperties lists the shared-property ids the fragment consumes
	// and cannot operate without.
	RequiredProperties []string
	// OptionalProperties lists shared-property ids the fragment consumes
	// opportunistically.
	OptionalProperties []string
	// EmittedActions lists the action types the fragment may emit towards its
	// domain.
	EmittedActions []string
	// DomainActions lists the action types the fragment can receive from its
	// domain.
	DomainActions []string
}

// Validate checks the structural integrity of the entry record.
func (e *Entry) Validate() error {
	return validation.
		New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("entry.ID", e.ID)).
		AddValidator(validation.NewEmptyStringValidator("entry.Type", e.Type)).
		Validate()
}
