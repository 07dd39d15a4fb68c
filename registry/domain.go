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
	"slices"
	"time"

	"github.com/hostmosaic/mosaic/internal/validation"
)

// Domain is a named insertion point where extensions can be mounted.
type Domain struct {
	// ID uniquely identifies the domain across the registry.
	ID string
	// Actions lists the inbound action types the domain accepts, the built-in
	// lifecycle actions included. A domain that omits ActionUnmount has swap
	// mount semantics: mounting a new extension implicitly unmounts the
	// current occupant.
	Actions []string
	// ExtensionsActions lists the action types extensions of this domain may
	// emit towards it.
	ExtensionsActions []string
	// SharedProperties declares the property ids the domain broadcasts to its
	// extensions.
	SharedProperties []string
	// RequiredExtensionType optionally constrains the type ancestry of
	// extensions registered into the domain.
	RequiredExtensionType string
	// UIMetadataSchema optionally names the schema presentation metadata of
	// extensions must satisfy.
	UIMetadataSchema string
	// DefaultActionTimeout bounds how long the mediator waits for an action
	// targeting this domain to settle. Zero disables the timeout.
	DefaultActionTimeout time.Duration
	// LifecycleStages lists the domain's own supported stages beyond the
	// built-in ones.
	LifecycleStages []string
	// ExtensionsLifecycleStages lists the stages supported for extensions of
	// this domain beyond the built-in ones.
	ExtensionsLifecycleStages []string
	// LifecycleHooks are the domain's own stage hooks.
	LifecycleHooks []LifecycleHook
}

// AcceptsAction reports whether the domain declares the given inbound action
// type.
func (d *Domain) AcceptsAction(actionType string) bool {
	return slices.Contains(d.Actions, actionType)
}

// DeclaresUnmount reports whether the domain accepts the unmount action,
// which makes its mount policy toggle instead of swap.
func (d *Domain) DeclaresUnmount() bool {
	return slices.Contains(d.Actions, ActionUnmount)
}

// SupportsOwnStage reports whether the given stage may appear in the domain's
// own lifecycle hooks.
func (d *Domain) SupportsOwnStage(stage string) bool {
	return isBuiltinStage(stage) || slices.Contains(d.LifecycleStages, stage)
}

// SupportsExtensionStage reports whether the given stage may appear in the
// hooks of the domain's extensions.
func (d *Domain) SupportsExtensionStage(stage string) bool {
	return isBuiltinStage(stage) || slices.Contains(d.ExtensionsLifecycleStages, stage)
}

// Validate checks the structural integrity of the domain record.
func (d *Domain) Validate() error {
	chain := validation.
		New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("domain.ID", d.ID))
	for _, hook := range d.LifecycleHooks {
		chain.AddAssertion(hook.Chain != nil, "lifecycle hook requires an actions chain")
	}
	return chain.Validate()
}
