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

// Package errors defines the error taxonomy surfaced by the mosaic runtime.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDomainNotRegistered is returned when an operation references a domain
	// unknown to the registry.
	ErrDomainNotRegistered = errors.New("domain is not registered")

	// ErrDomainAlreadyRegistered is returned when registering a domain whose id
	// is already taken.
	ErrDomainAlreadyRegistered = errors.New("domain is already registered")

	// ErrExtensionNotRegistered is returned when an operation references an
	// extension unknown to the registry.
	ErrExtensionNotRegistered = errors.New("extension is not registered")

	// ErrExtensionAlreadyRegistered is returned when registering an extension
	// whose id is already taken.
	ErrExtensionAlreadyRegistered = errors.New("extension is already registered")

	// ErrEntryNotRegistered is returned when an extension references a fragment
	// contract that has not been registered yet.
	ErrEntryNotRegistered = errors.New("entry is not registered")

	// ErrEntryAlreadyRegistered is returned when registering an entry whose id
	// is already taken.
	ErrEntryAlreadyRegistered = errors.New("entry is already registered")

	// ErrPropertyNotDeclared is returned when updating a shared property the
	// owning domain never declared.
	ErrPropertyNotDeclared = errors.New("shared property is not declared by the domain")

	// ErrBridgeDisposed is returned when an operation is attempted on a bridge
	// that has been torn down.
	ErrBridgeDisposed = errors.New("bridge has been disposed")

	// ErrRegistryDisposed is returned when an operation is attempted on a
	// registry after Dispose.
	ErrRegistryDisposed = errors.New("registry has been disposed")

	// ErrNoLoaderHandlers is returned when a load is attempted before any
	// loader handler has been registered.
	ErrNoLoaderHandlers = errors.New("no loader handlers are registered")

	// ErrEntryTypeNotHandled is returned when loader handlers exist but none of
	// them accepts the entry type of the extension being loaded.
	ErrEntryTypeNotHandled = errors.New("no loader handler accepts the entry type")

	// ErrChainTargetNotFound is returned when an actions chain names a target
	// that resolves to neither a domain nor an extension handler.
	ErrChainTargetNotFound = errors.New("actions chain target is not registered")

	// ErrActionTimeout indicates that an action was not settled within the
	// effective timeout. The underlying handler work is not canceled.
	ErrActionTimeout = errors.New("action timed out")

	// ErrActionNotAllowed is returned when an action type is rejected by the
	// contract of the entity it targets.
	ErrActionNotAllowed = errors.New("action type is not allowed by the contract")

	// ErrActionUnhandled is returned when an action reaches a mounted fragment
	// that registered no action handler.
	ErrActionUnhandled = errors.New("no action handler registered by the fragment")

	// ErrStageNotSupported is returned when a lifecycle hook declares a stage
	// missing from the owning entity's supported-stages list.
	ErrStageNotSupported = errors.New("lifecycle stage is not supported")

	// ErrMalformedExtensionID is returned when an extension id carries an
	// instance suffix that does not follow the package naming convention.
	ErrMalformedExtensionID = errors.New("malformed extension identifier")

	// ErrTypeResolution classifies any failure coming out of the type-system
	// plugin, including panics and plugin-internal errors.
	ErrTypeResolution = errors.New("type resolution error")

	// ErrNilChain is returned when a nil actions chain is submitted for
	// execution.
	ErrNilChain = errors.New("actions chain is required")

	// ErrMissingPayload is returned when a lifecycle action carries no
	// extension reference in its payload.
	ErrMissingPayload = errors.New("lifecycle action payload must reference an extension")
)

// DomainValidationError indicates that a domain record was rejected during
// registration, either by structural checks or by the type-system plugin.
type DomainValidationError struct {
	DomainID string
	Cause    error
}

func (e *DomainValidationError) Error() string {
	return fmt.Sprintf("domain=(%s) failed validation: %v", e.DomainID, e.Cause)
}

func (e *DomainValidationError) Unwrap() error {
	return e.Cause
}

// ExtensionValidationError indicates that an extension record was rejected
// during registration.
type ExtensionValidationError struct {
	ExtensionID string
	Cause       error
}

func (e *ExtensionValidationError) Error() string {
	return fmt.Sprintf("extension=(%s) failed validation: %v", e.ExtensionID, e.Cause)
}

func (e *ExtensionValidationError) Unwrap() error {
	return e.Cause
}

// ExtensionTypeError indicates that an extension's type does not descend from
// the type required by its domain.
type ExtensionTypeError struct {
	ExtensionID  string
	TypeID       string
	RequiredType string
}

func (e *ExtensionTypeError) Error() string {
	return fmt.Sprintf("extension=(%s) type=(%s) is not a subtype of=(%s)", e.ExtensionID, e.TypeID, e.RequiredType)
}

// ContractRule identifies one of the subset rules checked between an entry
// contract and its domain.
type ContractRule int

const (
	// RuleRequiredProperties requires every property the entry consumes to be
	// declared among the domain's shared properties.
	RuleRequiredProperties ContractRule = iota
	// RuleEmittedActions requires every action the entry emits to be accepted
	// by the domain.
	RuleEmittedActions
	// RuleDomainActions requires every non-lifecycle action the domain sends to
	// be handled by the entry.
	RuleDomainActions
)

// String returns the rule name.
func (r ContractRule) String() string {
	switch r {
	case RuleRequiredProperties:
		return "required-properties"
	case RuleEmittedActions:
		return "emitted-actions"
	case RuleDomainActions:
		return "domain-actions"
	default:
		return "unknown"
	}
}

// ContractViolation describes a single element breaking one contract rule.
type ContractViolation struct {
	Rule        ContractRule
	ExtensionID string
	EntryID     string
	DomainID    string
	Subject     string
}

func (v *ContractViolation) Error() string {
	switch v.Rule {
	case RuleRequiredProperties:
		return fmt.Sprintf("entry=(%s) requires property=(%s) not shared by domain=(%s)", v.EntryID, v.Subject, v.DomainID)
	case RuleEmittedActions:
		return fmt.Sprintf("entry=(%s) emits action=(%s) not accepted by domain=(%s)", v.EntryID, v.Subject, v.DomainID)
	case RuleDomainActions:
		return fmt.Sprintf("domain=(%s) sends action=(%s) not handled by entry=(%s)", v.DomainID, v.Subject, v.EntryID)
	default:
		return fmt.Sprintf("contract violation on subject=(%s)", v.Subject)
	}
}

// ContractValidationError aggregates every contract violation found between an
// entry and its domain. All rules are evaluated before the error is built.
type ContractValidationError struct {
	ExtensionID string
	Violations  []*ContractViolation
}

func (e *ContractValidationError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		messages = append(messages, violation.Error())
	}
	return fmt.Sprintf("extension=(%s) violates its contract: %s", e.ExtensionID, strings.Join(messages, "; "))
}

// ChainExecutionError indicates that the mediator could not resolve or execute
// one action of a chain.
type ChainExecutionError struct {
	Target     string
	ActionType string
	Cause      error
}

func (e *ChainExecutionError) Error() string {
	return fmt.Sprintf("action=(%s) on target=(%s) failed: %v", e.ActionType, e.Target, e.Cause)
}

func (e *ChainExecutionError) Unwrap() error {
	return e.Cause
}
