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

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainValidationError(t *testing.T) {
	err := &DomainValidationError{DomainID: "sidebar", Cause: ErrDomainAlreadyRegistered}
	assert.Contains(t, err.Error(), "sidebar")
	require.True(t, stderrors.Is(err, ErrDomainAlreadyRegistered))
}

func TestExtensionValidationError(t *testing.T) {
	cause := fmt.Errorf("bad id: %w", ErrMalformedExtensionID)
	err := &ExtensionValidationError{ExtensionID: "e1", Cause: cause}
	assert.Contains(t, err.Error(), "e1")
	require.True(t, stderrors.Is(err, ErrMalformedExtensionID))
}

func TestContractRuleString(t *testing.T) {
	assert.Equal(t, "required-properties", RuleRequiredProperties.String())
	assert.Equal(t, "emitted-actions", RuleEmittedActions.String())
	assert.Equal(t, "domain-actions", RuleDomainActions.String())
	assert.Equal(t, "unknown", ContractRule(42).String())
}

func TestContractValidationError(t *testing.T) {
	err := &ContractValidationError{
		ExtensionID: "e1",
		Violations: []*ContractViolation{
			{Rule: RuleRequiredProperties, EntryID: "widget", DomainID: "sidebar", Subject: "theme"},
			{Rule: RuleEmittedActions, EntryID: "widget", DomainID: "sidebar", Subject: "navigate"},
			{Rule: RuleDomainActions, EntryID: "widget", DomainID: "sidebar", Subject: "refresh"},
		},
	}
	message := err.Error()
	assert.Contains(t, message, "theme")
	assert.Contains(t, message, "navigate")
	assert.Contains(t, message, "refresh")
	assert.Len(t, err.Violations, 3)
}

func TestChainExecutionError(t *testing.T) {
	err := &ChainExecutionError{Target: "sidebar", ActionType: "mount", Cause: ErrChainTargetNotFound}
	assert.Contains(t, err.Error(), "sidebar")
	require.True(t, stderrors.Is(err, ErrChainTargetNotFound))
}
