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
	merrors "github.com/hostmosaic/mosaic/errors"
)

// Built-in lifecycle action types. A domain that declares them accepts the
// corresponding lifecycle commands; every other action type is custom.
const (
	// ActionLoad asks a domain to load an extension's fragment without
	// mounting it.
	ActionLoad = "load"
	// ActionMount asks a domain to mount an extension.
	ActionMount = "mount"
	// ActionUnmount asks a domain to unmount an extension.
	ActionUnmount = "unmount"
)

// ActionKind is the closed variant over the built-in lifecycle actions.
type ActionKind int

const (
	// KindCustom marks any action type outside the built-in set.
	KindCustom ActionKind = iota
	// KindLoad marks the built-in load action.
	KindLoad
	// KindMount marks the built-in mount action.
	KindMount
	// KindUnmount marks the built-in unmount action.
	KindUnmount
)

var builtinActions = map[string]ActionKind{
	ActionLoad:    KindLoad,
	ActionMount:   KindMount,
	ActionUnmount: KindUnmount,
}

// KindOf classifies an action type.
func KindOf(actionType string) ActionKind {
	if kind, ok := builtinActions[actionType]; ok {
		return kind
	}
	return KindCustom
}

// IsBuiltinAction reports whether the action type is one of the built-in
// lifecycle actions.
func IsBuiltinAction(actionType string) bool {
	_, ok := builtinActions[actionType]
	return ok
}

// Action is a routable typed message. Target names either a registered domain
// or a registered extension; Payload is opaque to the mediator.
type Action struct {
	Type    string
	Target  string
	Payload any
}

// ActionsChain is an action followed by optional branches executed after the
// action settles. OnSuccess runs when the action succeeds, OnFailure when it
// fails; an undeclared failure branch surfaces the failure in the result.
type ActionsChain struct {
	Action    Action
	OnSuccess *ActionsChain
	OnFailure *ActionsChain
}

// LifecyclePayload is the payload shape of the built-in lifecycle actions.
type LifecyclePayload struct {
	ExtensionID string
}

// ChainStep records one executed action of a chain.
type ChainStep struct {
	Target string
	Type   string
	Failed bool
}

// ChainResult describes the executed path of an actions chain. Completed is
// false only when a failure was left unhandled by the declared branches; the
// unhandled failure is carried in Err.
type ChainResult struct {
	Completed bool
	Path      []ChainStep
	Err       error
}

// extensionIDFromPayload extracts the extension reference a lifecycle action
// carries.
func extensionIDFromPayload(payload any) (string, error) {
	switch p := payload.(type) {
	case *LifecyclePayload:
		if p != nil && p.ExtensionID != "" {
			return p.ExtensionID, nil
		}
	case LifecyclePayload:
		if p.ExtensionID != "" {
			return p.ExtensionID, nil
		}
	case string:
		if p != "" {
			return p, nil
		}
	case map[string]any:
		if id, ok := p["extensionId"].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", merrors.ErrMissingPayload
}
