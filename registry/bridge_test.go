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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/log"
)

// newBridgePair wires a pair against the rig's manager and mediator without
// going through the mount machinery.
func newBridgePair(rig *testRig, extension *Extension, entry *Entry) (*ParentBridge, *ChildBridge) {
	factory := newBridgeFactory(rig.manager, rig.mediator, log.DiscardLogger)
	return factory.NewPair(extension, entry)
}

func TestBridgeInboundDelivery(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	entry := widgetEntry("widget")
	entry.DomainActions = []string{"refresh"}
	extension := widgetExtension("e1", "sidebar", "widget")
	parent, child := newBridgePair(rig, extension, entry)

	ctx := context.TODO()

	// no handler registered yet
	err := parent.SendActionsChain(ctx, &ActionsChain{Action: Action{Type: "refresh", Target: "e1"}})
	assert.ErrorIs(t, err, merrors.ErrActionUnhandled)

	received := make([]string, 0, 2)
	require.NoError(t, child.RegisterActionHandler(ActionHandlerFunc(
		func(_ context.Context, actionType string, _ any) (any, error) {
			received = append(received, actionType)
			return nil, nil
		})))

	require.NoError(t, parent.SendActionsChain(ctx, &ActionsChain{Action: Action{Type: "refresh", Target: "e1"}}))
	assert.Equal(t, []string{"refresh"}, received)

	// undeclared inbound actions are rejected by contract
	err = parent.SendActionsChain(ctx, &ActionsChain{Action: Action{Type: "zoom", Target: "e1"}})
	assert.ErrorIs(t, err, merrors.ErrActionNotAllowed)
}

func TestBridgeSendChainBranches(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	entry := widgetEntry("widget")
	entry.DomainActions = []string{"refresh", "reset"}
	parent, child := newBridgePair(rig, widgetExtension("e1", "sidebar", "widget"), entry)

	received := make([]string, 0, 2)
	require.NoError(t, child.RegisterActionHandler(ActionHandlerFunc(
		func(_ context.Context, actionType string, _ any) (any, error) {
			received = append(received, actionType)
			if actionType == "refresh" {
				return nil, errors.New("stale")
			}
			return nil, nil
		})))

	chain := &ActionsChain{
		Action:    Action{Type: "refresh", Target: "e1"},
		OnFailure: &ActionsChain{Action: Action{Type: "reset", Target: "e1"}},
	}
	require.NoError(t, parent.SendActionsChain(context.TODO(), chain))
	assert.Equal(t, []string{"refresh", "reset"}, received)
}

func TestChildEmitPolicy(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	host := new(recordingHandler)
	rig.mediator.registerDomainHandler("sidebar", host)

	entry := widgetEntry("widget")
	_, child := newBridgePair(rig, widgetExtension("e1", "sidebar", "widget"), entry)

	ctx := context.TODO()
	result, err := child.EmitActionsChain(ctx, &ActionsChain{Action: Action{Type: "notify", Target: "sidebar"}})
	require.NoError(t, err)
	require.True(t, result.Completed)
	assert.Len(t, host.actions(), 1)

	// emitting an undeclared action type is rejected before routing
	_, err = child.EmitActionsChain(ctx, &ActionsChain{Action: Action{Type: "hijack", Target: "sidebar"}})
	assert.ErrorIs(t, err, merrors.ErrActionNotAllowed)

	_, err = child.EmitActionsChain(ctx, nil)
	assert.ErrorIs(t, err, merrors.ErrNilChain)
}

func TestBridgePropertyFlow(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	parent, child := newBridgePair(rig, widgetExtension("e1", "sidebar", "widget"), widgetEntry("widget"))

	var seen []string
	detach, err := child.SubscribeToProperty("theme", func(propertyID string, value any) {
		seen = append(seen, propertyID+"="+value.(string))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, parent.PropertySubscribers())

	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "dark"))
	assert.Equal(t, []string{"theme=dark"}, seen)

	// the update is readable synchronously through the child
	value, found, err := child.GetProperty("theme")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dark", value)

	// wildcard subscribers observe every property
	var all []string
	_, err = child.SubscribeToProperty(PropertyWildcard, func(propertyID string, _ any) {
		all = append(all, propertyID)
	})
	require.NoError(t, err)
	require.NoError(t, rig.manager.updateProperty("sidebar", "locale", "fr"))
	assert.Equal(t, []string{"locale"}, all)

	// specific and wildcard subscribers each see one delivery per update
	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "darker"))
	assert.Equal(t, []string{"theme=dark", "theme=darker"}, seen)
	assert.Equal(t, []string{"locale", "theme"}, all)

	// the last detach for a property unwires the domain-side forwarding
	detach()
	assert.Equal(t, []string{PropertyWildcard}, parent.PropertySubscribers())
	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "light"))
	assert.Equal(t, []string{"theme=dark", "theme=darker"}, seen)
	assert.Equal(t, []string{"locale", "theme", "theme"}, all)

	// resubscribing rewires a single delivery per update
	var again []string
	_, err = child.SubscribeToProperty("theme", func(_ string, value any) {
		again = append(again, value.(string))
	})
	require.NoError(t, err)
	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "dim"))
	assert.Equal(t, []string{"dim"}, again)
}

func TestBridgeDispose(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	entry := widgetEntry("widget")
	entry.DomainActions = []string{"refresh"}
	parent, child := newBridgePair(rig, widgetExtension("e1", "sidebar", "widget"), entry)

	var updates int
	_, err := child.SubscribeToProperty("theme", func(string, any) { updates++ })
	require.NoError(t, err)
	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "dark"))
	require.Equal(t, 1, updates)

	parent.Dispose()
	parent.Dispose() // idempotent

	// domain subscriptions are detached, deliveries are dropped silently
	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "light"))
	assert.Equal(t, 1, updates)
	parent.ReceivePropertyUpdate("theme", "light")
	assert.Equal(t, 1, updates)

	ctx := context.TODO()
	err = parent.SendActionsChain(ctx, &ActionsChain{Action: Action{Type: "refresh", Target: "e1"}})
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
	assert.ErrorIs(t, parent.RegisterPropertySubscriber("theme"), merrors.ErrBridgeDisposed)

	_, err = child.EmitActionsChain(ctx, &ActionsChain{Action: Action{Type: "notify", Target: "sidebar"}})
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
	_, _, err = child.GetProperty("theme")
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
	_, err = child.SubscribeToProperty("theme", func(string, any) {})
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
	assert.ErrorIs(t, child.RegisterActionHandler(nil), merrors.ErrBridgeDisposed)
}

func TestChildBridgeDispose(t *testing.T) {
	rig := newTestRig()
	require.NoError(t, rig.manager.registerDomain(toggleDomain("sidebar"), new(staticContainers)))

	parent, child := newBridgePair(rig, widgetExtension("e1", "sidebar", "widget"), widgetEntry("widget"))

	var updates int
	_, err := child.SubscribeToProperty("theme", func(string, any) { updates++ })
	require.NoError(t, err)

	// disposal from the fragment side tears down both halves
	child.Dispose()
	child.Dispose() // idempotent
	parent.Dispose()

	require.NoError(t, rig.manager.updateProperty("sidebar", "theme", "dark"))
	assert.Equal(t, 0, updates)

	err = parent.SendActionsChain(context.TODO(), &ActionsChain{Action: Action{Type: "refresh", Target: "e1"}})
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
	_, _, err = child.GetProperty("theme")
	assert.ErrorIs(t, err, merrors.ErrBridgeDisposed)
}
