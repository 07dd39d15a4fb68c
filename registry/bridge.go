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
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/log"
)

// BridgeFactory constructs a connected bridge pair for one mount. A fresh
// pair is built per mount and disposed on unmount.
type BridgeFactory interface {
	NewPair(extension *Extension, entry *Entry) (*ParentBridge, *ChildBridge)
}

// defaultBridgeFactory builds bridges wired to the registry's manager and
// mediator.
type defaultBridgeFactory struct {
	logger   log.Logger
	manager  *manager
	mediator *mediator
}

var _ BridgeFactory = (*defaultBridgeFactory)(nil)

func newBridgeFactory(manager *manager, mediator *mediator, logger log.Logger) *defaultBridgeFactory {
	return &defaultBridgeFactory{
		logger:   logger,
		manager:  manager,
		mediator: mediator,
	}
}

// NewPair builds both halves and connects them. Neither half reaches into the
// other's internals; they interact only through the methods wired here.
func (f *defaultBridgeFactory) NewPair(extension *Extension, entry *Entry) (*ParentBridge, *ChildBridge) {
	parent := &ParentBridge{
		id:          uuid.NewString(),
		logger:      f.logger,
		extensionID: extension.ID,
		domainID:    extension.DomainID,
		manager:     f.manager,
		mediator:    f.mediator,
	}
	child := &ChildBridge{
		extensionID:   extension.ID,
		entry:         entry,
		subscriptions: make(map[string][]*childSubscription),
	}
	connect(parent, child)
	return parent, child
}

// connect wires the mutual references of a freshly built pair.
func connect(parent *ParentBridge, child *ChildBridge) {
	parent.child = child
	child.parent = parent
}

// ParentBridge is the host-side half of the pair. It forwards shared-property
// changes and domain actions down to the fragment, and routes the fragment's
// outbound chains into the mediator.
type ParentBridge struct {
	id          string
	logger      log.Logger
	extensionID string
	domainID    string
	manager     *manager
	mediator    *mediator
	child       *ChildBridge

	mu            sync.Mutex
	subscriptions []*propertySubscription

	disposed atomic.Bool
}

// ID returns the bridge instance identifier.
func (p *ParentBridge) ID() string {
	return p.id
}

// ExtensionID returns the extension this bridge belongs to.
func (p *ParentBridge) ExtensionID() string {
	return p.extensionID
}

// SendActionsChain delivers a chain to the fragment's registered handler and
// awaits its settlement, following success/failure branches against the same
// fragment.
func (p *ParentBridge) SendActionsChain(ctx context.Context, chain *ActionsChain) error {
	if p.disposed.Load() {
		return merrors.ErrBridgeDisposed
	}
	if chain == nil {
		return merrors.ErrNilChain
	}
	if err := p.deliverAction(ctx, chain.Action); err != nil {
		if chain.OnFailure != nil {
			return p.SendActionsChain(ctx, chain.OnFailure)
		}
		return err
	}
	if chain.OnSuccess != nil {
		return p.SendActionsChain(ctx, chain.OnSuccess)
	}
	return nil
}

// ReceivePropertyUpdate forwards a shared-property change to the fragment.
// Deliveries against a disposed pair are dropped silently so teardown does
// not cascade failures.
func (p *ParentBridge) ReceivePropertyUpdate(propertyID string, value any) {
	if p.disposed.Load() {
		return
	}
	p.child.receiveProperty(propertyID, value)
}

// RegisterPropertySubscriber attaches this bridge to the domain's subscriber
// set for the given property id (or the wildcard), forwarding every update to
// the fragment callbacks registered under that same id. The subscription is
// detached on disposal.
func (p *ParentBridge) RegisterPropertySubscriber(propertyID string) error {
	if p.disposed.Load() {
		return merrors.ErrBridgeDisposed
	}
	// each domain subscription feeds exactly one child bucket so a fragment
	// holding both a specific and a wildcard callback sees one delivery each
	subscription, err := p.manager.subscribeProperty(p.domainID, propertyID,
		func(updatedID string, value any) {
			p.deliverProperty(propertyID, updatedID, value)
		})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.subscriptions = append(p.subscriptions, subscription)
	p.mu.Unlock()
	return nil
}

// unregisterPropertySubscriber detaches the domain subscription feeding the
// given bucket once no fragment callback remains under it.
func (p *ParentBridge) unregisterPropertySubscriber(propertyID string) {
	if p.disposed.Load() {
		return
	}
	p.mu.Lock()
	index := slices.IndexFunc(p.subscriptions, func(s *propertySubscription) bool {
		return s.propertyID == propertyID
	})
	var subscription *propertySubscription
	if index >= 0 {
		subscription = p.subscriptions[index]
		p.subscriptions = slices.Delete(p.subscriptions, index, index+1)
	}
	p.mu.Unlock()
	if subscription != nil {
		p.manager.unsubscribeProperty(p.domainID, subscription)
	}
}

// PropertySubscribers returns the property ids this bridge currently forwards.
func (p *ParentBridge) PropertySubscribers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.subscriptions))
	for _, subscription := range p.subscriptions {
		ids = append(ids, subscription.propertyID)
	}
	return ids
}

// Dispose tears the pair down. It is idempotent and the only sanctioned
// teardown path: domain subscriptions are detached and the child half is
// disposed along.
func (p *ParentBridge) Dispose() {
	if !p.disposed.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	subscriptions := p.subscriptions
	p.subscriptions = nil
	p.mu.Unlock()
	for _, subscription := range subscriptions {
		p.manager.unsubscribeProperty(p.domainID, subscription)
	}
	p.child.dispose()
	p.logger.Debugf("bridge=(%s) of extension=(%s) disposed", p.id, p.extensionID)
}

// deliverProperty hands one update to the fragment callbacks registered under
// the given subscription bucket.
func (p *ParentBridge) deliverProperty(bucket, propertyID string, value any) {
	if p.disposed.Load() {
		return
	}
	p.child.receivePropertyFor(bucket, propertyID, value)
}

// forwardChain routes a fragment-emitted chain into the host mediator.
func (p *ParentBridge) forwardChain(ctx context.Context, chain *ActionsChain) (*ChainResult, error) {
	if p.disposed.Load() {
		return nil, merrors.ErrBridgeDisposed
	}
	return p.mediator.Execute(ctx, chain, 0), nil
}

// deliverAction hands one action to the fragment's registered handler,
// enforcing the entry's handled-actions contract.
func (p *ParentBridge) deliverAction(ctx context.Context, action Action) error {
	if p.disposed.Load() {
		return merrors.ErrBridgeDisposed
	}
	return p.child.handleInbound(ctx, action)
}

// childSubscription is one fragment callback registered on the child bridge.
type childSubscription struct {
	id string
	fn PropertySubscriber
}

// ChildBridge is the fragment-side half of the pair. A mounted fragment only
// ever holds its child bridge, never host internals.
type ChildBridge struct {
	extensionID string
	entry       *Entry
	parent      *ParentBridge

	mu            sync.RWMutex
	handler       ActionHandler
	subscriptions map[string][]*childSubscription

	disposed atomic.Bool
}

// ExtensionID returns the extension this bridge belongs to.
func (c *ChildBridge) ExtensionID() string {
	return c.extensionID
}

// RegisterActionHandler installs the fragment's inbound action handler.
func (c *ChildBridge) RegisterActionHandler(handler ActionHandler) error {
	if c.disposed.Load() {
		return merrors.ErrBridgeDisposed
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return nil
}

// GetProperty reads the current value of a shared property of the owning
// domain. The second return value reports whether the property has been set.
func (c *ChildBridge) GetProperty(propertyID string) (any, bool, error) {
	if c.disposed.Load() {
		return nil, false, merrors.ErrBridgeDisposed
	}
	return c.parent.manager.property(c.parent.domainID, propertyID)
}

// SubscribeToProperty registers a fragment callback for updates of one
// property id (or the wildcard). It returns the detach function.
func (c *ChildBridge) SubscribeToProperty(propertyID string, fn PropertySubscriber) (func(), error) {
	if c.disposed.Load() {
		return nil, merrors.ErrBridgeDisposed
	}

	subscription := &childSubscription{id: uuid.NewString(), fn: fn}
	c.mu.Lock()
	firstForProperty := len(c.subscriptions[propertyID]) == 0
	c.subscriptions[propertyID] = append(c.subscriptions[propertyID], subscription)
	c.mu.Unlock()

	// lazily wire the domain-side forwarding, once per property id
	if firstForProperty {
		if err := c.parent.RegisterPropertySubscriber(propertyID); err != nil {
			return nil, err
		}
	}

	return func() {
		c.mu.Lock()
		c.subscriptions[propertyID] = slices.DeleteFunc(c.subscriptions[propertyID],
			func(s *childSubscription) bool { return s.id == subscription.id })
		last := len(c.subscriptions[propertyID]) == 0
		if last {
			delete(c.subscriptions, propertyID)
		}
		c.mu.Unlock()
		// the last detach for a property unwires the domain-side forwarding
		if last {
			c.parent.unregisterPropertySubscriber(propertyID)
		}
	}, nil
}

// Dispose tears the pair down from the fragment side. Disposal from either
// half is idempotent and equivalent.
func (c *ChildBridge) Dispose() {
	c.parent.Dispose()
}

// EmitActionsChain forwards a fragment-originated chain through the parent
// bridge into the host mediator. The root action type must be declared among
// the entry's emitted actions.
func (c *ChildBridge) EmitActionsChain(ctx context.Context, chain *ActionsChain) (*ChainResult, error) {
	if c.disposed.Load() {
		return nil, merrors.ErrBridgeDisposed
	}
	if chain == nil {
		return nil, merrors.ErrNilChain
	}
	if !slices.Contains(c.entry.EmittedActions, chain.Action.Type) {
		return nil, fmt.Errorf("action=(%s) emitted by entry=(%s): %w",
			chain.Action.Type, c.entry.ID, merrors.ErrActionNotAllowed)
	}
	return c.parent.forwardChain(ctx, chain)
}

// handleInbound dispatches one domain-originated action to the fragment's
// handler.
func (c *ChildBridge) handleInbound(ctx context.Context, action Action) error {
	if c.disposed.Load() {
		return merrors.ErrBridgeDisposed
	}
	if !slices.Contains(c.entry.DomainActions, action.Type) {
		return fmt.Errorf("action=(%s) handled by entry=(%s): %w",
			action.Type, c.entry.ID, merrors.ErrActionNotAllowed)
	}
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return merrors.ErrActionUnhandled
	}
	_, err := handler.HandleAction(ctx, action.Type, action.Payload)
	return err
}

// receiveProperty delivers a directly-pushed property update to the
// fragment's local subscribers, the wildcard ones included. Updates against a
// disposed bridge are dropped silently.
func (c *ChildBridge) receiveProperty(propertyID string, value any) {
	c.receivePropertyFor(propertyID, propertyID, value)
	if propertyID != PropertyWildcard {
		c.receivePropertyFor(PropertyWildcard, propertyID, value)
	}
}

// receivePropertyFor delivers an update to the callbacks of one subscription
// bucket only.
func (c *ChildBridge) receivePropertyFor(bucket, propertyID string, value any) {
	if c.disposed.Load() {
		return
	}
	c.mu.RLock()
	notify := make([]*childSubscription, 0, len(c.subscriptions[bucket]))
	notify = append(notify, c.subscriptions[bucket]...)
	c.mu.RUnlock()
	for _, subscription := range notify {
		subscription.fn(propertyID, value)
	}
}

func (c *ChildBridge) dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.handler = nil
	c.subscriptions = make(map[string][]*childSubscription)
	c.mu.Unlock()
}

// bridgeActionHandler adapts a parent bridge to the mediator's ActionHandler
// so chains targeting a mounted extension reach its fragment.
type bridgeActionHandler struct {
	parent *ParentBridge
}

var _ ActionHandler = (*bridgeActionHandler)(nil)

func newBridgeActionHandler(parent *ParentBridge) *bridgeActionHandler {
	return &bridgeActionHandler{parent: parent}
}

// HandleAction implements ActionHandler.
func (h *bridgeActionHandler) HandleAction(ctx context.Context, actionType string, payload any) (any, error) {
	err := h.parent.deliverAction(ctx, Action{Type: actionType, Target: h.parent.extensionID, Payload: payload})
	return nil, err
}
