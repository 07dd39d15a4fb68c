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
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/log"
	"github.com/hostmosaic/mosaic/typesystem"
)

// Registry is the composition runtime. It owns domain, entry and extension
// registration, drives the load/mount/unmount machinery, routes action chains
// and propagates shared properties.
type Registry interface {
	// RegisterEntry declares a reusable fragment contract.
	RegisterEntry(entry *Entry) error
	// RegisterDomain declares an insertion point together with the provider of
	// its mount containers. The domain immediately becomes a routable action
	// target.
	RegisterDomain(domain *Domain, containers ContainerProvider) error
	// RegisterExtension binds an entry into a domain, validating the contract
	// before admission. Registration fires the init lifecycle stage detached.
	RegisterExtension(extension *Extension) error
	// UnregisterExtension unmounts (if needed), fires the destroyed stage and
	// removes the extension. Unregistering an unknown extension is a no-op.
	UnregisterExtension(ctx context.Context, extensionID string) error
	// UnregisterDomain unregisters every extension of the domain in
	// registration order, then the domain itself.
	UnregisterDomain(ctx context.Context, domainID string) error

	// RegisterHandler adds a loader handler for fragment acquisition.
	RegisterHandler(handler LoaderHandler)
	// LoadExtension acquires the extension's fragment without mounting it.
	LoadExtension(ctx context.Context, extensionID string) error
	// MountExtension mounts the extension into its domain, applying the
	// domain's mount policy.
	MountExtension(ctx context.Context, extensionID string) error
	// UnmountExtension removes the extension from its insertion point, keeping
	// the loaded fragment cached.
	UnmountExtension(ctx context.Context, extensionID string) error

	// ExecuteActionsChain runs a chain through the mediator. It never returns
	// a Go error: failures are settled through the chain's declared branches
	// and an unhandled failure is reported in the result and to the error
	// sink.
	ExecuteActionsChain(ctx context.Context, chain *ActionsChain, opts ...ChainOption) *ChainResult

	// UpdateDomainProperty sets a declared shared property and notifies the
	// domain's subscribers synchronously.
	UpdateDomainProperty(domainID, propertyID string, value any) error
	// UpdateDomainProperties applies several property updates.
	UpdateDomainProperties(domainID string, values map[string]any) error
	// GetDomainProperty reads the current value of a shared property.
	GetDomainProperty(domainID, propertyID string) (any, bool, error)
	// SubscribeToDomainProperty registers a host-side subscriber for one
	// property id or the wildcard. It returns the detach function.
	SubscribeToDomainProperty(domainID, propertyID string, fn PropertySubscriber) (func(), error)

	// TriggerLifecycleStage runs the extension's hooks declared for the stage.
	TriggerLifecycleStage(ctx context.Context, extensionID, stage string) error
	// TriggerDomainLifecycleStage runs the stage hooks of every extension of
	// the domain in registration order.
	TriggerDomainLifecycleStage(ctx context.Context, domainID, stage string) error
	// TriggerDomainOwnLifecycleStage runs the domain's own stage hooks.
	TriggerDomainOwnLifecycleStage(ctx context.Context, domainID, stage string) error

	// GetDomain returns a registered domain.
	GetDomain(domainID string) (*Domain, bool)
	// GetEntry returns a registered entry.
	GetEntry(entryID string) (*Entry, bool)
	// GetExtension returns a registered extension.
	GetExtension(extensionID string) (*Extension, bool)
	// GetExtensionState returns the runtime state of a registered extension.
	GetExtensionState(extensionID string) (*ExtensionState, bool)
	// GetExtensionsForDomain returns the domain's extension ids in
	// registration order.
	GetExtensionsForDomain(domainID string) []string
	// GetMountedExtension returns the extension currently occupying the
	// domain.
	GetMountedExtension(domainID string) (string, bool)
	// GetParentBridge returns the host-side bridge of a mounted extension.
	GetParentBridge(extensionID string) (*ParentBridge, bool)
	// GetRegisteredPackages returns the package ids carrying at least one
	// registered extension, sorted.
	GetRegisteredPackages() []string
	// GetExtensionsForPackage returns the extension ids of one package,
	// sorted.
	GetExtensionsForPackage(packageID string) []string

	// Drain blocks until every detached lifecycle trigger has settled.
	Drain()
	// Dispose unregisters everything and shuts the registry down. Further
	// operations fail with ErrRegistryDisposed.
	Dispose(ctx context.Context) error
}

// registry is the sole Registry implementation.
type registry struct {
	logger     log.Logger
	typeSystem typesystem.Plugin
	sink       ErrorSink

	boundaries    BoundaryProvider
	bridgeFactory BridgeFactory
	loadRetries   int
	loadRetryWait time.Duration

	manager   *manager
	mediator  *mediator
	lifecycle *lifecycleManager
	mount     *mountManager

	disposed atomic.Bool
}

var _ Registry = (*registry)(nil)

// New creates a registry. The zero configuration uses the default logger, a
// permissive type system, pass-through boundaries and no load retries.
func New(opts ...Option) Registry {
	r := &registry{
		logger:        log.DefaultLogger,
		typeSystem:    typesystem.Noop(),
		loadRetryWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt.Apply(r)
	}
	if r.sink == nil {
		r.sink = func(err error) {
			r.logger.Error(err)
		}
	}

	r.manager = newManager(r.typeSystem, r.logger)
	r.mediator = newMediator(r.logger, r.domainTimeout)
	r.lifecycle = newLifecycleManager(r.manager, r.mediator, r.logger, func(err error) { r.sink(err) })
	if r.boundaries == nil {
		r.boundaries = newPassthroughBoundaryProvider()
	}
	if r.bridgeFactory == nil {
		r.bridgeFactory = newBridgeFactory(r.manager, r.mediator, r.logger)
	}
	r.mount = newMountManager(r.manager, r.mediator, r.lifecycle, r.boundaries, r.bridgeFactory, r.logger, r.loadRetries, r.loadRetryWait)
	return r
}

func (r *registry) RegisterEntry(entry *Entry) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.manager.registerEntry(entry)
}

func (r *registry) RegisterDomain(domain *Domain, containers ContainerProvider) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	if err := r.manager.registerDomain(domain, containers); err != nil {
		return err
	}
	r.mediator.registerDomainHandler(domain.ID, ActionHandlerFunc(
		func(ctx context.Context, actionType string, payload any) (any, error) {
			return nil, r.handleDomainAction(ctx, domain.ID, actionType, payload)
		}))
	r.logger.Infof("domain=(%s) registered", domain.ID)
	return nil
}

func (r *registry) RegisterExtension(extension *Extension) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	if _, err := r.manager.registerExtension(extension); err != nil {
		return err
	}
	r.logger.Infof("extension=(%s) registered in domain=(%s)", extension.ID, extension.DomainID)
	r.lifecycle.TriggerDetached(extension.ID, StageInit)
	return nil
}

func (r *registry) UnregisterExtension(ctx context.Context, extensionID string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.unregisterExtension(ctx, extensionID)
}

func (r *registry) unregisterExtension(ctx context.Context, extensionID string) error {
	if _, ok := r.manager.extensionState(extensionID); !ok {
		return nil
	}
	if err := r.mount.Unmount(ctx, extensionID); err != nil {
		return err
	}
	// destroyed runs inline so the hooks still see a registered extension
	if err := r.lifecycle.TriggerStage(ctx, extensionID, StageDestroyed); err != nil {
		r.sink(err)
	}
	r.manager.removeExtension(extensionID)
	r.logger.Infof("extension=(%s) unregistered", extensionID)
	return nil
}

func (r *registry) UnregisterDomain(ctx context.Context, domainID string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.unregisterDomain(ctx, domainID)
}

func (r *registry) unregisterDomain(ctx context.Context, domainID string) error {
	dstate, ok := r.manager.domainState(domainID)
	if !ok {
		return nil
	}
	for _, extensionID := range dstate.extensionOrder() {
		if err := r.unregisterExtension(ctx, extensionID); err != nil {
			return err
		}
	}
	if dstate.domain.SupportsOwnStage(StageDestroyed) {
		if err := r.lifecycle.TriggerDomainOwnStage(ctx, domainID, StageDestroyed); err != nil {
			r.sink(err)
		}
	}
	r.mediator.unregisterDomainHandler(domainID)
	r.manager.removeDomain(domainID)
	r.logger.Infof("domain=(%s) unregistered", domainID)
	return nil
}

func (r *registry) RegisterHandler(handler LoaderHandler) {
	r.mount.RegisterHandler(handler)
}

func (r *registry) LoadExtension(ctx context.Context, extensionID string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	_, err := r.mount.Load(ctx, extensionID)
	return err
}

func (r *registry) MountExtension(ctx context.Context, extensionID string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	state, ok := r.manager.extensionState(extensionID)
	if !ok {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	return r.mount.MountForDomain(ctx, state.Extension().DomainID, extensionID)
}

func (r *registry) UnmountExtension(ctx context.Context, extensionID string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.mount.Unmount(ctx, extensionID)
}

func (r *registry) ExecuteActionsChain(ctx context.Context, chain *ActionsChain, opts ...ChainOption) *ChainResult {
	if r.disposed.Load() {
		return &ChainResult{Completed: false, Err: merrors.ErrRegistryDisposed}
	}
	config := new(chainConfig)
	for _, opt := range opts {
		opt.Apply(config)
	}
	result := r.mediator.Execute(ctx, chain, config.timeout)
	if result.Err != nil {
		r.sink(result.Err)
	}
	return result
}

func (r *registry) UpdateDomainProperty(domainID, propertyID string, value any) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.manager.updateProperty(domainID, propertyID, value)
}

func (r *registry) UpdateDomainProperties(domainID string, values map[string]any) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.manager.updateProperties(domainID, values)
}

func (r *registry) GetDomainProperty(domainID, propertyID string) (any, bool, error) {
	if r.disposed.Load() {
		return nil, false, merrors.ErrRegistryDisposed
	}
	return r.manager.property(domainID, propertyID)
}

func (r *registry) SubscribeToDomainProperty(domainID, propertyID string, fn PropertySubscriber) (func(), error) {
	if r.disposed.Load() {
		return nil, merrors.ErrRegistryDisposed
	}
	subscription, err := r.manager.subscribeProperty(domainID, propertyID, fn)
	if err != nil {
		return nil, err
	}
	return func() {
		r.manager.unsubscribeProperty(domainID, subscription)
	}, nil
}

func (r *registry) TriggerLifecycleStage(ctx context.Context, extensionID, stage string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.lifecycle.TriggerStage(ctx, extensionID, stage)
}

func (r *registry) TriggerDomainLifecycleStage(ctx context.Context, domainID, stage string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.lifecycle.TriggerDomainStage(ctx, domainID, stage)
}

func (r *registry) TriggerDomainOwnLifecycleStage(ctx context.Context, domainID, stage string) error {
	if r.disposed.Load() {
		return merrors.ErrRegistryDisposed
	}
	return r.lifecycle.TriggerDomainOwnStage(ctx, domainID, stage)
}

func (r *registry) GetDomain(domainID string) (*Domain, bool) {
	if dstate, ok := r.manager.domainState(domainID); ok {
		return dstate.domain, true
	}
	return nil, false
}

func (r *registry) GetEntry(entryID string) (*Entry, bool) {
	return r.manager.entry(entryID)
}

func (r *registry) GetExtension(extensionID string) (*Extension, bool) {
	if state, ok := r.manager.extensionState(extensionID); ok {
		return state.Extension(), true
	}
	return nil, false
}

func (r *registry) GetExtensionState(extensionID string) (*ExtensionState, bool) {
	return r.manager.extensionState(extensionID)
}

func (r *registry) GetExtensionsForDomain(domainID string) []string {
	if dstate, ok := r.manager.domainState(domainID); ok {
		return dstate.extensionOrder()
	}
	return nil
}

func (r *registry) GetMountedExtension(domainID string) (string, bool) {
	return r.mount.MountedIn(domainID)
}

func (r *registry) GetParentBridge(extensionID string) (*ParentBridge, bool) {
	state, ok := r.manager.extensionState(extensionID)
	if !ok {
		return nil, false
	}
	bridge := state.Bridge()
	return bridge, bridge != nil
}

func (r *registry) GetRegisteredPackages() []string {
	return r.manager.registeredPackages()
}

func (r *registry) GetExtensionsForPackage(packageID string) []string {
	return r.manager.extensionsForPackage(packageID)
}

func (r *registry) Drain() {
	r.lifecycle.Drain()
}

func (r *registry) Dispose(ctx context.Context) error {
	if !r.disposed.CompareAndSwap(false, true) {
		return nil
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, domainID := range r.manager.domains.Keys() {
		domainID := domainID
		eg.Go(func() error {
			return r.unregisterDomain(ctx, domainID)
		})
	}
	err := eg.Wait()
	r.lifecycle.Drain()
	r.logger.Info("registry disposed")
	return err
}

// handleDomainAction executes an action targeting a domain: built-in
// lifecycle actions drive the mount machinery, custom actions are forwarded
// to the extension currently occupying the domain.
func (r *registry) handleDomainAction(ctx context.Context, domainID, actionType string, payload any) error {
	dstate, ok := r.manager.domainState(domainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	if !dstate.domain.AcceptsAction(actionType) {
		return fmt.Errorf("action=(%s) on domain=(%s): %w", actionType, domainID, merrors.ErrActionNotAllowed)
	}

	switch KindOf(actionType) {
	case KindLoad:
		extensionID, err := extensionIDFromPayload(payload)
		if err != nil {
			return err
		}
		_, err = r.mount.Load(ctx, extensionID)
		return err
	case KindMount:
		extensionID, err := extensionIDFromPayload(payload)
		if err != nil {
			return err
		}
		return r.mount.MountForDomain(ctx, domainID, extensionID)
	case KindUnmount:
		extensionID, err := extensionIDFromPayload(payload)
		if err != nil {
			return err
		}
		return r.mount.Unmount(ctx, extensionID)
	default:
		return r.forwardToMounted(ctx, domainID, actionType, payload)
	}
}

// forwardToMounted relays a custom domain action to the fragment occupying
// the domain's insertion point.
func (r *registry) forwardToMounted(ctx context.Context, domainID, actionType string, payload any) error {
	extensionID, ok := r.mount.MountedIn(domainID)
	if !ok {
		return fmt.Errorf("action=(%s) on domain=(%s): %w", actionType, domainID, merrors.ErrActionUnhandled)
	}
	state, ok := r.manager.extensionState(extensionID)
	if !ok {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	bridge := state.Bridge()
	if bridge == nil {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrActionUnhandled)
	}
	return bridge.deliverAction(ctx, Action{Type: actionType, Target: extensionID, Payload: payload})
}

// domainTimeout yields the default action timeout of a domain for the
// mediator; unknown domains carry no timeout.
func (r *registry) domainTimeout(domainID string) time.Duration {
	if dstate, ok := r.manager.domainState(domainID); ok {
		return dstate.domain.DefaultActionTimeout
	}
	return 0
}
