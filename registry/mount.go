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
	"sort"
	"sync"
	"time"

	"github.com/flowchartsman/retry"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/internal/locker"
	"github.com/hostmosaic/mosaic/internal/syncmap"
	"github.com/hostmosaic/mosaic/log"
)

// mountManager drives the load/mount/unmount state machine per extension. All
// public operations on the same extension id are serialized through a per-key
// lock; operations on different ids proceed independently.
type mountManager struct {
	logger    log.Logger
	manager   *manager
	mediator  *mediator
	lifecycle *lifecycleManager

	locks *locker.KeyLock

	handlersMu sync.RWMutex
	handlers   []LoaderHandler

	boundaries BoundaryProvider
	bridges    BridgeFactory
	// mounted maps a domain id to the extension currently occupying it.
	mounted *syncmap.SyncMap[string, string]

	loadRetries   int
	loadRetryWait time.Duration
}

func newMountManager(
	manager *manager,
	mediator *mediator,
	lifecycle *lifecycleManager,
	boundaries BoundaryProvider,
	bridges BridgeFactory,
	logger log.Logger,
	loadRetries int,
	loadRetryWait time.Duration,
) *mountManager {
	return &mountManager{
		logger:        logger,
		manager:       manager,
		mediator:      mediator,
		lifecycle:     lifecycle,
		locks:         locker.New(),
		boundaries:    boundaries,
		bridges:       bridges,
		mounted:       syncmap.New[string, string](),
		loadRetries:   loadRetries,
		loadRetryWait: loadRetryWait,
	}
}

// RegisterHandler adds a loader handler, keeping the handler list ordered by
// descending priority.
func (m *mountManager) RegisterHandler(handler LoaderHandler) {
	m.handlersMu.Lock()
	m.handlers = append(m.handlers, handler)
	sort.SliceStable(m.handlers, func(i, j int) bool {
		return m.handlers[i].Priority() > m.handlers[j].Priority()
	})
	m.handlersMu.Unlock()
}

// Load acquires the extension's fragment if it is not loaded yet and returns
// its lifecycle object. A loaded fragment is cached; the loader is invoked at
// most once until unregistration.
func (m *mountManager) Load(ctx context.Context, extensionID string) (Lifecycle, error) {
	release := m.locks.Acquire(extensionID)
	defer release()
	return m.doLoad(ctx, extensionID)
}

// Mount loads (if needed) and mounts the extension into its domain's
// container. Mounting an already-mounted extension is a no-op.
func (m *mountManager) Mount(ctx context.Context, extensionID string) error {
	release := m.locks.Acquire(extensionID)
	defer release()
	return m.doMount(ctx, extensionID)
}

// Unmount removes the extension from its domain's insertion point. The loaded
// fragment stays cached for remounting. Unmounting an unmounted extension is
// a no-op.
func (m *mountManager) Unmount(ctx context.Context, extensionID string) error {
	release := m.locks.Acquire(extensionID)
	defer release()
	return m.doUnmount(ctx, extensionID)
}

// MountForDomain applies the domain's mount policy before mounting. A swap
// domain implicitly unmounts its current occupant unless the same extension
// is being remounted; a toggle domain mounts independently.
func (m *mountManager) MountForDomain(ctx context.Context, domainID, extensionID string) error {
	dstate, ok := m.manager.domainState(domainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	if !dstate.domain.DeclaresUnmount() {
		if current, occupied := m.mounted.Get(domainID); occupied && current != extensionID {
			if err := m.Unmount(ctx, current); err != nil {
				return err
			}
		}
	}
	return m.Mount(ctx, extensionID)
}

// MountedIn returns the extension currently occupying the domain.
func (m *mountManager) MountedIn(domainID string) (string, bool) {
	return m.mounted.Get(domainID)
}

func (m *mountManager) doLoad(ctx context.Context, extensionID string) (Lifecycle, error) {
	state, ok := m.manager.extensionState(extensionID)
	if !ok {
		return nil, fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	if state.LoadState() == Loaded {
		return state.lifecycle, nil
	}

	handler, err := m.selectHandler(state.Entry().Type)
	if err != nil {
		return nil, err
	}

	state.setLoadState(Loading)
	lifecycle, err := m.invokeLoader(ctx, handler, state)
	if err != nil {
		state.setLoadState(LoadFailed)
		return nil, fmt.Errorf("extension=(%s) load failed: %w", extensionID, err)
	}

	state.lifecycle = lifecycle
	state.setLoadState(Loaded)
	m.logger.Debugf("extension=(%s) loaded", extensionID)
	return lifecycle, nil
}

func (m *mountManager) doMount(ctx context.Context, extensionID string) error {
	state, ok := m.manager.extensionState(extensionID)
	if !ok {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	if state.MountState() == Mounted {
		return nil
	}

	lifecycle, err := m.doLoad(ctx, extensionID)
	if err != nil {
		return err
	}

	extension := state.Extension()
	dstate, ok := m.manager.domainState(extension.DomainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", extension.DomainID, merrors.ErrDomainNotRegistered)
	}

	boundary, err := m.boundaries.CreateBoundary(dstate.containers.ContainerFor(extensionID))
	if err != nil {
		state.setMountState(MountFailed)
		return fmt.Errorf("extension=(%s) boundary creation failed: %w", extensionID, err)
	}

	state.setMountState(Mounting)
	parent, child := m.bridges.NewPair(extension, state.Entry())
	if err := lifecycle.Mount(ctx, boundary, child); err != nil {
		parent.Dispose()
		state.setMountState(MountFailed)
		return fmt.Errorf("extension=(%s) mount failed: %w", extensionID, err)
	}

	state.bridge.Store(parent)
	state.boundary = boundary
	state.setMountState(Mounted)
	m.mounted.Set(extension.DomainID, extensionID)
	m.mediator.registerExtensionHandler(extensionID, extension.DomainID, extension.EntryID, newBridgeActionHandler(parent))
	m.logger.Infof("extension=(%s) mounted into domain=(%s)", extensionID, extension.DomainID)
	m.lifecycle.TriggerDetached(extensionID, StageActivated)
	return nil
}

func (m *mountManager) doUnmount(ctx context.Context, extensionID string) error {
	state, ok := m.manager.extensionState(extensionID)
	if !ok {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	if state.MountState() != Mounted {
		return nil
	}

	if err := state.lifecycle.Unmount(ctx, state.boundary); err != nil {
		state.setMountState(MountFailed)
		return fmt.Errorf("extension=(%s) unmount failed: %w", extensionID, err)
	}

	extension := state.Extension()
	m.mediator.unregisterExtensionHandler(extensionID)
	if bridge := state.bridge.Swap(nil); bridge != nil {
		bridge.Dispose()
	}
	state.boundary = nil
	state.setMountState(Unmounted)
	if current, ok := m.mounted.Get(extension.DomainID); ok && current == extensionID {
		m.mounted.Delete(extension.DomainID)
	}
	m.logger.Infof("extension=(%s) unmounted from domain=(%s)", extensionID, extension.DomainID)
	m.lifecycle.TriggerDetached(extensionID, StageDeactivated)
	return nil
}

// selectHandler returns the highest-priority handler accepting the entry
// type.
func (m *mountManager) selectHandler(entryType string) (LoaderHandler, error) {
	m.handlersMu.RLock()
	defer m.handlersMu.RUnlock()
	if len(m.handlers) == 0 {
		return nil, merrors.ErrNoLoaderHandlers
	}
	for _, handler := range m.handlers {
		if handler.CanHandle(entryType) {
			return handler, nil
		}
	}
	return nil, fmt.Errorf("type=(%s): %w", entryType, merrors.ErrEntryTypeNotHandled)
}

func (m *mountManager) invokeLoader(ctx context.Context, handler LoaderHandler, state *ExtensionState) (Lifecycle, error) {
	if m.loadRetries <= 0 {
		return handler.Load(ctx, state.Extension(), state.Entry())
	}
	var lifecycle Lifecycle
	retrier := retry.NewRetrier(m.loadRetries, m.loadRetryWait, m.loadRetryWait*10)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		loaded, err := handler.Load(ctx, state.Extension(), state.Entry())
		if err != nil {
			return err
		}
		lifecycle = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lifecycle, nil
}
