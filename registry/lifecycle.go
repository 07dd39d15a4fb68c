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
	"sync"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/log"
)

// Built-in lifecycle stages fired by the runtime itself.
const (
	// StageInit fires after an extension is successfully registered.
	StageInit = "init"
	// StageActivated fires after an extension is mounted.
	StageActivated = "activated"
	// StageDeactivated fires after an extension is unmounted.
	StageDeactivated = "deactivated"
	// StageDestroyed fires before an extension is unregistered.
	StageDestroyed = "destroyed"
)

var builtinStages = map[string]bool{
	StageInit:        true,
	StageActivated:   true,
	StageDeactivated: true,
	StageDestroyed:   true,
}

func isBuiltinStage(stage string) bool {
	return builtinStages[stage]
}

// LifecycleHook binds an actions chain to a lifecycle stage. The stage must
// be declared in the owning entity's supported-stages list.
type LifecycleHook struct {
	Stage string
	Chain *ActionsChain
}

// lifecycleManager executes declared lifecycle hooks for a stage on an
// extension or a domain. Hooks of one entity run strictly in declaration
// order, each chain awaited before the next starts.
type lifecycleManager struct {
	logger   log.Logger
	manager  *manager
	mediator *mediator
	sink     ErrorSink
	pending  sync.WaitGroup
}

func newLifecycleManager(manager *manager, mediator *mediator, logger log.Logger, sink ErrorSink) *lifecycleManager {
	return &lifecycleManager{
		logger:   logger,
		manager:  manager,
		mediator: mediator,
		sink:     sink,
	}
}

// TriggerStage executes the hooks the extension declares for the given stage.
// A stage with no matching hooks is a successful no-op. Failures inside hook
// chains are reported to the error sink and do not interrupt later hooks.
func (l *lifecycleManager) TriggerStage(ctx context.Context, extensionID, stage string) error {
	state, ok := l.manager.extensionState(extensionID)
	if !ok {
		return fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered)
	}
	l.runHooks(ctx, state.Extension().LifecycleHooks, stage, extensionID)
	return nil
}

// TriggerDomainStage executes the stage hooks of every extension registered
// in the domain, iterating extensions in registration order.
func (l *lifecycleManager) TriggerDomainStage(ctx context.Context, domainID, stage string) error {
	dstate, ok := l.manager.domainState(domainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	for _, extensionID := range dstate.extensionOrder() {
		if err := l.TriggerStage(ctx, extensionID, stage); err != nil {
			return err
		}
	}
	return nil
}

// TriggerDomainOwnStage executes the domain's own hooks for the given stage,
// not those of its extensions.
func (l *lifecycleManager) TriggerDomainOwnStage(ctx context.Context, domainID, stage string) error {
	dstate, ok := l.manager.domainState(domainID)
	if !ok {
		return fmt.Errorf("domain=(%s): %w", domainID, merrors.ErrDomainNotRegistered)
	}
	l.runHooks(ctx, dstate.domain.LifecycleHooks, stage, domainID)
	return nil
}

// TriggerDetached fires a stage on an extension without making the caller
// wait. The hooks are resolved before the goroutine is spawned so a
// concurrent unregistration cannot drop the trigger; an unknown extension is
// reported through the error sink. Drain blocks until all detached triggers
// spawned so far have settled.
func (l *lifecycleManager) TriggerDetached(extensionID, stage string) {
	state, ok := l.manager.extensionState(extensionID)
	if !ok {
		l.sink(fmt.Errorf("extension=(%s): %w", extensionID, merrors.ErrExtensionNotRegistered))
		return
	}
	hooks := state.Extension().LifecycleHooks
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		l.runHooks(context.Background(), hooks, stage, extensionID)
	}()
}

// Drain blocks until every detached lifecycle trigger has settled.
func (l *lifecycleManager) Drain() {
	l.pending.Wait()
}

func (l *lifecycleManager) runHooks(ctx context.Context, hooks []LifecycleHook, stage, ownerID string) {
	for _, hook := range hooks {
		if hook.Stage != stage || hook.Chain == nil {
			continue
		}
		result := l.mediator.Execute(ctx, hook.Chain, 0)
		if result.Err != nil {
			l.logger.Warnf("lifecycle stage=(%s) on=(%s) hook chain failed: %v", stage, ownerID, result.Err)
			l.sink(result.Err)
		}
	}
}
