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
	"time"

	merrors "github.com/hostmosaic/mosaic/errors"
	"github.com/hostmosaic/mosaic/internal/syncmap"
	"github.com/hostmosaic/mosaic/log"
)

// handlerEntry records a registered handler together with the owning domain
// and entry ids used for policy checks.
type handlerEntry struct {
	handler  ActionHandler
	domainID string
	entryID  string
}

// mediator resolves an action's target to a registered domain or extension
// handler and executes the chain, branching on success and failure. Execute
// never panics or returns a Go error; the outcome is encoded in ChainResult.
type mediator struct {
	logger            log.Logger
	domainHandlers    *syncmap.SyncMap[string, *handlerEntry]
	extensionHandlers *syncmap.SyncMap[string, *handlerEntry]
	// timeoutFor yields the default action timeout of the domain owning the
	// resolved target; zero means no timeout.
	timeoutFor func(domainID string) time.Duration
}

func newMediator(logger log.Logger, timeoutFor func(domainID string) time.Duration) *mediator {
	return &mediator{
		logger:            logger,
		domainHandlers:    syncmap.New[string, *handlerEntry](),
		extensionHandlers: syncmap.New[string, *handlerEntry](),
		timeoutFor:        timeoutFor,
	}
}

func (m *mediator) registerDomainHandler(domainID string, handler ActionHandler) {
	m.domainHandlers.Set(domainID, &handlerEntry{handler: handler, domainID: domainID})
}

func (m *mediator) unregisterDomainHandler(domainID string) {
	m.domainHandlers.Delete(domainID)
}

func (m *mediator) registerExtensionHandler(extensionID, domainID, entryID string, handler ActionHandler) {
	m.extensionHandlers.Set(extensionID, &handlerEntry{handler: handler, domainID: domainID, entryID: entryID})
}

func (m *mediator) unregisterExtensionHandler(extensionID string) {
	m.extensionHandlers.Delete(extensionID)
}

// resolve looks the target up in both registries. A target can be either a
// domain or an extension.
func (m *mediator) resolve(target string) (*handlerEntry, bool) {
	if entry, ok := m.domainHandlers.Get(target); ok {
		return entry, true
	}
	if entry, ok := m.extensionHandlers.Get(target); ok {
		return entry, true
	}
	return nil, false
}

// Execute runs the chain. The timeout override takes precedence over the
// target domain's default timeout; zero falls through to the default.
func (m *mediator) Execute(ctx context.Context, chain *ActionsChain, timeout time.Duration) *ChainResult {
	result := &ChainResult{Completed: true}
	if chain == nil {
		result.Completed = false
		result.Err = merrors.ErrNilChain
		return result
	}
	m.run(ctx, chain, timeout, result)
	return result
}

func (m *mediator) run(ctx context.Context, chain *ActionsChain, timeout time.Duration, result *ChainResult) {
	action := chain.Action
	entry, ok := m.resolve(action.Target)
	if !ok {
		failure := &merrors.ChainExecutionError{
			Target:     action.Target,
			ActionType: action.Type,
			Cause:      merrors.ErrChainTargetNotFound,
		}
		m.settleFailure(ctx, chain, timeout, failure, result)
		return
	}

	effective := timeout
	if effective == 0 {
		effective = m.timeoutFor(entry.domainID)
	}

	if err := m.invoke(ctx, entry.handler, action, effective); err != nil {
		failure := &merrors.ChainExecutionError{
			Target:     action.Target,
			ActionType: action.Type,
			Cause:      err,
		}
		m.settleFailure(ctx, chain, timeout, failure, result)
		return
	}

	result.Path = append(result.Path, ChainStep{Target: action.Target, Type: action.Type})
	if chain.OnSuccess != nil {
		m.run(ctx, chain.OnSuccess, timeout, result)
	}
}

// settleFailure records the failed step and either recovers through the
// declared failure branch or marks the chain incomplete.
func (m *mediator) settleFailure(ctx context.Context, chain *ActionsChain, timeout time.Duration, failure error, result *ChainResult) {
	result.Path = append(result.Path, ChainStep{Target: chain.Action.Target, Type: chain.Action.Type, Failed: true})
	if chain.OnFailure != nil {
		m.logger.Debugf("action=(%s) on target=(%s) failed, taking failure branch: %v",
			chain.Action.Type, chain.Action.Target, failure)
		m.run(ctx, chain.OnFailure, timeout, result)
		return
	}
	result.Completed = false
	result.Err = failure
}

// invoke calls the handler, bounding the wait by the effective timeout. There
// is no cooperative cancellation: on timeout the handler keeps running but
// its eventual outcome is discarded.
func (m *mediator) invoke(ctx context.Context, handler ActionHandler, action Action, timeout time.Duration) error {
	if timeout <= 0 {
		_, err := handler.HandleAction(ctx, action.Type, action.Payload)
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := handler.HandleAction(ctx, action.Type, action.Payload)
		done <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return merrors.ErrActionTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
