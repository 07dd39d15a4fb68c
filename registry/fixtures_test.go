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
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/hostmosaic/mosaic/log"
	"github.com/hostmosaic/mosaic/typesystem"
)

const testEntryType = "module"

// fakeLifecycle is a controllable fragment lifecycle.
type fakeLifecycle struct {
	mu           sync.Mutex
	bridge       *ChildBridge
	mountErr     error
	unmountErr   error
	mountCount   int
	unmountCount int
	onMount      func(bridge *ChildBridge)
}

func (f *fakeLifecycle) Mount(_ context.Context, _ Boundary, bridge *ChildBridge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mountErr != nil {
		return f.mountErr
	}
	f.mountCount++
	f.bridge = bridge
	if f.onMount != nil {
		f.onMount(bridge)
	}
	return nil
}

func (f *fakeLifecycle) Unmount(_ context.Context, _ Boundary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmountErr != nil {
		return f.unmountErr
	}
	f.unmountCount++
	return nil
}

func (f *fakeLifecycle) childBridge() *ChildBridge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bridge
}

func (f *fakeLifecycle) mounts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mountCount
}

func (f *fakeLifecycle) unmounts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unmountCount
}

// fakeLoader serves fragments of one entry type. failures makes the first N
// load attempts fail before succeeding. When set, loading is closed as a
// Load begins and block holds the Load until released.
type fakeLoader struct {
	entryType string
	priority  int
	loadErr   error
	failures  *atomic.Int32
	loads     atomic.Int32
	lifecycle *fakeLifecycle
	loading   chan struct{}
	block     chan struct{}
}

func newFakeLoader(entryType string, priority int) *fakeLoader {
	return &fakeLoader{
		entryType: entryType,
		priority:  priority,
		lifecycle: new(fakeLifecycle),
	}
}

func (f *fakeLoader) CanHandle(entryType string) bool {
	return entryType == f.entryType
}

func (f *fakeLoader) Load(context.Context, *Extension, *Entry) (Lifecycle, error) {
	f.loads.Inc()
	if f.loading != nil {
		close(f.loading)
		f.loading = nil
	}
	if f.block != nil {
		<-f.block
	}
	if f.failures != nil && f.failures.Dec() >= 0 {
		return nil, f.loadErr
	}
	if f.loadErr != nil && f.failures == nil {
		return nil, f.loadErr
	}
	return f.lifecycle, nil
}

func (f *fakeLoader) Priority() int {
	return f.priority
}

// recordingHandler collects every action it receives.
type recordingHandler struct {
	mu       sync.Mutex
	received []Action
	err      error
	block    chan struct{}
}

func (h *recordingHandler) HandleAction(ctx context.Context, actionType string, payload any) (any, error) {
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.mu.Lock()
	h.received = append(h.received, Action{Type: actionType, Payload: payload})
	h.mu.Unlock()
	return nil, h.err
}

func (h *recordingHandler) actions() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Action, len(h.received))
	copy(out, h.received)
	return out
}

// staticContainers maps every extension to the same mount target.
type staticContainers struct {
	target any
}

func (s *staticContainers) ContainerFor(string) any {
	return s.target
}

func newTestRegistry(opts ...Option) Registry {
	return New(append([]Option{WithLogger(log.DiscardLogger)}, opts...)...)
}

// errorCollector is an ErrorSink capturing everything it receives.
type errorCollector struct {
	mu     sync.Mutex
	errors []error
}

func (c *errorCollector) sink(err error) {
	c.mu.Lock()
	c.errors = append(c.errors, err)
	c.mu.Unlock()
}

func (c *errorCollector) collected() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errors))
	copy(out, c.errors)
	return out
}

// testRig wires the internal components the way New does, exposing each of
// them to the test.
type testRig struct {
	manager   *manager
	mediator  *mediator
	lifecycle *lifecycleManager
	mount     *mountManager
	sink      *errorCollector
}

func newTestRig(opts ...func(*testRig)) *testRig {
	rig := &testRig{sink: new(errorCollector)}
	rig.manager = newManager(typesystem.Noop(), log.DiscardLogger)
	rig.mediator = newMediator(log.DiscardLogger, func(domainID string) time.Duration {
		if dstate, ok := rig.manager.domainState(domainID); ok {
			return dstate.domain.DefaultActionTimeout
		}
		return 0
	})
	rig.lifecycle = newLifecycleManager(rig.manager, rig.mediator, log.DiscardLogger, rig.sink.sink)
	rig.mount = newMountManager(
		rig.manager,
		rig.mediator,
		rig.lifecycle,
		newPassthroughBoundaryProvider(),
		newBridgeFactory(rig.manager, rig.mediator, log.DiscardLogger),
		log.DiscardLogger,
		0, 0,
	)
	for _, opt := range opts {
		opt(rig)
	}
	return rig
}

// registerFixtures installs a toggle domain, an entry and one extension, plus
// a loader serving the entry type.
func (rig *testRig) registerFixtures(domain *Domain, entry *Entry, extensionIDs ...string) *fakeLoader {
	if err := rig.manager.registerDomain(domain, new(staticContainers)); err != nil {
		panic(err)
	}
	if err := rig.manager.registerEntry(entry); err != nil {
		panic(err)
	}
	for _, id := range extensionIDs {
		if _, err := rig.manager.registerExtension(widgetExtension(id, domain.ID, entry.ID)); err != nil {
			panic(err)
		}
	}
	loader := newFakeLoader(entry.Type, 0)
	rig.mount.RegisterHandler(loader)
	return loader
}

func toggleDomain(id string, extra ...string) *Domain {
	return &Domain{
		ID:                id,
		Actions:           append([]string{ActionLoad, ActionMount, ActionUnmount}, extra...),
		ExtensionsActions: []string{"notify"},
		SharedProperties:  []string{"theme", "locale"},
	}
}

func swapDomain(id string) *Domain {
	return &Domain{
		ID:                id,
		Actions:           []string{ActionLoad, ActionMount},
		ExtensionsActions: []string{"notify"},
		SharedProperties:  []string{"theme"},
	}
}

func widgetEntry(id string) *Entry {
	return &Entry{
		ID:                 id,
		Type:               testEntryType,
		RequiredProperties: []string{"theme"},
		EmittedActions:     []string{"notify"},
		DomainActions:      []string{},
	}
}

func widgetExtension(id, domainID, entryID string) *Extension {
	return &Extension{
		ID:       id,
		DomainID: domainID,
		EntryID:  entryID,
	}
}
