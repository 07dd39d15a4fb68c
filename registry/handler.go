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
)

// ActionHandler handles one routed action and returns its result.
type ActionHandler interface {
	HandleAction(ctx context.Context, actionType string, payload any) (any, error)
}

// ActionHandlerFunc adapts a function to the ActionHandler interface.
type ActionHandlerFunc func(ctx context.Context, actionType string, payload any) (any, error)

// HandleAction implements ActionHandler.
func (f ActionHandlerFunc) HandleAction(ctx context.Context, actionType string, payload any) (any, error) {
	return f(ctx, actionType, payload)
}

// Lifecycle is the mount/unmount surface of one loaded fragment, supplied by
// the loader handler that acquired it.
type Lifecycle interface {
	// Mount paints the fragment into the isolation boundary and hands it the
	// child half of its bridge.
	Mount(ctx context.Context, boundary Boundary, bridge *ChildBridge) error
	// Unmount removes the fragment from the isolation boundary.
	Unmount(ctx context.Context, boundary Boundary) error
}

// LoaderHandler is a pluggable strategy that knows how to acquire fragments
// of a given entry type. The highest-priority handler whose CanHandle returns
// true is selected.
type LoaderHandler interface {
	// CanHandle reports whether the handler can load fragments of the given
	// entry type.
	CanHandle(entryType string) bool
	// Load acquires the fragment and returns its lifecycle object.
	Load(ctx context.Context, extension *Extension, entry *Entry) (Lifecycle, error)
	// Priority orders handlers; higher wins.
	Priority() int
}

// Boundary is an opaque rendering/style-isolation scope created per mount
// target by the external rendering collaborator.
type Boundary any

// BoundaryProvider creates isolation boundaries. CreateBoundary is idempotent:
// a target that already carries a boundary yields the existing one.
type BoundaryProvider interface {
	CreateBoundary(target any) (Boundary, error)
}

// ContainerProvider supplies the mount target of each extension of a domain.
type ContainerProvider interface {
	ContainerFor(extensionID string) any
}

// ContainerProviderFunc adapts a function to the ContainerProvider interface.
type ContainerProviderFunc func(extensionID string) any

// ContainerFor implements ContainerProvider.
func (f ContainerProviderFunc) ContainerFor(extensionID string) any {
	return f(extensionID)
}

// passthroughBoundaryProvider treats the mount target itself as the boundary,
// memoizing per target to stay idempotent.
type passthroughBoundaryProvider struct {
	mu         sync.Mutex
	boundaries map[any]Boundary
}

var _ BoundaryProvider = (*passthroughBoundaryProvider)(nil)

func newPassthroughBoundaryProvider() *passthroughBoundaryProvider {
	return &passthroughBoundaryProvider{
		boundaries: make(map[any]Boundary),
	}
}

func (p *passthroughBoundaryProvider) CreateBoundary(target any) (Boundary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if boundary, ok := p.boundaries[target]; ok {
		return boundary, nil
	}
	p.boundaries[target] = target
	return target, nil
}
