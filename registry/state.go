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
	"sync/atomic"
)

// LoadState is the fragment-acquisition state of an extension.
type LoadState int32

const (
	// LoadIdle means no load has been attempted yet.
	LoadIdle LoadState = iota
	// Loading means a loader handler is acquiring the fragment.
	Loading
	// Loaded means the fragment lifecycle is cached and ready to mount.
	Loaded
	// LoadFailed means the last load attempt failed.
	LoadFailed
)

// String returns the state name.
func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "error"
	default:
		return "unknown"
	}
}

// MountState is the mounting state of an extension.
type MountState int32

const (
	// Unmounted means the extension is not painted anywhere.
	Unmounted MountState = iota
	// Mounting means a mount is in flight.
	Mounting
	// Mounted means the extension occupies its domain's insertion point.
	Mounted
	// MountFailed means the last mount attempt failed.
	MountFailed
)

// String returns the state name.
func (s MountState) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Mounted:
		return "mounted"
	case MountFailed:
		return "error"
	default:
		return "unknown"
	}
}

// ExtensionState is the runtime state of one registered extension. It is
// created on registration, destroyed on unregistration, and outlives
// individual mount/unmount cycles: a loaded fragment stays cached across
// unmounts.
//
// The load/mount state fields are readable concurrently; mutations happen
// only while the mount manager holds the extension's operation lock.
type ExtensionState struct {
	extension *Extension
	entry     *Entry

	loadState  atomic.Int32
	mountState atomic.Int32
	bridge     atomic.Pointer[ParentBridge]

	// guarded by the mount manager's per-extension lock
	lifecycle Lifecycle
	boundary  Boundary
}

func newExtensionState(extension *Extension, entry *Entry) *ExtensionState {
	return &ExtensionState{
		extension: extension,
		entry:     entry,
	}
}

// Extension returns the registered extension record.
func (s *ExtensionState) Extension() *Extension {
	return s.extension
}

// Entry returns the contract the extension is bound to.
func (s *ExtensionState) Entry() *Entry {
	return s.entry
}

// LoadState returns the current load state.
func (s *ExtensionState) LoadState() LoadState {
	return LoadState(s.loadState.Load())
}

// MountState returns the current mount state.
func (s *ExtensionState) MountState() MountState {
	return MountState(s.mountState.Load())
}

// Bridge returns the host-side bridge of the extension, nil when unmounted.
func (s *ExtensionState) Bridge() *ParentBridge {
	return s.bridge.Load()
}

func (s *ExtensionState) setLoadState(state LoadState) {
	s.loadState.Store(int32(state))
}

func (s *ExtensionState) setMountState(state MountState) {
	s.mountState.Store(int32(state))
}
