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
	"time"

	"github.com/hostmosaic/mosaic/log"
	"github.com/hostmosaic/mosaic/typesystem"
)

// ErrorSink receives failures from paths that deliberately never surface an
// error to the caller: detached lifecycle triggers and fire-and-forget chain
// executions.
type ErrorSink func(err error)

// Option configures the registry at construction time.
type Option interface {
	// Apply sets the Option value of a registry.
	Apply(r *registry)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(r *registry)

// Apply applies the options to the registry.
func (f OptionFunc) Apply(r *registry) {
	f(r)
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(r *registry) {
		r.logger = logger
	})
}

// WithTypeSystem installs a type-system plugin used to validate registered
// records and check extension type ancestry. The default plugin accepts
// everything.
func WithTypeSystem(plugin typesystem.Plugin) Option {
	return OptionFunc(func(r *registry) {
		r.typeSystem = plugin
	})
}

// WithErrorSink routes failures of detached operations to the given sink
// instead of the default log-only sink.
func WithErrorSink(sink ErrorSink) Option {
	return OptionFunc(func(r *registry) {
		r.sink = sink
	})
}

// WithBoundaryProvider sets the provider that wraps host containers into the
// boundaries handed to mounting fragments. The default provider hands the
// container through unchanged.
func WithBoundaryProvider(provider BoundaryProvider) Option {
	return OptionFunc(func(r *registry) {
		r.boundaries = provider
	})
}

// WithBridgeFactory overrides the bridge pair construction.
func WithBridgeFactory(factory BridgeFactory) Option {
	return OptionFunc(func(r *registry) {
		r.bridgeFactory = factory
	})
}

// WithLoadRetries makes fragment loading retry up to the given number of
// times with exponential backoff starting at the given wait. Zero retries
// (the default) invokes the loader exactly once.
func WithLoadRetries(retries int, initialWait time.Duration) Option {
	return OptionFunc(func(r *registry) {
		r.loadRetries = retries
		r.loadRetryWait = initialWait
	})
}

// ChainOption configures one chain execution.
type ChainOption interface {
	// Apply sets the ChainOption value of a chain execution.
	Apply(c *chainConfig)
}

var _ ChainOption = ChainOptionFunc(nil)

// ChainOptionFunc implements the ChainOption interface.
type ChainOptionFunc func(c *chainConfig)

// Apply applies the options to the chain execution.
func (f ChainOptionFunc) Apply(c *chainConfig) {
	f(c)
}

type chainConfig struct {
	timeout time.Duration
}

// WithChainTimeout bounds every action of the chain by the given timeout,
// overriding the target domains' default action timeouts.
func WithChainTimeout(timeout time.Duration) ChainOption {
	return ChainOptionFunc(func(c *chainConfig) {
		c.timeout = timeout
	})
}
