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

// Package typesystem defines the pluggable type-system capability the runtime
// consumes. The runtime never validates structural correctness itself; it
// registers domain and extension records as instances and delegates schema
// validation and type-hierarchy queries to a Plugin.
package typesystem

// Schema describes one registered type. Spec is opaque to the runtime; its
// shape is owned by the plugin implementation.
type Schema struct {
	// TypeID uniquely identifies the type.
	TypeID string
	// Extends optionally names the base type this type descends from.
	Extends string
	// Spec carries the plugin-specific structural definition.
	Spec any
}

// Instance is a value bound to a type, submitted for validation.
type Instance struct {
	// ID uniquely identifies the instance.
	ID string
	// TypeID names the schema the instance claims to satisfy.
	TypeID string
	// Value is the instance payload.
	Value any
}

// Result reports the outcome of an instance validation.
type Result struct {
	Valid  bool
	Errors []string
}

// Plugin is the consumed type-system contract. Implementations must be safe
// for concurrent use. Any error returned by a Plugin is classified by the
// runtime as a generic type-resolution failure.
type Plugin interface {
	// RegisterSchema registers a type schema.
	RegisterSchema(schema Schema) error
	// GetSchema returns the schema registered for the given type id.
	GetSchema(typeID string) (Schema, bool)
	// Register records an instance so it can later be validated by id.
	Register(instance Instance) error
	// ValidateInstance validates a previously registered instance against its
	// claimed schema.
	ValidateInstance(instanceID string) (Result, error)
	// IsTypeOf reports whether typeID descends from (or equals) baseTypeID.
	IsTypeOf(typeID, baseTypeID string) (bool, error)
}
