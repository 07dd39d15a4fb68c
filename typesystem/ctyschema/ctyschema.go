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

// Package ctyschema provides a reference typesystem.Plugin built on the cty
// type system. Schemas declare a cty object type as their Spec; instances are
// validated by converting their value into that type. Type hierarchy is
// nominal through the schema Extends chain.
package ctyschema

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/hostmosaic/mosaic/internal/syncmap"
	"github.com/hostmosaic/mosaic/typesystem"
)

// ErrUnknownType is returned when a schema or instance references a type id
// that has not been registered.
var ErrUnknownType = errors.New("type is not registered")

// ErrInvalidSpec is returned when a schema Spec is not a cty object type.
var ErrInvalidSpec = errors.New("schema spec must be a cty object type")

// Plugin implements typesystem.Plugin with cty object types.
type Plugin struct {
	schemas   *syncmap.SyncMap[string, typesystem.Schema]
	instances *syncmap.SyncMap[string, typesystem.Instance]
}

var _ typesystem.Plugin = (*Plugin)(nil)

// New creates a cty-backed type system plugin.
func New() *Plugin {
	return &Plugin{
		schemas:   syncmap.New[string, typesystem.Schema](),
		instances: syncmap.New[string, typesystem.Instance](),
	}
}

// RegisterSchema registers a schema whose Spec is a cty.Type of object kind.
// A schema extending another type must reference a registered base schema.
func (p *Plugin) RegisterSchema(schema typesystem.Schema) error {
	spec, ok := schema.Spec.(cty.Type)
	if !ok || !spec.IsObjectType() {
		return fmt.Errorf("schema=(%s): %w", schema.TypeID, ErrInvalidSpec)
	}
	if schema.Extends != "" {
		if _, found := p.schemas.Get(schema.Extends); !found {
			return fmt.Errorf("schema=(%s) extends=(%s): %w", schema.TypeID, schema.Extends, ErrUnknownType)
		}
	}
	p.schemas.Set(schema.TypeID, schema)
	return nil
}

// GetSchema returns the schema registered for the given type id.
func (p *Plugin) GetSchema(typeID string) (typesystem.Schema, bool) {
	return p.schemas.Get(typeID)
}

// Register records an instance for later validation.
func (p *Plugin) Register(instance typesystem.Instance) error {
	if instance.ID == "" {
		return errors.New("instance id is required")
	}
	p.instances.Set(instance.ID, instance)
	return nil
}

// ValidateInstance validates the instance value against the effective object
// type of its claimed schema, attributes inherited through the Extends chain
// included. An instance claiming an unregistered type is a plugin error, not
// an invalid result.
func (p *Plugin) ValidateInstance(instanceID string) (typesystem.Result, error) {
	instance, ok := p.instances.Get(instanceID)
	if !ok {
		return typesystem.Result{}, fmt.Errorf("instance=(%s): %w", instanceID, ErrUnknownType)
	}

	objectType, err := p.effectiveType(instance.TypeID)
	if err != nil {
		return typesystem.Result{}, err
	}

	impliedType, err := gocty.ImpliedType(instance.Value)
	if err != nil {
		return typesystem.Result{Errors: []string{err.Error()}}, nil
	}
	value, err := gocty.ToCtyValue(instance.Value, impliedType)
	if err != nil {
		return typesystem.Result{Errors: []string{err.Error()}}, nil
	}
	if _, err = convert.Convert(value, objectType); err != nil {
		return typesystem.Result{Errors: []string{err.Error()}}, nil
	}
	return typesystem.Result{Valid: true}, nil
}

// IsTypeOf walks the Extends chain from typeID looking for baseTypeID.
func (p *Plugin) IsTypeOf(typeID, baseTypeID string) (bool, error) {
	current := typeID
	for current != "" {
		if current == baseTypeID {
			return true, nil
		}
		schema, ok := p.schemas.Get(current)
		if !ok {
			return false, fmt.Errorf("type=(%s): %w", current, ErrUnknownType)
		}
		current = schema.Extends
	}
	return false, nil
}

// effectiveType merges the object attributes of the schema and all of its
// ancestors. Attributes redeclared by a subtype shadow the base declaration.
func (p *Plugin) effectiveType(typeID string) (cty.Type, error) {
	attributes := make(map[string]cty.Type)
	current := typeID
	for current != "" {
		schema, ok := p.schemas.Get(current)
		if !ok {
			return cty.NilType, fmt.Errorf("type=(%s): %w", current, ErrUnknownType)
		}
		spec := schema.Spec.(cty.Type)
		for name, attrType := range spec.AttributeTypes() {
			if _, shadowed := attributes[name]; !shadowed {
				attributes[name] = attrType
			}
		}
		current = schema.Extends
	}
	return cty.Object(attributes), nil
}
