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

package typesystem

import "github.com/hostmosaic/mosaic/internal/syncmap"

// noop is a permissive plugin that accepts every instance and treats type
// equality as the only hierarchy relation. It is the default plugin of a
// registry constructed without one.
type noop struct {
	schemas   *syncmap.SyncMap[string, Schema]
	instances *syncmap.SyncMap[string, Instance]
}

var _ Plugin = (*noop)(nil)

// Noop returns a permissive Plugin that validates nothing.
func Noop() Plugin {
	return &noop{
		schemas:   syncmap.New[string, Schema](),
		instances: syncmap.New[string, Instance](),
	}
}

func (n *noop) RegisterSchema(schema Schema) error {
	n.schemas.Set(schema.TypeID, schema)
	return nil
}

func (n *noop) GetSchema(typeID string) (Schema, bool) {
	return n.schemas.Get(typeID)
}

func (n *noop) Register(instance Instance) error {
	n.instances.Set(instance.ID, instance)
	return nil
}

func (n *noop) ValidateInstance(string) (Result, error) {
	return Result{Valid: true}, nil
}

func (n *noop) IsTypeOf(typeID, baseTypeID string) (bool, error) {
	return typeID == baseTypeID, nil
}
