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

package syncmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMap(t *testing.T) {
	m := New[string, int]()
	m.Set("one", 1)
	m.Set("two", 2)

	value, ok := m.Get("one")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = m.Get("three")
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len())
	assert.ElementsMatch(t, []string{"one", "two"}, m.Keys())

	m.Delete("one")
	_, ok = m.Get("one")
	assert.False(t, ok)

	seen := make(map[string]int)
	m.Range(func(k string, v int) { seen[k] = v })
	assert.Equal(t, map[string]int{"two": 2}, seen)

	m.Reset()
	assert.Zero(t, m.Len())
}

func TestSyncMapConcurrent(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Set(i, i*i)
			_, _ = m.Get(i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, m.Len())
}
