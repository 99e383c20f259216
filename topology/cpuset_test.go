// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPUSet(t *testing.T) {
	var s CPUSet
	assert.True(t, s.Empty())
	assert.Equal(t, "0x0", s.Hex())

	s.Set(0)
	s.Set(3)
	s.Set(65)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []int{0, 3, 65}, s.CPUs())
	assert.True(t, s.IsSet(65))
	assert.False(t, s.IsSet(64))
	assert.False(t, s.IsSet(1000))
	assert.Equal(t, "0x20000000000000009", s.Hex())
	assert.Equal(t, "0, 3, 65", s.String())

	s.Clear(3)
	s.Clear(1000)
	assert.Equal(t, []int{0, 65}, s.CPUs())
}

func TestCPUSetClone(t *testing.T) {
	s := Fill(4)
	c := s.Clone()
	c.Clear(2)

	assert.True(t, s.IsSet(2), "clearing the clone must not affect the original")
	assert.True(t, c.SubsetOf(s))
	assert.False(t, s.SubsetOf(c))
	assert.True(t, s.Equal(Fill(4)))
	assert.True(t, NewCPUSet(0, 1).Union(NewCPUSet(2, 3)).Equal(s))
}

func TestCPUSetNegative(t *testing.T) {
	var s CPUSet
	assert.Panics(t, func() { s.Set(-1) })
	assert.False(t, s.IsSet(-1))
}
