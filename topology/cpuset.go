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
	"fmt"
	"math/bits"
	"strings"
)

const _wordBits = 64

// CPUSet is a set of CPU ids. The zero value is an empty set.
//
// CPUSet methods that modify the set require a pointer receiver. Use Clone
// before modifying a set that is shared.
type CPUSet struct {
	words []uint64
}

// NewCPUSet returns a set containing the given CPUs.
func NewCPUSet(cpus ...int) CPUSet {
	var s CPUSet
	for _, cpu := range cpus {
		s.Set(cpu)
	}
	return s
}

// Fill returns a set containing CPUs 0 through n-1.
func Fill(n int) CPUSet {
	var s CPUSet
	for cpu := 0; cpu < n; cpu++ {
		s.Set(cpu)
	}
	return s
}

// Set adds cpu to the set.
func (s *CPUSet) Set(cpu int) {
	if cpu < 0 {
		panic(fmt.Sprintf("topology: invalid cpu %d", cpu))
	}
	w := cpu / _wordBits
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	s.words[w] |= 1 << uint(cpu%_wordBits)
}

// Clear removes cpu from the set.
func (s *CPUSet) Clear(cpu int) {
	w := cpu / _wordBits
	if cpu < 0 || w >= len(s.words) {
		return
	}
	s.words[w] &^= 1 << uint(cpu%_wordBits)
}

// IsSet reports whether cpu is in the set.
func (s CPUSet) IsSet(cpu int) bool {
	w := cpu / _wordBits
	if cpu < 0 || w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<uint(cpu%_wordBits)) != 0
}

// Count returns the number of CPUs in the set.
func (s CPUSet) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether the set has no CPUs.
func (s CPUSet) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share storage with s.
func (s CPUSet) Clone() CPUSet {
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return CPUSet{words: words}
}

// Union returns the CPUs in either s or o.
func (s CPUSet) Union(o CPUSet) CPUSet {
	r := s.Clone()
	for i, w := range o.words {
		if i < len(r.words) {
			r.words[i] |= w
		} else {
			r.words = append(r.words, w)
		}
	}
	return r
}

// SubsetOf reports whether every CPU in s is also in o.
func (s CPUSet) SubsetOf(o CPUSet) bool {
	for i, w := range s.words {
		var ow uint64
		if i < len(o.words) {
			ow = o.words[i]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both sets contain the same CPUs.
func (s CPUSet) Equal(o CPUSet) bool {
	return s.SubsetOf(o) && o.SubsetOf(s)
}

// CPUs returns the members of the set in ascending order.
func (s CPUSet) CPUs() []int {
	cpus := make([]int, 0, s.Count())
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			cpus = append(cpus, i*_wordBits+b)
			w &^= 1 << uint(b)
		}
	}
	return cpus
}

// Hex renders the set as a hexadecimal mask, most significant word first.
func (s CPUSet) Hex() string {
	n := len(s.words)
	for n > 0 && s.words[n-1] == 0 {
		n--
	}
	if n == 0 {
		return "0x0"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "0x%x", s.words[n-1])
	for i := n - 2; i >= 0; i-- {
		fmt.Fprintf(&b, "%016x", s.words[i])
	}
	return b.String()
}

// String renders the set as a comma separated list of CPUs.
func (s CPUSet) String() string {
	cpus := s.CPUs()
	parts := make([]string, len(cpus))
	for i, cpu := range cpus {
		parts[i] = fmt.Sprint(cpu)
	}
	return strings.Join(parts, ", ")
}
