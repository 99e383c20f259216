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

// Package topology describes how CPUs share caches and buses.
//
// A topology is a tree of Groups. The root spans every CPU in the system and
// each level below it groups CPUs that share a closer cache. Leaves are the
// smallest groups and each CPU belongs to exactly one leaf. The tree is built
// once and is read-only afterwards, so it may be shared between goroutines
// without locking.
package topology

import (
	"fmt"

	"go.uber.org/multierr"
)

// CacheLevel is the cache level shared by all CPUs in a group.
type CacheLevel int

// Cache sharing levels.
const (
	ShareNone CacheLevel = 0
	ShareL1   CacheLevel = 1
	ShareL2   CacheLevel = 2
	ShareL3   CacheLevel = 3
)

// Flags describe properties of a group.
type Flags int

// Group flags.
const (
	// FlagHTT marks a group of hyper-threaded logical CPUs.
	FlagHTT Flags = 1 << iota
	// FlagSMT marks a group of SMT siblings.
	FlagSMT

	// FlagThread is set on groups whose CPUs are hardware threads of one
	// core.
	FlagThread = FlagHTT | FlagSMT
)

// Group is a node of the topology tree.
type Group struct {
	Parent   *Group
	Children []*Group
	Mask     CPUSet
	Level    CacheLevel
	Flags    Flags
}

// Count returns the number of CPUs spanned by the group.
func (g *Group) Count() int {
	return g.Mask.Count()
}

// IsThreadGroup reports whether the group's CPUs are hardware threads.
func (g *Group) IsThreadGroup() bool {
	return g.Flags&FlagThread != 0
}

// Find returns the leaf group containing cpu, or nil if no group does.
func (g *Group) Find(cpu int) *Group {
	if !g.Mask.IsSet(cpu) {
		return nil
	}
	for _, child := range g.Children {
		if found := child.Find(cpu); found != nil {
			return found
		}
	}
	if len(g.Children) > 0 {
		// Spanned by this group but by none of its children.
		return nil
	}
	return g
}

// Depth returns the distance from the root.
func (g *Group) Depth() int {
	d := 0
	for p := g.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Validate checks that every CPU in [0, ncpu) has a leaf group and that
// every child group is contained in its parent.
func (g *Group) Validate(ncpu int) error {
	var err error
	if g.Parent != nil {
		err = multierr.Append(err, fmt.Errorf("topology root has a parent"))
	}
	for cpu := 0; cpu < ncpu; cpu++ {
		if g.Find(cpu) == nil {
			err = multierr.Append(err, fmt.Errorf("cpu %d has no group", cpu))
		}
	}
	return multierr.Append(err, g.validateChildren())
}

func (g *Group) validateChildren() error {
	var err error
	var seen CPUSet
	for i, child := range g.Children {
		if child.Parent != g {
			err = multierr.Append(err, fmt.Errorf("group %v child %d has wrong parent", g.Mask, i))
		}
		if !child.Mask.SubsetOf(g.Mask) {
			err = multierr.Append(err, fmt.Errorf("group %v is not contained in parent %v", child.Mask, g.Mask))
		}
		for _, cpu := range child.Mask.CPUs() {
			if seen.IsSet(cpu) {
				err = multierr.Append(err, fmt.Errorf("cpu %d appears in more than one child of %v", cpu, g.Mask))
			}
			seen.Set(cpu)
		}
		err = multierr.Append(err, child.validateChildren())
	}
	return err
}

// Add attaches child below g and returns child.
func (g *Group) Add(child *Group) *Group {
	child.Parent = g
	g.Children = append(g.Children, child)
	return child
}
