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

package sched

import (
	"math"

	"go.uber.org/sched/topology"
)

type searchMode int

const (
	searchLowest searchMode = 1 << iota
	searchHighest
	searchBoth = searchLowest | searchHighest
)

// searchResult is the best CPU found by a search, or cpu -1.
type searchResult struct {
	cpu  int
	load int
}

// searchQuery describes one side of a search. For the lowest side limit is
// the priority a CPU's lowpri must exceed; for the highest side it is the
// minimum load.
type searchQuery struct {
	mask  topology.CPUSet
	limit int
}

func noLow() searchResult  { return searchResult{cpu: -1, load: math.MaxInt32} }
func noHigh() searchResult { return searchResult{cpu: -1, load: 0} }

// search walks the group tree and returns the group's total load along with
// the least and most loaded acceptable CPUs. At each level it follows the
// least (or most) loaded child that produced a candidate, so the result is
// the best CPU on the best path rather than the global extreme.
func (s *Scheduler) search(cg *topology.Group, mode searchMode, lq, hq searchQuery) (total int, low, high searchResult) {
	low, high = noLow(), noHigh()

	if len(cg.Children) == 0 {
		for _, cpu := range cg.Mask.CPUs() {
			q := s.tdq(cpu)
			if q == nil {
				continue
			}
			load := int(q.load.Load())
			total += load
			if mode&searchLowest != 0 &&
				lq.mask.IsSet(cpu) &&
				load < low.load &&
				int(q.lowpri.Load()) > lq.limit {
				low = searchResult{cpu: cpu, load: load}
			}
			if mode&searchHighest != 0 &&
				hq.mask.IsSet(cpu) &&
				load >= hq.limit &&
				load > high.load &&
				q.transferable.Load() > 0 {
				high = searchResult{cpu: cpu, load: load}
			}
		}
		return total, low, high
	}

	lload, hload := math.MaxInt32, -1
	for _, child := range cg.Children {
		load, clow, chigh := s.search(child, mode, lq, hq)
		total += load
		if mode&searchLowest != 0 && clow.cpu != -1 &&
			(load < lload || low.cpu == -1) {
			low, lload = clow, load
		}
		if mode&searchHighest != 0 && chigh.cpu != -1 &&
			(load > hload || high.cpu == -1) {
			high, hload = chigh, load
		}
	}
	return total, low, high
}

// lowest returns the least loaded CPU on the least loaded path whose most
// urgent priority is above pri. A pri of -1 accepts any CPU.
func (s *Scheduler) lowest(cg *topology.Group, mask topology.CPUSet, pri int) int {
	_, low, _ := s.search(cg, searchLowest, searchQuery{mask: mask, limit: pri}, searchQuery{})
	return low.cpu
}

// highest returns the most loaded CPU on the most loaded path with at
// least minload threads and something to transfer.
func (s *Scheduler) highest(cg *topology.Group, mask topology.CPUSet, minload int) int {
	_, _, high := s.search(cg, searchHighest, searchQuery{}, searchQuery{mask: mask, limit: minload})
	return high.cpu
}

// both runs the lowest and highest searches in one walk with no limits.
func (s *Scheduler) both(cg *topology.Group, mask topology.CPUSet) (low, high int) {
	q := searchQuery{mask: mask, limit: -1}
	_, l, h := s.search(cg, searchBoth, q, q)
	return l.cpu, h.cpu
}
