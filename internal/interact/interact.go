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

// Package interact scores thread interactivity from voluntary sleep and run
// history, and tracks recent CPU utilization. All arithmetic is scaled
// integer math so results do not depend on floating point rounding.
package interact

import "go.uber.org/sched/priority"

const (
	// Max is the largest (least interactive) score.
	Max = 100
	// Half is the score of a thread that sleeps as much as it runs.
	Half = Max / 2
	// DefaultThreshold is the score below which a thread is interactive.
	DefaultThreshold = 30

	// TickShift is the fixed point shift applied to tick counts.
	TickShift = 10
)

// Ticks is a tick count scaled by 1<<TickShift.
type Ticks int64

// FromTicks converts a whole number of ticks.
func FromTicks(n int) Ticks {
	return Ticks(n) << TickShift
}

// Whole truncates to whole ticks.
func (t Ticks) Whole() int {
	return int(t >> TickShift)
}

// TickIncr is the run time charged per statistics clock tick.
func TickIncr(hz, stathz int) Ticks {
	if stathz <= 0 {
		stathz = hz
	}
	incr := FromTicks(hz) / Ticks(stathz)
	if incr == 0 {
		incr = 1
	}
	return incr
}

// SlpRunMax bounds how much history is kept, five seconds worth.
func SlpRunMax(hz int) Ticks {
	return FromTicks(hz * 5)
}

// SlpRunFork is the history a forked thread may inherit, half a second.
func SlpRunFork(hz int) Ticks {
	return FromTicks(hz / 2)
}

// History is the voluntary sleep and run time of a thread.
type History struct {
	Runtime Ticks
	Slptime Ticks
}

// Score returns the interactivity score in [0, Max]. Lower is more
// interactive. Threads that run more than they sleep score at least Half and
// threads that sleep more score at most Half; an empty history scores 0.
func (h History) Score() int {
	switch {
	case h.Runtime > h.Slptime:
		div := max64(1, h.Runtime/Half)
		if s := Half + (Half - int(h.Slptime/div)); s > Half {
			return s
		}
		return Half
	case h.Slptime > h.Runtime:
		div := max64(1, h.Slptime/Half)
		if s := int(h.Runtime / div); s < Half {
			return s
		}
		return Half
	case h.Runtime != 0:
		return Half
	default:
		return 0
	}
}

// Update decays the history once it exceeds SlpRunMax. Grossly oversized
// history collapses to the dominant side; otherwise both sides are halved
// or scaled to four fifths.
func (h *History) Update(hz int) {
	limit := SlpRunMax(hz)
	sum := h.Runtime + h.Slptime
	if sum < limit {
		return
	}

	if sum > limit*2 {
		if h.Runtime > h.Slptime {
			h.Runtime, h.Slptime = limit, 1
		} else {
			h.Slptime, h.Runtime = limit, 1
		}
		return
	}
	if sum > (limit/5)*6 {
		h.Runtime /= 2
		h.Slptime /= 2
		return
	}
	h.Runtime = (h.Runtime / 5) * 4
	h.Slptime = (h.Slptime / 5) * 4
}

// Fork scales inherited history down to SlpRunFork so the child is judged
// on its own behavior quickly.
func (h *History) Fork(hz int) {
	limit := SlpRunFork(hz)
	sum := h.Runtime + h.Slptime
	if limit <= 0 || sum <= limit {
		return
	}
	ratio := sum / limit
	h.Runtime /= ratio
	h.Slptime /= ratio
}

// Timeshare priorities reserve room on both sides for nice offsets.
const (
	niceReserve = priority.MaxNice - priority.MinNice
	niceHalf    = niceReserve / 2

	// BatchMin is the base priority of a non-interactive thread.
	BatchMin = int(priority.MinTimeshare) + niceHalf
	// BatchMax is the largest priority derived from CPU usage.
	BatchMax = int(priority.MaxTimeshare) - niceHalf
	// BatchRange is the spread of usage derived priorities.
	BatchRange = BatchMax - BatchMin
)

// Priority computes the user priority of a timeshare thread. Interactive
// threads land in the realtime band scaled by score. Others land in the
// timeshare band by recent CPU usage plus nice.
func Priority(h History, u Usage, nice, threshold, hz int) priority.Priority {
	score := h.Score() + nice
	if score < 0 {
		score = 0
	}

	var pri int
	if score < threshold {
		pri = int(priority.MinRealtime)
		pri += (int(priority.MaxRealtime-priority.MinRealtime) / threshold) * score
		if pri < int(priority.MinRealtime) || pri > int(priority.MaxRealtime) {
			panic("interact: interactive priority out of range")
		}
	} else {
		pri = BatchMin
		if u.Ticks != 0 {
			pri += u.PriTicks(hz)
		}
		pri += nice
		if pri < int(priority.MinTimeshare) || pri > int(priority.MaxTimeshare) {
			panic("interact: timeshare priority out of range")
		}
	}
	return priority.Priority(pri)
}

func max64(a, b Ticks) Ticks {
	if a > b {
		return a
	}
	return b
}
