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

package interact

const (
	// TickSecs is the length of the CPU usage window in seconds.
	TickSecs = 10

	// FShift is the shift of the fixed point CPU fraction.
	FShift = 11
	// FScale is 1.0 in the fixed point CPU fraction.
	FScale = 1 << FShift
)

func tickTarget(hz int) int { return hz * TickSecs }

func tickMax(hz int) int { return tickTarget(hz) + hz }

// Usage is a sliding window of CPU ticks used for %CPU and for the batch
// priority of a thread. FTick and LTick bound the window in clock ticks.
type Usage struct {
	Ticks    Ticks
	FTick    int
	LTick    int
	IncrTick int
}

// Reset starts an empty window at now.
func (u *Usage) Reset(now int) {
	u.Ticks = 0
	u.FTick = now
	u.LTick = now
	u.IncrTick = now
}

func (u Usage) total(hz int) int {
	if t := u.LTick - u.FTick; t > hz {
		return t
	}
	return hz
}

// PriTicks maps recent CPU usage onto [0, BatchRange].
func (u Usage) PriTicks(hz int) int {
	total := u.total(hz)
	per := ((total + BatchRange - 1) / BatchRange * BatchRange) / BatchRange
	if per == 0 {
		per = 1
	}
	if t := u.Ticks.Whole() / per; t < BatchRange {
		return t
	}
	return BatchRange
}

// Tick charges one clock tick to the running thread. Repeated calls within
// the same tick are ignored.
func (u *Usage) Tick(now, hz int) {
	if u.IncrTick == now {
		return
	}
	u.Ticks += FromTicks(1)
	u.LTick = now
	u.IncrTick = now
	if u.FTick+tickMax(hz) < u.LTick {
		u.Update(now, hz)
	}
}

// Update slides the window so that it covers at most TickSecs, scaling the
// accumulated ticks to the new length. Windows that aged out entirely are
// cleared.
func (u *Usage) Update(now, hz int) {
	if u.Ticks == 0 {
		return
	}
	if now-hz/10 < u.LTick && u.total(hz) < tickMax(hz) {
		return
	}

	target := tickTarget(hz)
	if u.LTick > now-target {
		span := now - u.FTick
		if span <= 0 {
			span = 1
		}
		u.Ticks = (u.Ticks / Ticks(span)) * Ticks(target)
	} else {
		u.Ticks = 0
	}
	u.LTick = now
	u.FTick = now - target
}

// PctCPU returns the recent CPU fraction scaled by FScale.
func (u *Usage) PctCPU(now, hz int) int {
	if u.Ticks == 0 {
		return 0
	}
	u.Update(now, hz)
	rtick := u.Ticks.Whole() / TickSecs
	if rtick > hz {
		rtick = hz
	}
	return (FScale * ((FScale * rtick) / hz)) >> FShift
}

// Percent converts a PctCPU result.
func Percent(pct int) float64 {
	return float64(pct) * 100 / FScale
}
