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
	"go.uber.org/sched/internal/runq"
	"go.uber.org/sched/priority"
)

// clockTick handles a statistics clock tick on q for its current thread.
// q's lock is held; the balancer may drop and retake it.
func (s *Scheduler) clockTick(q *tdq, td *Thread) {
	if q == s.balanceTdq && s.balanceTicks.Load() != 0 && s.balanceTicks.Dec() == 0 {
		s.balance(q)
	}

	q.oldswitchcnt = q.switchcnt
	q.switchcnt = int(q.load.Load())

	// Advance the insertion index once per tick so every timeshare slot
	// eventually drains.
	if q.idx == q.ridx {
		q.idx = (q.idx + 1) % runq.NumQueues
		if q.timeshare.SlotEmpty(q.ridx) {
			q.ridx = q.idx
		}
	}

	if td.class.IsFIFO() || td.isIdle() {
		return
	}
	if td.class == priority.ClassTimeshare {
		td.ts.hist.Runtime += s.tickincr
		td.ts.hist.Update(s.hz)
		s.priority(td)
	}

	td.ts.slice--
	if td.ts.slice > 0 {
		return
	}
	td.ts.slice = s.tun.slice()
	td.flags |= tdfNeedResched
}

// hzTick charges a hardclock tick to td for its CPU usage estimate.
func (s *Scheduler) hzTick(td *Thread) {
	td.ts.usage.Tick(s.Ticks(), s.hz)
}
