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
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

// affine reports whether td ran recently enough to still be warm in caches
// shared at level.
func (s *Scheduler) affine(td *Thread, level topology.CacheLevel) bool {
	return td.ts.rltick > s.Ticks()-int(level)*s.tun.affinity()
}

// pickCPU chooses the CPU td should be queued on when added from self.
func (s *Scheduler) pickCPU(self *tdq, td *Thread, flags AddFlags) int {
	if !s.smp {
		return self.id
	}
	// A running thread requeued by its own switch stays put, as do threads
	// that may not migrate.
	if flags&AddOurself != 0 || !td.canMigrate() {
		return td.ts.cpu
	}

	// Interrupt threads prefer the CPU that took the interrupt.
	if td.priority <= priority.MaxIthd && td.canSched(self.id) &&
		(flags&AddIntr != 0 || self.curthread.intrNesting.Load() > 0) &&
		td.ts.cpu != self.id {
		s.obs.pickIntrBind.inc()
		td.ts.cpu = self.id
	}

	// Run where it last ran if that CPU is idle or still warm and running
	// something less urgent.
	pri := td.priority
	last := s.tdq(td.ts.cpu)
	if last != nil && td.canSched(td.ts.cpu) {
		if last.lowestPri() > priority.MinIdle {
			s.obs.pickIdleAffinity.inc()
			return td.ts.cpu
		}
		if s.affine(td, topology.ShareL2) && last.lowestPri() > pri {
			s.obs.pickAffinity.inc()
			return td.ts.cpu
		}
	}

	// Search the widest group that is still warm, then everything.
	var cg *topology.Group
	if last != nil {
		for cg = last.cg; cg != nil; cg = cg.Parent {
			if s.affine(td, cg.Level) {
				break
			}
		}
	}
	cpu := -1
	if cg != nil {
		cpu = s.lowest(cg, td.cpuset, int(pri))
	}
	if cpu == -1 {
		cpu = s.lowest(s.top, td.cpuset, -1)
	}

	if td.canSched(self.id) && self.lowestPri() > pri &&
		(cpu == -1 || s.tdq(cpu).lowestPri() < priority.MinIdle) {
		s.obs.pickLocal.inc()
		cpu = self.id
	} else if cpu != -1 {
		s.obs.pickLowest.inc()
	}

	if cpu == -1 {
		// The affinity mask names no registered CPU.
		s.obs.pickFallback.inc()
		s.sampled.Warn("no cpu satisfies thread affinity, running locally",
			zap.Stringer("thread", td),
			zap.Stringer("cpuset", td.cpuset),
			zap.Int("cpu", self.id))
		cpu = self.id
	}
	if cpu != td.ts.cpu {
		s.obs.pickMigration.inc()
	}
	return cpu
}
