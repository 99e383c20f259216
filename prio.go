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
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/priority"
)

// The functions below run with the thread lock held. self is the CPU
// performing the operation and is used when a thread must be requeued.

// threadPriority changes the current priority of td, requeueing it if it
// became more urgent while queued and keeping lowpri current if it is
// running.
func (s *Scheduler) threadPriority(self *tdq, td *Thread, prio priority.Priority) {
	if td.priority == prio {
		return
	}
	if td.onRunq() && prio < td.priority {
		s.rem(td)
		td.priority = prio
		s.add(self, td, AddBorrowing)
		return
	}
	if td.isRunning() {
		q := s.tdq(td.oncpu)
		oldpri := td.priority
		td.priority = prio
		if prio < q.lowestPri() {
			q.lowpri.Store(int32(prio))
		} else if q.lowestPri() == oldpri {
			q.setLowpri(td)
		}
		return
	}
	td.priority = prio
}

// lendPrio raises td to prio on behalf of another thread.
func (s *Scheduler) lendPrio(self *tdq, td *Thread, prio priority.Priority) {
	td.flags |= tdfBorrowing
	s.threadPriority(self, td, prio)
}

// unlendPrio ends a loan. prio is the priority td must keep to satisfy
// other loans; when it is no more urgent than the base, the loan ends.
func (s *Scheduler) unlendPrio(self *tdq, td *Thread, prio priority.Priority) {
	base := td.basePri
	if priority.BandOf(base) == priority.BandTimeshare {
		base = td.userPri
	}
	if prio >= base {
		td.flags &^= tdfBorrowing
		s.threadPriority(self, td, base)
		return
	}
	s.lendPrio(self, td, prio)
}

// prio sets the base priority. A borrowed priority is never lowered.
func (s *Scheduler) prio(self *tdq, td *Thread, prio priority.Priority) {
	td.basePri = prio
	if td.flags&tdfBorrowing != 0 && td.priority < prio {
		return
	}
	s.threadPriority(self, td, prio)
}

// userPrio sets the base user priority without touching the running one.
func (s *Scheduler) userPrio(td *Thread, prio priority.Priority) {
	td.baseUserPri = prio
	if td.flags&tdfUBorrowing != 0 && td.userPri <= prio {
		return
	}
	td.userPri = prio
}

func (s *Scheduler) lendUserPrio(td *Thread, prio priority.Priority) {
	td.flags |= tdfUBorrowing
	td.userPri = prio
}

func (s *Scheduler) unlendUserPrio(td *Thread, prio priority.Priority) {
	base := td.baseUserPri
	if prio >= base {
		td.flags &^= tdfUBorrowing
		s.userPrio(td, base)
		return
	}
	s.lendUserPrio(td, prio)
}

// sleep records when td went to sleep and applies the static boost.
func (s *Scheduler) sleep(self *tdq, td *Thread, prio priority.Priority) {
	td.slptick = s.Ticks()
	boost := s.tun.staticBoost()
	switch {
	case boost == 1:
		if prio != 0 {
			s.prio(self, td, prio)
		}
	case boost != 0 && int(td.priority) > boost:
		s.prio(self, td, priority.Priority(boost))
	}
}

// wakeup charges the time td slept and queues it.
func (s *Scheduler) wakeup(self *tdq, td *Thread) {
	now := s.Ticks()
	slptick := td.slptick
	td.slptick = 0
	if slptick != 0 && slptick != now {
		td.ts.hist.Slptime += interact.FromTicks(now - slptick)
		td.ts.hist.Update(s.hz)
		td.ts.usage.Update(now, s.hz)
	}
	td.ts.slice = s.tun.slice()
	td.state = CanRun
	s.add(self, td, AddBoring)
}

// fork initializes child from td and penalizes both for the fork. The
// child inherits a reduced share of the history so it is judged quickly on
// its own behavior.
func (s *Scheduler) fork(td, child *Thread) {
	child.cpuset = td.cpuset.Clone()
	child.ts.cpu = td.ts.cpu
	child.ts.flags = 0
	child.ts.usage = td.ts.usage
	child.userPri = td.userPri
	child.baseUserPri = td.baseUserPri
	child.ts.hist = td.ts.hist
	child.ts.slice = 1

	child.ts.hist.Fork(s.hz)
	s.priority(child)

	td.ts.hist.Runtime += s.tickincr
	td.ts.hist.Update(s.hz)
	s.priority(td)
}

// exitThread charges the run time of an exiting child to td. Sleep time is
// not returned, so parents of expensive children look expensive.
func (s *Scheduler) exitThread(td, child *Thread) {
	td.lock.lock()
	td.ts.hist.Runtime += child.ts.hist.Runtime
	td.ts.hist.Update(s.hz)
	s.priority(td)
	td.lock.unlock()
}

// affinity enforces a changed CPU set.
func (s *Scheduler) affinity(self *tdq, td *Thread) {
	if td.canSched(td.ts.cpu) {
		return
	}
	if td.onRunq() {
		s.rem(td)
		s.add(self, td, AddBoring)
		return
	}
	if !td.isRunning() {
		return
	}
	td.flags |= tdfNeedResched
	if !td.canMigrate() {
		return
	}
	cpu := td.ts.cpu
	td.ts.cpu = s.pickCPU(self, td, AddBoring)
	if cpu != self.id {
		s.interrupter.SendPreempt(cpu)
	}
}
