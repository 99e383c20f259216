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
	"fmt"

	"go.uber.org/sched/priority"
)

// shouldPreempt reports whether a thread at pri should displace one running
// at cpri. remote is set when the decision is made for another CPU.
func (s *Scheduler) shouldPreempt(pri, cpri priority.Priority, remote bool) bool {
	if pri >= cpri {
		return false
	}
	// Idle is always preempted.
	if cpri >= priority.MinIdle {
		return true
	}
	thresh := s.tun.preemptThresh()
	if thresh == 0 {
		return false
	}
	if int(pri) <= thresh {
		return true
	}
	// Realtime work displaces timeshare work only on other CPUs.
	return remote && pri <= priority.MaxRealtime && cpri > priority.MaxRealtime
}

// setCPU assigns td to cpu and moves its lock to that CPU's queue, which is
// returned locked. The thread lock is held on entry.
func (s *Scheduler) setCPU(td *Thread, cpu int) *tdq {
	q := s.tdq(cpu)
	td.ts.cpu = cpu
	if td.lock.owned(&q.mu) {
		return q
	}
	// Blocking first keeps other CPUs spinning rather than locking the
	// thread through its old mutex while we take the new one.
	td.lock.block()
	q.mu.Lock()
	td.lock.unblock(&q.mu)
	return q
}

// add is sched_add: recompute a timeshare priority, pick a CPU, queue the
// thread there and either notify the remote CPU or request local
// preemption. The thread lock is held on entry; on return it is the lock
// of the chosen queue.
func (s *Scheduler) add(self *tdq, td *Thread, flags AddFlags) {
	if td.class.Base() == priority.ClassTimeshare {
		s.priority(td)
	}
	cpu := s.pickCPU(self, td, flags)
	q := s.setCPU(td, cpu)
	q.add(td, flags)
	if cpu != self.id {
		s.notify(q, td)
		return
	}
	if flags&AddYielding == 0 {
		s.setPreempt(self, td)
	}
}

// rem takes a queued thread off its CPU without running it. The thread's
// queue lock is held.
func (s *Scheduler) rem(td *Thread) {
	q := s.tdq(td.ts.cpu)
	if !td.lock.owned(&q.mu) {
		panic(fmt.Sprintf("sched: removing %v without its queue lock", td))
	}
	if !td.onRunq() {
		panic(fmt.Sprintf("sched: %v is not on a run queue", td))
	}
	q.runqRem(td)
	q.loadRem(td)
	td.state = CanRun
	if td.priority == q.lowestPri() {
		q.setLowpri(nil)
	}
}

// chooseThread pops the most urgent thread, falling back to the idle
// thread. The queue lock is held.
func (q *tdq) chooseThread() *Thread {
	td := q.choose()
	if td != nil {
		td.ts.usage.LTick = q.s.Ticks()
		q.runqRem(td)
		q.lowpri.Store(int32(td.priority))
		return td
	}
	q.lowpri.Store(int32(priority.MaxIdle))
	return q.idlethread
}

// notify tells the CPU owning q about td if td should preempt what it is
// running. The queue lock is held.
func (s *Scheduler) notify(q *tdq, td *Thread) {
	if q.ipipending {
		return
	}
	ctd := q.curthread
	if !s.shouldPreempt(td.priority, ctd.priority, true) {
		return
	}
	s.obs.notifications.inc()
	if ctd.isIdle() && s.interrupter.WakeIdle(q.id) {
		s.obs.idleWakeups.inc()
		return
	}
	q.ipipending = true
	s.interrupter.SendPreempt(q.id)
}

// setPreempt asks for a reschedule of the current thread when td is more
// urgent, and for preemption at the end of the critical section when the
// difference warrants it.
func (s *Scheduler) setPreempt(self *tdq, td *Thread) {
	ctd := self.curthread
	pri, cpri := td.priority, ctd.priority
	if pri < cpri {
		ctd.flags |= tdfNeedResched
	}
	if pri >= cpri || ctd.state == Inhibited {
		return
	}
	if !s.shouldPreempt(pri, cpri, false) {
		return
	}
	ctd.owepreempt = true
}
