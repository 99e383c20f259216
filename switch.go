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
	"sync"

	"go.uber.org/sched/api/platform"
)

// switchLocked takes td off q's CPU and dispatches the next thread. td is
// q's current thread and q's lock is held; it is still held on return. td
// is requeued if it is running, moved to another queue if it was assigned
// elsewhere, or parked on its own lock if it is going to sleep.
func (s *Scheduler) switchLocked(q *tdq, td *Thread, flags SwitchFlags) *Thread {
	if q.curthread != td {
		panic(fmt.Sprintf("sched: switching %v which is not current on cpu %d", td, q.id))
	}

	var mtx *sync.Mutex
	td.ts.rltick = s.Ticks()
	td.lastcpu = td.oncpu
	td.oncpu = -1
	td.flags &^= tdfNeedResched
	td.owepreempt = false
	q.switchcnt++
	s.obs.switched(flags)

	switch {
	case td.isIdle():
		td.state = CanRun
		mtx = &q.mu
	case td.isRunning():
		srq := AddOurself | AddYielding
		if flags&SwitchPreempt != 0 {
			srq |= AddPreempted
		}
		td.state = CanRun
		if td.ts.cpu == q.id {
			q.runqAdd(td, srq)
			mtx = &q.mu
		} else {
			mtx = s.switchMigrate(q, td, srq)
		}
	case td.state == Inhibited:
		// Wakers spin until the switch completes, then find the thread
		// on its own lock.
		td.lock.store(&blockedLock)
		q.loadRem(td)
		mtx = &td.own
	default:
		panic(fmt.Sprintf("sched: switching %v in state %v", td, td.state))
	}

	newtd := s.dispatch(q)
	if newtd != td {
		s.switcher.Switch(q.id, td, newtd)
	}
	td.lock.unblock(mtx)
	return newtd
}

// switchMigrate moves a running thread to the queue it was reassigned to.
// q's lock is released and reacquired; the returned mutex is the lock of
// the new queue, which is not held.
func (s *Scheduler) switchMigrate(q *tdq, td *Thread, flags AddFlags) *sync.Mutex {
	tdn := s.tdq(td.ts.cpu)
	q.loadRem(td)
	td.lock.block()
	// Both locks are taken before the thread becomes visible on tdn so no
	// third CPU can lock the pair while tdn spins on the blocked thread.
	lockPair(tdn, q)
	tdn.add(td, flags)
	s.notify(tdn, td)
	tdn.mu.Unlock()
	s.obs.migrations.inc()
	return &tdn.mu
}

// dispatch makes the most urgent thread on q current. q's lock is held.
func (s *Scheduler) dispatch(q *tdq) *Thread {
	newtd := q.chooseThread()
	// A thread handed over by a migrating CPU keeps a blocked lock until
	// that CPU finishes its switch.
	newtd.lock.spin()
	q.curthread = newtd
	newtd.state = Running
	newtd.oncpu = q.id
	return newtd
}

// throw dispatches the first thread of a CPU when td is nil, or abandons an
// exiting td. q's lock is released on return.
func (s *Scheduler) throw(q *tdq, td *Thread) *Thread {
	var from platform.Thread
	if td == nil {
		q.mu.Lock()
		cur := q.curthread
		if !cur.isIdle() {
			q.mu.Unlock()
			panic(fmt.Sprintf("sched: cpu %d entered while running %v", q.id, cur))
		}
		cur.state = CanRun
	} else {
		if q.curthread != td {
			panic(fmt.Sprintf("sched: %v exiting while not current on cpu %d", td, q.id))
		}
		q.loadRem(td)
		td.lastcpu = td.oncpu
		td.oncpu = -1
		td.state = Inactive
		td.lock.store(&td.own)
		from = td
	}
	newtd := s.dispatch(q)
	s.switcher.Switch(q.id, from, newtd)
	q.mu.Unlock()
	return newtd
}
