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

	"go.uber.org/atomic"
	"go.uber.org/sched/internal/runq"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
)

// _tsPPQ is the number of timeshare priorities per slot. The band is as
// wide as the queue so every priority has its own slot.
const _tsPPQ = (int(priority.MaxTimeshare-priority.MinTimeshare) + 1) / runq.NumQueues

var _tdqSeq atomic.Int64

// tdq is the run queue of one CPU. Fields are protected by mu except the
// atomics, which other CPUs read without it while searching for a target.
type tdq struct {
	id  int
	seq int64 // lock order, unique across schedulers
	s   *Scheduler
	mu  sync.Mutex
	cg  *topology.Group

	load         atomic.Int32
	sysload      atomic.Int32
	transferable atomic.Int32
	lowpri       atomic.Int32

	switchcnt    int
	oldswitchcnt int
	ipipending   bool

	// idx is where timeshare threads are inserted; ridx is where they are
	// removed. ridx trails idx by at most a slot while that slot drains.
	idx  int
	ridx int

	realtime  runq.Queue
	timeshare runq.Queue
	idle      runq.Queue

	curthread  *Thread
	idlethread *Thread
}

func newTdq(s *Scheduler, id int) *tdq {
	q := &tdq{id: id, seq: _tdqSeq.Inc(), s: s}
	q.lowpri.Store(int32(priority.MaxIdle))

	idle := newThread(nil, int(s.nextTID.Inc()), fmt.Sprintf("idle: cpu%d", id))
	idle.flags |= tdfIdle | tdfNoLoad
	idle.class = priority.ClassIdle
	idle.priority = priority.MaxIdle
	idle.basePri = priority.MaxIdle
	idle.userPri = priority.MaxIdle
	idle.baseUserPri = priority.MaxIdle
	idle.cpuset = topology.NewCPUSet(id)
	idle.pinned = 1
	idle.ts.cpu = id
	idle.state = Running
	idle.oncpu = id
	idle.lock.store(&q.mu)

	q.idlethread = idle
	q.curthread = idle
	return q
}

// runqAdd places td on the queue matching its priority and counts it as
// transferable if it may migrate.
func (q *tdq) runqAdd(td *Thread, flags AddFlags) {
	pri := td.priority
	td.state = RunQ
	if td.canMigrate() {
		q.transferable.Inc()
		td.ts.flags |= tsfXferable
	}

	preempted := flags&AddPreempted != 0
	switch priority.BandOf(pri) {
	case priority.BandRealtime:
		td.ts.runq = &q.realtime
		q.realtime.Add(td.ts.entry, pri, preempted)
	case priority.BandTimeshare:
		td.ts.runq = &q.timeshare
		var slot int
		if flags&(AddBorrowing|AddPreempted) == 0 {
			slot = (int(pri-priority.MinTimeshare)/_tsPPQ + q.idx) % runq.NumQueues
			// Keeps a one slot gap between idx and ridx while the removal
			// slot drains.
			if q.ridx != q.idx && slot == q.ridx {
				slot = (slot - 1 + runq.NumQueues) % runq.NumQueues
			}
		} else {
			slot = q.ridx
		}
		q.timeshare.AddSlot(td.ts.entry, slot, preempted)
	default:
		td.ts.runq = &q.idle
		q.idle.Add(td.ts.entry, pri, preempted)
	}
}

// runqRem takes td off its queue.
func (q *tdq) runqRem(td *Thread) {
	if td.ts.runq == nil {
		panic(fmt.Sprintf("sched: %v is not on a run queue of cpu %d", td, q.id))
	}
	if td.ts.flags&tsfXferable != 0 {
		q.transferable.Dec()
		td.ts.flags &^= tsfXferable
	}
	if td.ts.runq == &q.timeshare {
		if q.idx != q.ridx {
			q.timeshare.RemoveIdx(td.ts.entry, &q.ridx)
		} else {
			q.timeshare.RemoveIdx(td.ts.entry, nil)
		}
	} else {
		td.ts.runq.Remove(td.ts.entry)
	}
	td.ts.runq = nil
}

// loadAdd counts a thread that is running or queued here.
func (q *tdq) loadAdd(td *Thread) {
	q.load.Inc()
	if td.flags&tdfNoLoad == 0 {
		q.sysload.Inc()
	}
}

func (q *tdq) loadRem(td *Thread) {
	if q.load.Load() == 0 {
		panic(fmt.Sprintf("sched: removing load of %v from empty cpu %d", td, q.id))
	}
	q.load.Dec()
	if td.flags&tdfNoLoad == 0 {
		q.sysload.Dec()
	}
}

// setLowpri recomputes the most urgent priority among the queued threads
// and ctd, which defaults to the current thread.
func (q *tdq) setLowpri(ctd *Thread) {
	if ctd == nil {
		ctd = q.curthread
	}
	td := q.choose()
	if td == nil || td.priority > ctd.priority {
		q.lowpri.Store(int32(ctd.priority))
	} else {
		q.lowpri.Store(int32(td.priority))
	}
}

func (q *tdq) lowestPri() priority.Priority {
	return priority.Priority(q.lowpri.Load())
}

// choose returns the most urgent queued thread without removing it:
// realtime first, then timeshare from the removal index, then idle.
func (q *tdq) choose() *Thread {
	if e := q.realtime.Choose(); e != nil {
		return e.Value.(*Thread)
	}
	if e := q.timeshare.ChooseFrom(q.ridx); e != nil {
		td := e.Value.(*Thread)
		if td.priority < priority.MinTimeshare {
			panic(fmt.Sprintf("sched: invalid priority %d on timeshare queue of cpu %d", td.priority, q.id))
		}
		return td
	}
	if e := q.idle.Choose(); e != nil {
		td := e.Value.(*Thread)
		if td.priority < priority.MinIdle {
			panic(fmt.Sprintf("sched: invalid priority %d on idle queue of cpu %d", td.priority, q.id))
		}
		return td
	}
	return nil
}

// add queues td here and charges its load.
func (q *tdq) add(td *Thread, flags AddFlags) {
	if td.state == Inhibited {
		panic(fmt.Sprintf("sched: adding inhibited thread %v", td))
	}
	if td.state != CanRun && td.state != Inactive && td.state != Running {
		panic(fmt.Sprintf("sched: adding %v in state %v", td, td.state))
	}
	if td.priority < q.lowestPri() {
		q.lowpri.Store(int32(td.priority))
	}
	q.runqAdd(td, flags)
	q.loadAdd(td)
}

// each visits every queued thread in choose order.
func (q *tdq) each(fn func(band string, td *Thread)) {
	visit := func(band string) func(*runq.Entry) bool {
		return func(e *runq.Entry) bool {
			fn(band, e.Value.(*Thread))
			return true
		}
	}
	q.realtime.Each(visit("realtime"))
	q.timeshare.EachFrom(q.ridx, visit("timeshare"))
	q.idle.Each(visit("idle"))
}
