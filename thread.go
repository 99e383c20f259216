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
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/internal/runq"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
)

// Thread flags, protected by the thread lock.
const (
	tdfBorrowing   = 1 << iota // priority lent by another thread
	tdfUBorrowing              // user priority lent
	tdfNeedResched             // switch at the next AST
	tdfIdle                    // per CPU idle thread
	tdfNoLoad                  // excluded from sysload
)

// Per thread scheduler flags.
const (
	tsfBound    = 1 << iota // bound to its CPU
	tsfXferable             // counted in its queue's transferable count
)

// schedState is the scheduler private part of a thread.
type schedState struct {
	cpu    int // CPU the thread is assigned to
	rltick int // tick the thread last ran
	flags  int
	slice  int // stat ticks left in the current slice

	hist  interact.History
	usage interact.Usage

	entry *runq.Entry
	runq  *runq.Queue
}

// Thread is a schedulable thread. All fields are protected by the thread
// lock unless noted.
type Thread struct {
	id   int
	name string
	proc *Process

	lock threadLock
	// own is the thread's lock while it is not on a CPU queue.
	own sync.Mutex

	state        ThreadState
	flags        int
	class        priority.Class
	priority     priority.Priority
	basePri      priority.Priority
	userPri      priority.Priority
	baseUserPri  priority.Priority
	pinned       int
	critnest     int
	owepreempt   bool
	oncpu        int
	lastcpu      int
	slptick      int
	cpuset       topology.CPUSet
	intrNesting  atomic.Int32

	ts schedState
}

func newThread(p *Process, id int, name string) *Thread {
	td := &Thread{
		id:      id,
		name:    name,
		proc:    p,
		oncpu:   -1,
		lastcpu: -1,
	}
	td.lock.store(&td.own)
	td.ts.entry = runq.NewEntry(td)
	return td
}

// ID returns the thread identifier, unique within its Scheduler.
func (td *Thread) ID() int { return td.id }

// Name returns the thread name.
func (td *Thread) Name() string { return td.name }

// Process returns the owning process.
func (td *Thread) Process() *Process { return td.proc }

func (td *Thread) String() string {
	return fmt.Sprintf("%s tid %d", td.name, td.id)
}

// ThreadInfo is a consistent snapshot of a thread's scheduling state.
type ThreadInfo struct {
	ID           int               `json:"id"`
	Name         string            `json:"name"`
	State        string            `json:"state"`
	Class        string            `json:"class"`
	Priority     priority.Priority `json:"priority"`
	BasePriority priority.Priority `json:"basePriority"`
	UserPriority priority.Priority `json:"userPriority"`
	CPU          int               `json:"cpu"`
	OnCPU        int               `json:"onCPU"`
	LastCPU      int               `json:"lastCPU"`
	Bound        bool              `json:"bound"`
	Pinned       int               `json:"pinned"`
	Slice        int               `json:"slice"`
	Runtime      int64             `json:"runtime"`
	Slptime      int64             `json:"slptime"`
	Score        int               `json:"score"`
	Queue        string            `json:"queue,omitempty"`
	Slot         int               `json:"slot"`
}

// Info locks the thread and returns its state.
func (td *Thread) Info() ThreadInfo {
	td.lock.lock()
	defer td.lock.unlock()
	return td.info("")
}

// info requires the thread lock.
func (td *Thread) info(queue string) ThreadInfo {
	return ThreadInfo{
		ID:           td.id,
		Name:         td.name,
		State:        td.state.String(),
		Class:        td.class.String(),
		Priority:     td.priority,
		BasePriority: td.basePri,
		UserPriority: td.userPri,
		CPU:          td.ts.cpu,
		OnCPU:        td.oncpu,
		LastCPU:      td.lastcpu,
		Bound:        td.ts.flags&tsfBound != 0,
		Pinned:       td.pinned,
		Slice:        td.ts.slice,
		Runtime:      int64(td.ts.hist.Runtime),
		Slptime:      int64(td.ts.hist.Slptime),
		Score:        td.ts.hist.Score(),
		Queue:        queue,
		Slot:         td.ts.entry.Slot(),
	}
}

// Priority returns the current priority.
func (td *Thread) Priority() priority.Priority {
	td.lock.lock()
	defer td.lock.unlock()
	return td.priority
}

// State returns the scheduling state.
func (td *Thread) State() ThreadState {
	td.lock.lock()
	defer td.lock.unlock()
	return td.state
}

// Pin prevents the thread from migrating until the matching Unpin.
func (td *Thread) Pin() {
	td.lock.lock()
	td.pinned++
	td.lock.unlock()
}

// Unpin undoes one Pin.
func (td *Thread) Unpin() {
	td.lock.lock()
	defer td.lock.unlock()
	if td.pinned == 0 {
		panic(fmt.Sprintf("sched: unpin of unpinned thread %v", td))
	}
	td.pinned--
}

// EnterInterrupt marks the thread as running an interrupt handler, which
// lets interrupt threads it wakes run on the interrupted CPU.
func (td *Thread) EnterInterrupt() { td.intrNesting.Inc() }

// ExitInterrupt undoes EnterInterrupt.
func (td *Thread) ExitInterrupt() { td.intrNesting.Dec() }

func (td *Thread) canMigrate() bool {
	return td.pinned == 0
}

func (td *Thread) canSched(cpu int) bool {
	return td.cpuset.IsSet(cpu)
}

func (td *Thread) isIdle() bool {
	return td.flags&tdfIdle != 0
}

func (td *Thread) onRunq() bool {
	return td.state == RunQ
}

func (td *Thread) isRunning() bool {
	return td.state == Running
}

func (td *Thread) nice() int {
	if td.proc == nil {
		return 0
	}
	return td.proc.Nice()
}
