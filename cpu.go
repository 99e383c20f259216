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
	"go.uber.org/sched/topology"
)

// CPU is the handle through which one CPU drives the scheduler. The
// goroutine calling into a CPU acts as that CPU and as the thread current
// on it, so calls for one CPU must not be made concurrently. Calls for
// different CPUs may run in parallel.
type CPU struct {
	s *Scheduler
	q *tdq
}

// ID returns the CPU id.
func (c *CPU) ID() int { return c.q.id }

// Current returns the thread running on the CPU.
func (c *CPU) Current() *Thread { return c.q.curthread }

// Idlethread returns the CPU's idle thread.
func (c *CPU) Idlethread() *Thread { return c.q.idlethread }

// Load returns the number of threads running or queued on the CPU.
func (c *CPU) Load() int { return int(c.q.load.Load()) }

// Group returns the topology group the CPU belongs to, or nil before the
// scheduler is started.
func (c *CPU) Group() *topology.Group { return c.q.cg }

// NeedResched reports whether the current thread should be switched out at
// the next AST.
func (c *CPU) NeedResched() bool {
	c.q.mu.Lock()
	defer c.q.mu.Unlock()
	return c.q.curthread.flags&tdfNeedResched != 0
}

// Throw dispatches the first thread of a CPU entering the scheduler when td
// is nil, or retires td, which must be current, when it exits. It returns
// the thread now running.
func (c *CPU) Throw(td *Thread) *Thread {
	if td != nil {
		c.q.mu.Lock()
	}
	return c.s.throw(c.q, td)
}

// Add makes td runnable on the CPU chosen for it.
func (c *CPU) Add(td *Thread, flags AddFlags) {
	td.lock.lock()
	c.s.add(c.q, td, flags)
	td.lock.unlock()
	c.preemptPending()
}

// Remove takes a queued thread off its run queue without running it.
func (c *CPU) Remove(td *Thread) {
	td.lock.lock()
	defer td.lock.unlock()
	c.s.rem(td)
}

// Switch switches out the current thread and returns the next one.
func (c *CPU) Switch(flags SwitchFlags) *Thread {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	return c.s.switchLocked(q, q.curthread, flags)
}

// Sleep puts the current thread to sleep. prio is the priority it sleeps
// at, subject to the static boost tunable. It returns the next thread.
func (c *CPU) Sleep(prio priority.Priority) *Thread {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if td.isIdle() {
		panic(fmt.Sprintf("sched: idle thread of cpu %d cannot sleep", q.id))
	}
	c.s.sleep(q, td, prio)
	td.state = Inhibited
	return c.s.switchLocked(q, td, SwitchVoluntary)
}

// Wakeup makes a sleeping thread runnable, charging the time it slept.
func (c *CPU) Wakeup(td *Thread) {
	td.lock.lock()
	if state := td.state; state != Inhibited {
		td.lock.unlock()
		panic(fmt.Sprintf("sched: waking %v in state %v", td, state))
	}
	c.s.wakeup(c.q, td)
	td.lock.unlock()
	c.preemptPending()
}

// ClockTick handles a statistics clock tick for the current thread. It
// reports whether the current thread should be switched out.
func (c *CPU) ClockTick() bool {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	c.s.clockTick(q, td)
	return td.flags&tdfNeedResched != 0
}

// Tick charges a hardclock tick to the current thread's CPU usage.
func (c *CPU) Tick() {
	q := c.q
	q.mu.Lock()
	c.s.hzTick(q.curthread)
	q.mu.Unlock()
}

// AST switches out the current thread if a reschedule was requested,
// restoring its user priority first. It returns the thread now running.
func (c *CPU) AST() *Thread {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if td.flags&tdfNeedResched == 0 {
		return td
	}
	if !td.isIdle() {
		c.s.prio(q, td, td.userPri)
	}
	return c.s.switchLocked(q, td, SwitchInvoluntary)
}

// Preempt handles a preemption request from another CPU. The current
// thread is switched out if a more urgent thread is queued, or owes a
// preemption if it is in a critical section. It returns the thread now
// running.
func (c *CPU) Preempt() *Thread {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ipipending = false
	td := q.curthread
	if td.priority <= q.lowestPri() {
		return td
	}
	if td.critnest > 0 {
		td.owepreempt = true
		return td
	}
	return c.s.switchLocked(q, td, SwitchInvoluntary|SwitchPreempt)
}

// Idle runs one iteration of the idle loop: steal work if possible,
// otherwise switch to local work if any arrived. It reports whether the
// CPU left its idle thread.
func (c *CPU) Idle() bool {
	q := c.q
	if !q.curthread.isIdle() {
		return false
	}
	if c.s.idled(q) {
		return true
	}
	if q.load.Load() == 0 {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return !c.s.switchLocked(q, q.curthread, SwitchVoluntary).isIdle()
}

// Runnable reports whether the CPU has work other than its current thread.
func (c *CPU) Runnable() bool {
	load := int(c.q.load.Load())
	if c.q.curthread.isIdle() {
		return load > 0
	}
	return load-1 > 0
}

// Relinquish yields the CPU. It returns the thread now running, which may
// be the caller.
func (c *CPU) Relinquish() *Thread {
	return c.Switch(SwitchVoluntary)
}

// Bind binds the current thread to cpu. If cpu is another CPU the thread
// is moved there and the next local thread is returned; otherwise the
// current thread is returned.
func (c *CPU) Bind(cpu int) *Thread {
	q := c.q
	if c.s.tdq(cpu) == nil {
		panic(fmt.Sprintf("sched: bind to unknown cpu %d", cpu))
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if td.isIdle() {
		panic(fmt.Sprintf("sched: binding idle thread of cpu %d", q.id))
	}
	c.unbind(td)
	if !td.canMigrate() {
		panic(fmt.Sprintf("sched: binding pinned thread %v", td))
	}
	td.ts.flags |= tsfBound
	td.pinned++
	if cpu == q.id {
		return td
	}
	td.ts.cpu = cpu
	return c.s.switchLocked(q, td, SwitchVoluntary)
}

// Unbind releases the binding of the current thread.
func (c *CPU) Unbind() {
	c.q.mu.Lock()
	c.unbind(c.q.curthread)
	c.q.mu.Unlock()
}

func (c *CPU) unbind(td *Thread) {
	if td.ts.flags&tsfBound == 0 {
		return
	}
	td.ts.flags &^= tsfBound
	td.pinned--
}

// IsBound reports whether td is bound to its CPU.
func (td *Thread) IsBound() bool {
	td.lock.lock()
	defer td.lock.unlock()
	return td.ts.flags&tsfBound != 0
}

// CriticalEnter starts a critical section of the current thread.
// Preemptions requested inside it are deferred to the outermost exit.
func (c *CPU) CriticalEnter() {
	c.q.mu.Lock()
	c.q.curthread.critnest++
	c.q.mu.Unlock()
}

// CriticalExit ends a critical section, performing a deferred preemption
// if this was the outermost one.
func (c *CPU) CriticalExit() {
	c.q.mu.Lock()
	td := c.q.curthread
	if td.critnest == 0 {
		c.q.mu.Unlock()
		panic(fmt.Sprintf("sched: critical exit of %v outside a critical section", td))
	}
	td.critnest--
	c.q.mu.Unlock()
	c.preemptPending()
}

// preemptPending switches out the current thread if it owes a preemption
// and is not in a critical section.
func (c *CPU) preemptPending() {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if !td.owepreempt || td.critnest > 0 {
		return
	}
	c.s.switchLocked(q, td, SwitchInvoluntary|SwitchPreempt)
}

// Userret restores the user priority of the current thread on its return
// to user mode.
func (c *CPU) Userret() {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if td.priority == td.userPri {
		return
	}
	td.priority = td.userPri
	td.basePri = td.userPri
	q.setLowpri(td)
}

// Fork creates a thread in p inheriting the scheduling state of the
// current thread. The new thread is inactive until added.
func (c *CPU) Fork(p *Process, name string) *Thread {
	q := c.q
	q.mu.Lock()
	defer q.mu.Unlock()
	td := q.curthread
	if td.isIdle() {
		panic(fmt.Sprintf("sched: idle thread of cpu %d cannot fork", q.id))
	}
	child := newThread(p, int(c.s.nextTID.Inc()), name)
	child.class = td.class
	child.priority = td.priority
	child.basePri = td.basePri
	child.flags = td.flags & tdfNoLoad
	c.s.fork(td, child)
	if child.class == priority.ClassTimeshare {
		child.priority = child.userPri
		child.basePri = child.userPri
	}
	p.attach(child)
	return child
}

// Exit retires the current thread, returning its run time to the first
// thread of parent when parent is not nil. It returns the thread now
// running.
func (c *CPU) Exit(parent *Process) *Thread {
	td := c.q.curthread
	if td.isIdle() {
		panic(fmt.Sprintf("sched: idle thread of cpu %d cannot exit", c.q.id))
	}
	if parent != nil {
		if ptd := parent.first(); ptd != nil && ptd != td {
			c.s.exitThread(ptd, td)
		}
	}
	if td.proc != nil {
		td.proc.detach(td)
	}
	return c.Throw(td)
}

// SetPriority sets the base priority of td.
func (c *CPU) SetPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.prio(c.q, td, prio)
	td.lock.unlock()
	c.preemptPending()
}

// LendPriority lends prio to td, such as from a thread blocked on a lock td
// holds.
func (c *CPU) LendPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.lendPrio(c.q, td, prio)
	td.lock.unlock()
	c.preemptPending()
}

// UnlendPriority ends a priority loan, keeping prio if it is more urgent
// than the base priority.
func (c *CPU) UnlendPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.unlendPrio(c.q, td, prio)
	td.lock.unlock()
	c.preemptPending()
}

// SetUserPriority sets the base user priority of td.
func (c *CPU) SetUserPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.userPrio(td, prio)
	td.lock.unlock()
}

// LendUserPriority lends a user priority to td.
func (c *CPU) LendUserPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.lendUserPrio(td, prio)
	td.lock.unlock()
}

// UnlendUserPriority ends a user priority loan.
func (c *CPU) UnlendUserPriority(td *Thread, prio priority.Priority) {
	td.lock.lock()
	c.s.unlendUserPrio(td, prio)
	td.lock.unlock()
}

// Nice changes the nice value of p and reprioritizes its threads.
func (c *CPU) Nice(p *Process, nice int) {
	p.nice.Store(int32(clampNice(nice)))
	for _, td := range p.Threads() {
		td.lock.lock()
		c.s.priority(td)
		c.s.prio(c.q, td, td.baseUserPri)
		td.lock.unlock()
	}
	c.preemptPending()
}

// SetClass changes the scheduling class of td.
func (c *CPU) SetClass(td *Thread, class priority.Class) {
	td.lock.lock()
	td.class = class
	td.lock.unlock()
}

// SetAffinity replaces the CPU set of td and moves it if it may no longer
// run where it is assigned.
func (c *CPU) SetAffinity(td *Thread, set topology.CPUSet) {
	td.lock.lock()
	td.cpuset = set.Clone()
	c.s.affinity(c.q, td)
	td.lock.unlock()
	c.preemptPending()
}
