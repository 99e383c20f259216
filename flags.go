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

import "strings"

// AddFlags describe why a thread is being queued.
type AddFlags int

const (
	// AddBoring is an ordinary wakeup or new thread.
	AddBoring AddFlags = 0
	// AddYielding requeues after a yield; no preemption is requested.
	AddYielding AddFlags = 1 << (iota - 1)
	// AddOurself requeues the thread that is switching out on its own CPU.
	AddOurself
	// AddIntr adds from interrupt context.
	AddIntr
	// AddPreempted requeues a preempted thread at the head of its slot.
	AddPreempted
	// AddBorrowing requeues a thread whose priority was lent.
	AddBorrowing
)

func (f AddFlags) String() string {
	if f == AddBoring {
		return "boring"
	}
	var names []string
	for _, n := range []struct {
		flag AddFlags
		name string
	}{
		{AddYielding, "yielding"},
		{AddOurself, "ourself"},
		{AddIntr, "intr"},
		{AddPreempted, "preempted"},
		{AddBorrowing, "borrowing"},
	} {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// SwitchFlags describe why a thread gives up its CPU.
type SwitchFlags int

const (
	// SwitchVoluntary is a sleep or yield.
	SwitchVoluntary SwitchFlags = 1 << iota
	// SwitchInvoluntary is a reschedule forced on the thread.
	SwitchInvoluntary
	// SwitchPreempt marks an involuntary switch caused by a more urgent
	// thread. The switched-out thread keeps its place at the head of its
	// slot.
	SwitchPreempt
)

// ThreadState is the scheduling state of a thread.
type ThreadState int

const (
	// Inactive threads were created or forked but never added.
	Inactive ThreadState = iota
	// CanRun threads are runnable but not queued, such as a thread
	// between removal and re-add.
	CanRun
	// RunQ threads are queued on a CPU.
	RunQ
	// Running threads are current on a CPU.
	Running
	// Inhibited threads are asleep.
	Inhibited
)

func (s ThreadState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case CanRun:
		return "canrun"
	case RunQ:
		return "runq"
	case Running:
		return "running"
	case Inhibited:
		return "inhibited"
	default:
		return "unknown"
	}
}
