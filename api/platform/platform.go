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

// Package platform declares the machine facilities the scheduler drives but
// does not implement: transferring a CPU from one thread to another, and
// notifying a remote CPU that it should reschedule.
package platform

// Thread is the identity of a thread as seen by the platform.
type Thread interface {
	ID() int
	Name() string
}

// Switcher transfers control of a CPU between threads. It is called with
// the CPU's queue lock held and must not call back into the scheduler.
type Switcher interface {
	// Switch saves from and resumes to on cpu. from is nil when the CPU
	// enters the scheduler for the first time or the previous thread
	// exited.
	Switch(cpu int, from, to Thread)
}

// Interrupter delivers cross CPU notifications.
type Interrupter interface {
	// WakeIdle wakes cpu from its idle state without an interrupt,
	// returning false if the platform has no such mechanism.
	WakeIdle(cpu int) bool

	// SendPreempt asks cpu to reschedule. The receiving CPU answers by
	// calling the scheduler's Preempt on that CPU.
	SendPreempt(cpu int)
}

// NopSwitcher switches nothing. It is useful when the caller tracks the
// current thread through the scheduler alone.
var NopSwitcher Switcher = nopSwitcher{}

type nopSwitcher struct{}

func (nopSwitcher) Switch(int, Thread, Thread) {}

// NopInterrupter drops every notification.
var NopInterrupter Interrupter = nopInterrupter{}

type nopInterrupter struct{}

func (nopInterrupter) WakeIdle(int) bool { return false }

func (nopInterrupter) SendPreempt(int) {}
