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

// Package sched is a multiprocessor thread scheduler core.
//
// Each CPU owns a run queue (tdq) holding three priority queues: realtime,
// timeshare and idle. Threads are placed on a CPU chosen by affinity and
// load, balanced periodically across the CPU topology, and stolen by CPUs
// that go idle. Timeshare threads are classified as interactive or batch
// from their voluntary sleep history.
//
// There is no global lock. Every queue has its own mutex, and every thread
// carries a lock pointer naming the mutex that currently protects it: the
// queue lock while it is runnable or running, its own lock while it sleeps.
// Migration between queues briefly points the thread at a blocked sentinel
// so that other CPUs spin instead of racing the transfer.
//
// The goroutine calling into a CPU handle plays the role of that CPU:
//
//	s, err := sched.New(cfg, top, sched.Switcher(sw), sched.Interrupter(ipi))
//	...
//	s.Start()
//	defer s.Stop()
//
//	cpu := s.CPU(0)
//	td := s.NewProcess("make", 0).NewThread("make", priority.ClassTimeshare, priority.PUSER)
//	cpu.Add(td, sched.AddBoring)
//	cpu.Idle()
//
// Context transfer and cross CPU notification are delegated to the
// platform.Switcher and platform.Interrupter supplied by the caller.
package sched
