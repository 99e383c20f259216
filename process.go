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
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/sched/priority"
)

// Process groups threads that share a nice value.
type Process struct {
	s    *Scheduler
	id   int
	name string
	nice atomic.Int32

	mu      sync.Mutex
	threads []*Thread
}

// NewProcess creates a process with the given nice value, clamped to the
// nice range.
func (s *Scheduler) NewProcess(name string, nice int) *Process {
	p := &Process{s: s, id: int(s.nextPID.Inc()), name: name}
	p.nice.Store(int32(clampNice(nice)))
	return p
}

// ID returns the process identifier.
func (p *Process) ID() int { return p.id }

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Nice returns the nice value. It may be read without locks and may be one
// update stale.
func (p *Process) Nice() int { return int(p.nice.Load()) }

// Threads returns the threads of the process in creation order.
func (p *Process) Threads() []*Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Thread(nil), p.threads...)
}

// NewThread creates an inactive thread in the process. It may run on all
// CPUs and starts with a fresh interactivity history.
func (p *Process) NewThread(name string, class priority.Class, pri priority.Priority) *Thread {
	s := p.s
	td := newThread(p, int(s.nextTID.Inc()), name)
	td.class = class
	td.priority = pri
	td.basePri = pri
	td.userPri = pri
	td.baseUserPri = pri
	td.cpuset = s.top.Mask.Clone()
	if class.Base() == priority.ClassIthd {
		td.flags |= tdfNoLoad
	}
	td.ts.cpu = s.firstCPU
	td.ts.slice = s.tun.slice()
	td.ts.usage.Reset(s.Ticks())
	if class.Base() == priority.ClassTimeshare {
		s.priority(td)
		td.priority = td.userPri
		td.basePri = td.userPri
	}
	p.attach(td)
	return td
}

func (p *Process) attach(td *Thread) {
	p.mu.Lock()
	p.threads = append(p.threads, td)
	p.mu.Unlock()
}

func (p *Process) detach(td *Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.threads {
		if other == td {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			return
		}
	}
}

func (p *Process) first() *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.threads) == 0 {
		return nil
	}
	return p.threads[0]
}

func clampNice(nice int) int {
	if nice < priority.MinNice {
		return priority.MinNice
	}
	if nice > priority.MaxNice {
		return priority.MaxNice
	}
	return nice
}
