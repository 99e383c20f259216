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

package schedsim

import (
	"sync"

	"go.uber.org/sched/api/platform"
)

// mailbox delivers preemption requests at the start of the target CPU's
// next step. Idle CPUs poll for work every step, so waking them needs no
// interrupt.
type mailbox struct {
	mu      sync.Mutex
	pending map[int]bool
	sent    int
}

var _ platform.Interrupter = (*mailbox)(nil)

func newMailbox() *mailbox {
	return &mailbox{pending: make(map[int]bool)}
}

func (m *mailbox) WakeIdle(int) bool { return true }

func (m *mailbox) SendPreempt(cpu int) {
	m.mu.Lock()
	m.pending[cpu] = true
	m.sent++
	m.mu.Unlock()
}

// take reports and clears a pending request for cpu.
func (m *mailbox) take(cpu int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending[cpu] {
		return false
	}
	delete(m.pending, cpu)
	return true
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// switchCounter counts context switches per CPU.
type switchCounter struct {
	mu sync.Mutex
	n  map[int]int
}

var _ platform.Switcher = (*switchCounter)(nil)

func newSwitchCounter() *switchCounter {
	return &switchCounter{n: make(map[int]int)}
}

func (c *switchCounter) Switch(cpu int, _, _ platform.Thread) {
	c.mu.Lock()
	c.n[cpu]++
	c.mu.Unlock()
}

func (c *switchCounter) get(cpu int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[cpu]
}
