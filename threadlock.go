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
	"runtime"
	"sync"
	syncatomic "sync/atomic"
)

// blockedLock is never locked. A thread whose lock points here is in
// transit between queues and may not be locked until it is unblocked.
var blockedLock sync.Mutex

// threadLock is a redirectable pointer to the mutex protecting a thread.
// Holding the thread lock means holding the mutex it points to.
type threadLock struct {
	v syncatomic.Value // *sync.Mutex
}

func (l *threadLock) load() *sync.Mutex {
	return l.v.Load().(*sync.Mutex)
}

func (l *threadLock) store(m *sync.Mutex) {
	l.v.Store(m)
}

// lock acquires whatever mutex the thread currently points at, retrying if
// the pointer moved while waiting.
func (l *threadLock) lock() *sync.Mutex {
	for {
		m := l.spin()
		m.Lock()
		if l.load() == m {
			return m
		}
		m.Unlock()
	}
}

// spin waits out a blocked transfer and returns the current mutex.
func (l *threadLock) spin() *sync.Mutex {
	m := l.load()
	for m == &blockedLock {
		runtime.Gosched()
		m = l.load()
	}
	return m
}

func (l *threadLock) unlock() {
	m := l.load()
	if m == &blockedLock {
		panic("sched: unlock of a blocked thread lock")
	}
	m.Unlock()
}

// block points the thread at the blocked sentinel and releases the mutex it
// was holding, returning that mutex.
func (l *threadLock) block() *sync.Mutex {
	old := l.load()
	l.store(&blockedLock)
	old.Unlock()
	return old
}

// unblock points a blocked thread at m.
func (l *threadLock) unblock(m *sync.Mutex) {
	l.store(m)
}

// set moves the thread to m, which the caller holds, and releases the old
// mutex.
func (l *threadLock) set(m *sync.Mutex) {
	old := l.load()
	l.store(m)
	old.Unlock()
}

// owned reports whether the thread currently points at m.
func (l *threadLock) owned(m *sync.Mutex) bool {
	return l.load() == m
}
