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

// Package runq implements a priority run queue: a fixed array of FIFO lists,
// one per slot, with a bitmap of non-empty slots so that the most urgent
// slot is found with a single bit scan.
//
// Queue is not safe for concurrent use. Callers serialize access with the
// lock of the CPU queue that owns it.
package runq

import (
	"fmt"
	"math/bits"

	"go.uber.org/sched/priority"
)

const (
	// NumQueues is the number of slots in a Queue.
	NumQueues = 64

	// PPQ is the number of priorities that share a slot when slots are
	// derived from a priority.
	PPQ = (int(priority.Max) + 1) / NumQueues
)

const _notQueued = -1

// Entry links one value into at most one Queue. The zero value is not
// usable; create entries with NewEntry.
type Entry struct {
	next, prev *Entry
	queue      *Queue
	slot       int

	// Value is the queued object, usually the owning thread.
	Value interface{}
}

// NewEntry returns an unqueued entry holding v.
func NewEntry(v interface{}) *Entry {
	return &Entry{slot: _notQueued, Value: v}
}

// Queued reports whether the entry is on a queue.
func (e *Entry) Queued() bool {
	return e.slot != _notQueued
}

// Slot returns the slot the entry is queued on, or -1.
func (e *Entry) Slot() int {
	return e.slot
}

// Queue returns the queue holding the entry, or nil.
func (e *Entry) Queue() *Queue {
	return e.queue
}

type fifo struct {
	head, tail *Entry
}

// Queue is a set of NumQueues FIFO lists indexed by slot. Lower slots are
// more urgent.
type Queue struct {
	status uint64
	lists  [NumQueues]fifo
	len    int
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return q.len
}

// Add queues e on the slot derived from pri. Preempted entries go to the
// head of their slot so that they resume before their peers.
func (q *Queue) Add(e *Entry, pri priority.Priority, preempted bool) {
	q.AddSlot(e, int(pri)/PPQ, preempted)
}

// AddSlot queues e on an explicit slot.
func (q *Queue) AddSlot(e *Entry, slot int, preempted bool) {
	if e.Queued() {
		panic(fmt.Sprintf("runq: entry %v already queued on slot %d", e.Value, e.slot))
	}
	if slot < 0 || slot >= NumQueues {
		panic(fmt.Sprintf("runq: invalid slot %d for %v", slot, e.Value))
	}

	l := &q.lists[slot]
	if preempted {
		e.next = l.head
		if l.head != nil {
			l.head.prev = e
		} else {
			l.tail = e
		}
		l.head = e
	} else {
		e.prev = l.tail
		if l.tail != nil {
			l.tail.next = e
		} else {
			l.head = e
		}
		l.tail = e
	}
	e.queue = q
	e.slot = slot
	q.status |= 1 << uint(slot)
	q.len++
}

// Remove unlinks e from the queue.
func (q *Queue) Remove(e *Entry) {
	q.RemoveIdx(e, nil)
}

// RemoveIdx unlinks e. If that empties the slot pointed to by idx, idx is
// advanced to the following slot so that a rotating reader does not stall
// on an empty slot.
func (q *Queue) RemoveIdx(e *Entry, idx *int) {
	if e.queue != q || !e.Queued() {
		panic(fmt.Sprintf("runq: entry %v is not on this queue", e.Value))
	}

	slot := e.slot
	l := &q.lists[slot]
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev, e.queue, e.slot = nil, nil, nil, _notQueued
	q.len--

	if l.head == nil {
		q.status &^= 1 << uint(slot)
		if idx != nil && *idx == slot {
			*idx = (slot + 1) % NumQueues
		}
	}
}

// SlotEmpty reports whether nothing is queued on slot.
func (q *Queue) SlotEmpty(slot int) bool {
	return q.status&(1<<uint(slot)) == 0
}

// Choose returns the head of the most urgent non-empty slot without
// removing it, or nil if the queue is empty.
func (q *Queue) Choose() *Entry {
	if q.status == 0 {
		return nil
	}
	return q.lists[bits.TrailingZeros64(q.status)].head
}

// ChooseFrom is like Choose but starts the scan at slot idx and wraps
// around, which lets a rotating index age a band without reordering it.
func (q *Queue) ChooseFrom(idx int) *Entry {
	slot := q.findFrom(idx)
	if slot < 0 {
		return nil
	}
	return q.lists[slot].head
}

// Pop removes and returns the entry Choose would return.
func (q *Queue) Pop() *Entry {
	e := q.Choose()
	if e != nil {
		q.Remove(e)
	}
	return e
}

func (q *Queue) findFrom(idx int) int {
	if q.status == 0 {
		return -1
	}
	if upper := q.status &^ (1<<uint(idx) - 1); upper != 0 {
		return bits.TrailingZeros64(upper)
	}
	return bits.TrailingZeros64(q.status)
}

// Each calls fn for every entry in slot order, FIFO within a slot, until fn
// returns false.
func (q *Queue) Each(fn func(*Entry) bool) {
	q.EachFrom(0, fn)
}

// EachFrom is like Each but visits slots starting at start and wrapping
// around, so every entry is visited once.
func (q *Queue) EachFrom(start int, fn func(*Entry) bool) {
	for i := 0; i < NumQueues; i++ {
		slot := (start + i) % NumQueues
		if q.SlotEmpty(slot) {
			continue
		}
		for e := q.lists[slot].head; e != nil; {
			// fn may remove e.
			next := e.next
			if !fn(e) {
				return
			}
			e = next
		}
	}
}
