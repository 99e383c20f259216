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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/sched/internal/runq"
	"go.uber.org/sched/priority"
)

func TestTdqChooseOrder(t *testing.T) {
	s := newTestScheduler(t, 1)
	q := s.tdq(0)

	enqueue(s, 0, newTestThread(s, "idle", priority.ClassIdle, 230))
	enqueue(s, 0, newBatch(s, s.NewProcess("p", 0), "batch"))
	enqueue(s, 0, newRealtime(s, "rt", 150))

	q.mu.Lock()
	defer q.mu.Unlock()

	var got []string
	q.each(func(band string, td *Thread) {
		got = append(got, fmt.Sprintf("%s:%s", band, td.Name()))
	})
	assert.Equal(t, []string{"realtime:rt", "timeshare:batch", "idle:idle"}, got)
	assert.Equal(t, priority.Priority(150), q.lowestPri())

	var order []string
	for td := q.chooseThread(); !td.isIdle(); td = q.chooseThread() {
		order = append(order, td.Name())
		q.loadRem(td)
	}
	assert.Equal(t, []string{"rt", "batch", "idle"}, order)
	assert.Equal(t, priority.MaxIdle, q.lowestPri())
	assert.Equal(t, int32(0), q.load.Load())
	assert.Equal(t, int32(0), q.transferable.Load())
}

func TestTdqTransferable(t *testing.T) {
	s := newTestScheduler(t, 1)
	q := s.tdq(0)

	pinned := newRealtime(s, "pinned", 150)
	pinned.Pin()
	enqueue(s, 0, pinned)
	enqueue(s, 0, newRealtime(s, "free", 150))

	assert.Equal(t, int32(1), q.transferable.Load())
	assert.Equal(t, int32(2), q.load.Load())

	s.CPU(0).Remove(pinned)
	assert.Equal(t, int32(1), q.transferable.Load())
	assert.Equal(t, CanRun, pinned.State())
	pinned.Unpin()
	assert.Panics(t, pinned.Unpin)
}

func TestTdqSlotRedirect(t *testing.T) {
	s := newTestScheduler(t, 1)
	q := s.tdq(0)
	td := newBatch(s, s.NewProcess("p", 0), "slowest")
	td.priority = priority.MaxTimeshare

	q.mu.Lock()
	q.idx, q.ridx = 5, 4
	q.mu.Unlock()
	enqueue(s, 0, td)

	// The natural slot is the one being drained, so the thread lands one
	// behind it.
	assert.Equal(t, 3, td.Info().Slot)
}

func TestTdqPanics(t *testing.T) {
	s := newTestScheduler(t, 1)
	q := s.tdq(0)
	td := newRealtime(s, "td", 150)

	assert.Panics(t, func() { q.runqRem(td) }, "not queued")
	assert.Panics(t, func() { q.loadRem(td) }, "no load")
	assert.Panics(t, func() { s.rem(td) }, "not holding the queue lock")

	td.state = Inhibited
	assert.Panics(t, func() { q.add(td, AddBoring) }, "asleep")
	td.state = RunQ
	assert.Panics(t, func() { q.add(td, AddBoring) }, "already queued")
	td.state = Inactive

	running(t, s, 0, td)
	assert.Panics(t, func() { s.CPU(0).Remove(td) }, "running threads are not on a queue")
}

// TestTdqRotation checks that the timeshare calendar gives every thread of
// equal priority a turn before any thread gets a second one.
func TestTdqRotation(t *testing.T) {
	for _, n := range []int{2, 5, 10, 63, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s := newTestScheduler(t, 1)
			s.balanceTicks.Store(0)
			q := s.tdq(0)
			p := s.NewProcess("p", 0)
			for i := 0; i < n; i++ {
				td := newBatch(s, p, fmt.Sprint(i))
				td.priority = 200
				enqueue(s, 0, td)
			}

			var seq []int
			q.mu.Lock()
			for i := 0; i < 20*n; i++ {
				td := q.chooseThread()
				require.False(t, td.isIdle())
				seq = append(seq, td.ID())
				q.runqAdd(td, AddOurself|AddYielding)
				s.clockTick(q, q.idlethread)
			}
			q.mu.Unlock()

			for i := 0; i+n <= len(seq); i++ {
				seen := make(map[int]struct{}, n)
				for _, id := range seq[i : i+n] {
					seen[id] = struct{}{}
				}
				require.Len(t, seen, n, "window starting at %d repeats a thread", i)
			}
		})
	}
}

func TestClockTickAdvancesIndex(t *testing.T) {
	s := newTestScheduler(t, 1)
	q := s.tdq(0)

	for i := 1; i <= runq.NumQueues; i++ {
		s.CPU(0).ClockTick()
		q.mu.Lock()
		assert.Equal(t, i%runq.NumQueues, q.idx)
		assert.Equal(t, q.idx, q.ridx, "empty slots do not hold back the removal index")
		q.mu.Unlock()
	}
}

func TestRunnable(t *testing.T) {
	s := newTestScheduler(t, 1)
	cpu := s.CPU(0)
	assert.False(t, cpu.Runnable())

	a := newRealtime(s, "a", 150)
	enqueue(s, 0, a)
	assert.True(t, cpu.Runnable())

	require.Equal(t, a, cpu.Switch(SwitchVoluntary))
	assert.False(t, cpu.Runnable(), "only the current thread")

	enqueue(s, 0, newRealtime(s, "b", 150))
	assert.True(t, cpu.Runnable())
}
