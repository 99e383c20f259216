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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
)

func newTestScheduler(t *testing.T, ncpu int, opts ...Option) *Scheduler {
	return newTestSchedulerConfig(t, Config{}, ncpu, opts...)
}

func newTestSchedulerConfig(t *testing.T, cfg Config, ncpu int, opts ...Option) *Scheduler {
	s, err := New(cfg, topology.OneLevel(ncpu, topology.ShareL2, 0), opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	return s
}

func newTestThread(s *Scheduler, name string, class priority.Class, pri priority.Priority) *Thread {
	return s.NewProcess(name, 0).NewThread(name, class, pri)
}

func newRealtime(s *Scheduler, name string, pri priority.Priority) *Thread {
	return newTestThread(s, name, priority.ClassRealtime, pri)
}

// newBatch returns a timeshare thread in p that has only ever run, which
// puts it at the batch base priority.
func newBatch(s *Scheduler, p *Process, name string) *Thread {
	td := p.NewThread(name, priority.ClassTimeshare, priority.PUSER)
	td.ts.hist.Runtime = interact.FromTicks(100)
	s.priority(td)
	td.priority = td.userPri
	td.basePri = td.userPri
	return td
}

// enqueue places td on a CPU's run queue without choosing a CPU or
// requesting preemption.
func enqueue(s *Scheduler, cpu int, td *Thread) {
	td.lock.lock()
	q := s.setCPU(td, cpu)
	q.add(td, AddBoring)
	td.lock.unlock()
}

// running starts td on cpu, which must be idle.
func running(t *testing.T, s *Scheduler, cpu int, td *Thread) {
	enqueue(s, cpu, td)
	require.Equal(t, td, s.CPU(cpu).Switch(SwitchVoluntary), "thread did not start on cpu %d", cpu)
}

func TestShouldPreempt(t *testing.T) {
	s := newTestScheduler(t, 1)

	tests := []struct {
		msg    string
		pri    priority.Priority
		cpri   priority.Priority
		remote bool
		thresh int
		want   bool
	}{
		{msg: "equal", pri: 150, cpri: 150, thresh: 64, want: false},
		{msg: "less urgent", pri: 200, cpri: 150, thresh: 64, want: false},
		{msg: "idle is always preempted", pri: 220, cpri: priority.MinIdle, thresh: 64, want: true},
		{msg: "idle with preemption off", pri: 220, cpri: priority.MaxIdle, thresh: 0, want: true},
		{msg: "interrupt priority", pri: 40, cpri: 150, thresh: 64, want: true},
		{msg: "at threshold", pri: 64, cpri: 150, thresh: 64, want: true},
		{msg: "above threshold", pri: priority.PVM, cpri: 150, thresh: 64, want: false},
		{msg: "realtime over timeshare locally", pri: 140, cpri: 200, thresh: 64, want: false},
		{msg: "realtime over timeshare remotely", pri: 140, cpri: 200, remote: true, thresh: 64, want: true},
		{msg: "realtime over realtime remotely", pri: 140, cpri: 150, remote: true, thresh: 64, want: false},
		{msg: "preemption off", pri: 40, cpri: 150, thresh: 0, want: false},
		{msg: "full preemption", pri: 200, cpri: 210, thresh: 255, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			require.NoError(t, s.SetTunable("preempt_thresh", tt.thresh))
			assert.Equal(t, tt.want, s.shouldPreempt(tt.pri, tt.cpri, tt.remote))
		})
	}
}

func TestNewThreadIsInteractive(t *testing.T) {
	s := newTestScheduler(t, 2)
	td := newTestThread(s, "fresh", priority.ClassTimeshare, priority.PUSER)

	info := td.Info()
	assert.Equal(t, 0, info.Score)
	assert.Equal(t, priority.MinRealtime, td.Priority())
	assert.Equal(t, priority.MinRealtime, info.UserPriority)
	assert.Equal(t, 100, info.Slice)
	assert.Equal(t, Inactive, td.State())
	assert.Equal(t, "fresh tid 3", td.String(), "tids 1 and 2 are idle threads")
}

func TestNewBatchThread(t *testing.T) {
	s := newTestScheduler(t, 1)
	td := newBatch(s, s.NewProcess("p", 0), "batch")
	assert.Equal(t, interact.Max, td.Info().Score)
	assert.Equal(t, priority.Priority(interact.BatchMin), td.Priority())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Slice: -1, Interact: intPtr(101)}, topology.None(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slice must be positive, got -1")
	assert.Contains(t, err.Error(), "interact must be in [0, 100], got 101")

	_, err = New(Config{}, &topology.Group{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one cpu")
}

func TestStartPanicsOnMissingGroup(t *testing.T) {
	s, err := New(Config{NumCPU: 3}, topology.OneLevel(2, topology.ShareL2, 0))
	require.NoError(t, err)
	assert.Panics(t, func() { s.Start() })
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.False(t, s.IsRunning())
	assert.Equal(t, []int{0}, s.CPUs())
	assert.Nil(t, s.CPU(0).Group())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.CPU(0).Group())
	assert.Equal(t, int32(1000), s.balanceTicks.Load())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Equal(t, int32(0), s.balanceTicks.Load(), "stopped schedulers do not balance")
	assert.Nil(t, s.CPU(1))
	assert.Nil(t, s.CPU(-1))
}

func TestLoadAndRRInterval(t *testing.T) {
	s := newTestSchedulerConfig(t, Config{Hz: 1000, StatHz: 128, Slice: 12}, 2)
	assert.Equal(t, 93, s.RRInterval())

	enqueue(s, 0, newRealtime(s, "a", 150))
	enqueue(s, 1, newRealtime(s, "b", 150))
	enqueue(s, 1, newTestThread(s, "intr", priority.ClassIthd, 20))
	assert.Equal(t, 2, s.Load(), "interrupt threads do not count toward the system load")
	assert.Equal(t, 2, s.CPU(1).Load())
	assert.Equal(t, 1, s.CPU(0).Load())
}

func TestPctCPU(t *testing.T) {
	s := newTestScheduler(t, 1)
	td := newRealtime(s, "busy", 150)
	running(t, s, 0, td)

	assert.Equal(t, 0.0, s.PctCPU(td))
	for i := 0; i < 2000; i++ {
		s.Hardclock()
		s.CPU(0).Tick()
	}
	// The usage window ramps up over ten seconds.
	assert.InDelta(t, 0.2, s.PctCPU(td), 0.01)
}
