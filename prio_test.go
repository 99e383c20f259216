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
	"go.uber.org/sched/priority"
)

func TestLendPriority(t *testing.T) {
	s := newTestScheduler(t, 1)
	cpu := s.CPU(0)
	td := newRealtime(s, "holder", 150)
	enqueue(s, 0, td)

	// Raising a queued thread requeues it, which preempts the idle thread.
	cpu.LendPriority(td, 100)
	assert.Equal(t, td, cpu.Current())
	assert.Equal(t, priority.Priority(100), td.Priority())

	cpu.SetPriority(td, 140)
	assert.Equal(t, priority.Priority(100), td.Priority(), "a loan is never lowered by the base")
	assert.Equal(t, priority.Priority(140), td.Info().BasePriority)

	cpu.UnlendPriority(td, 120)
	assert.Equal(t, priority.Priority(120), td.Priority(), "a more urgent loan remains")

	cpu.UnlendPriority(td, priority.MaxIdle)
	assert.Equal(t, priority.Priority(140), td.Priority())
	assert.Equal(t, priority.Priority(140), s.tdq(0).lowestPri())
}

func TestUnlendTimeshareRestoresUserPriority(t *testing.T) {
	s := newTestScheduler(t, 1)
	cpu := s.CPU(0)
	td := newBatch(s, s.NewProcess("p", 0), "td")
	running(t, s, 0, td)

	cpu.LendPriority(td, priority.PSOCK)
	require.Equal(t, priority.PSOCK, td.Priority())
	cpu.UnlendPriority(td, priority.MaxIdle)
	assert.Equal(t, td.Info().UserPriority, td.Priority())
}

func TestSetPriorityQueued(t *testing.T) {
	s := newTestScheduler(t, 1)
	cpu := s.CPU(0)
	running(t, s, 0, newRealtime(s, "current", 130))
	td := newRealtime(s, "queued", 150)
	enqueue(s, 0, td)

	cpu.SetPriority(td, 155)
	assert.Equal(t, priority.Priority(155), td.Priority())
	assert.Equal(t, RunQ, td.State(), "lowering stays in place")

	cpu.SetPriority(td, 120)
	assert.Equal(t, "current", cpu.Current().Name(), "realtime threads do not preempt locally")
	assert.True(t, cpu.NeedResched())

	cpu.SetPriority(td, priority.PSWP)
	assert.Equal(t, td, cpu.Current(), "kernel priorities preempt")
}

func TestLendUserPriority(t *testing.T) {
	s := newTestScheduler(t, 1)
	cpu := s.CPU(0)
	td := newTestThread(s, "td", priority.ClassTimeshare, priority.PUSER)

	cpu.LendUserPriority(td, 130)
	assert.Equal(t, priority.Priority(130), td.Info().UserPriority)

	cpu.SetUserPriority(td, 200)
	assert.Equal(t, priority.Priority(130), td.Info().UserPriority, "the loan is more urgent")

	cpu.UnlendUserPriority(td, 140)
	assert.Equal(t, priority.Priority(140), td.Info().UserPriority)

	cpu.UnlendUserPriority(td, priority.MaxIdle)
	assert.Equal(t, priority.Priority(200), td.Info().UserPriority)
}

func TestNice(t *testing.T) {
	tests := []struct {
		nice int
		want priority.Priority
	}{
		{nice: 0, want: 180},
		{nice: 10, want: 190},
		{nice: -20, want: 160},
		{nice: 30, want: 200},
		{nice: -40, want: 160},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.nice), func(t *testing.T) {
			s := newTestScheduler(t, 1)
			p := s.NewProcess("p", 0)
			td := newBatch(s, p, "td")

			s.CPU(0).Nice(p, tt.nice)
			assert.Equal(t, tt.want, td.Priority())
			assert.Equal(t, tt.want, td.Info().UserPriority)
		})
	}
}

func TestNiceInteractive(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.NewProcess("p", 0)
	td := p.NewThread("td", priority.ClassTimeshare, priority.PUSER)

	s.CPU(0).Nice(p, 10)
	assert.Equal(t, 10, p.Nice())
	assert.Equal(t, priority.Priority(138), td.Priority(), "nice is added to the score")
}

func TestSetClass(t *testing.T) {
	s := newTestScheduler(t, 1)
	td := newTestThread(s, "td", priority.ClassTimeshare, priority.PUSER)

	s.CPU(0).SetClass(td, priority.ClassRealtime)
	assert.Equal(t, "realtime", td.Info().Class)

	// Realtime threads keep their priority on the clock tick.
	running(t, s, 0, td)
	s.CPU(0).ClockTick()
	s.CPU(0).Userret()
	assert.Equal(t, priority.MinRealtime, td.Priority())
}
