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
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/sched/api/platform/platformtest"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

// enqueueBatch queues n timeshare threads at priority 200 on cpu.
func enqueueBatch(s *Scheduler, cpu, n int) []*Thread {
	p := s.NewProcess("batch", 0)
	var threads []*Thread
	for i := 0; i < n; i++ {
		td := newBatch(s, p, "batch")
		td.priority = 200
		enqueue(s, cpu, td)
		threads = append(threads, td)
	}
	return threads
}

func TestBalanceHalvesDifference(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	core, logs := zapobserver.New(zapcore.DebugLevel)
	intr := platformtest.NewMockInterrupter(mockCtrl)
	s := newTestScheduler(t, 2, Interrupter(intr), Logger(zap.New(core)))
	enqueueBatch(s, 0, 10)

	intr.EXPECT().SendPreempt(1)
	s.balanceGroup(s.top)

	assert.Equal(t, 5, s.CPU(0).Load())
	assert.Equal(t, 5, s.CPU(1).Load())
	stats := s.Stats()
	assert.Equal(t, int64(1), stats.BalanceMoves)
	assert.Equal(t, int64(5), stats.Migrations)

	moves := logs.FilterMessage("balanced cpus").All()
	require.Len(t, moves, 1)
	assert.Equal(t, map[string]interface{}{
		"from":  int64(0),
		"to":    int64(1),
		"moved": int64(5),
	}, moves[0].ContextMap())
}

func TestBalanceRoundsUp(t *testing.T) {
	s := newTestScheduler(t, 2)
	enqueueBatch(s, 0, 3)

	s.balanceGroup(s.top)
	assert.Equal(t, 1, s.CPU(0).Load())
	assert.Equal(t, 2, s.CPU(1).Load())
}

func TestBalanceWithoutProgress(t *testing.T) {
	s := newTestScheduler(t, 2)
	for _, td := range enqueueBatch(s, 0, 3) {
		td.cpuset = topology.NewCPUSet(0)
	}

	// Transferable threads that may not run on the idle cpu leave the
	// balancer nothing to do.
	s.balanceGroup(s.top)
	assert.Equal(t, 3, s.CPU(0).Load())
	assert.Equal(t, 0, s.CPU(1).Load())
	assert.Equal(t, int64(0), s.Stats().BalanceMoves)
}

func TestBalanceSkipsPinned(t *testing.T) {
	s := newTestScheduler(t, 2)
	for i := 0; i < 3; i++ {
		td := newRealtime(s, "pinned", 150)
		td.Pin()
		enqueue(s, 0, td)
	}

	s.balanceGroup(s.top)
	assert.Equal(t, 3, s.CPU(0).Load())
	assert.Equal(t, int64(0), s.Stats().Migrations)
}

func TestBalanceChildren(t *testing.T) {
	s, err := New(Config{}, topology.TwoLevel(4, 2, topology.ShareL2, 0))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	enqueueBatch(s, 0, 4)
	enqueueBatch(s, 2, 4)

	s.balanceGroup(s.top)
	for _, cpu := range s.CPUs() {
		assert.Equal(t, 2, s.CPU(cpu).Load(), "cpu %d", cpu)
	}
}

func TestBalanceFromClockTick(t *testing.T) {
	s := newTestScheduler(t, 2)
	enqueueBatch(s, 0, 4)

	s.balanceTicks.Store(1)
	s.CPU(0).ClockTick()

	assert.Equal(t, 2, s.CPU(0).Load())
	assert.Equal(t, 2, s.CPU(1).Load())
	assert.Equal(t, int64(1), s.Stats().BalanceRuns)

	next := s.balanceTicks.Load()
	assert.True(t, next >= 500 && next < 1500, "next balance in %d ticks", next)

	// Only the balancing cpu runs the balancer.
	s.balanceTicks.Store(1)
	s.CPU(1).ClockTick()
	assert.Equal(t, int32(1), s.balanceTicks.Load())
}

func TestBalanceDisabled(t *testing.T) {
	s := newTestScheduler(t, 2)
	require.NoError(t, s.SetTunable("balance", 0))
	enqueueBatch(s, 0, 4)

	s.balanceTicks.Store(1)
	s.CPU(0).ClockTick()
	assert.Equal(t, 4, s.CPU(0).Load())
	assert.Equal(t, int64(0), s.Stats().BalanceRuns)
	assert.NotEqual(t, int32(0), s.balanceTicks.Load(), "the cadence continues")
}

func TestLockPairOrder(t *testing.T) {
	s := newTestScheduler(t, 2)
	q0, q1 := s.tdq(0), s.tdq(1)
	assert.True(t, q0.seq < q1.seq)

	var wg sync.WaitGroup
	for _, pair := range [][2]*tdq{{q0, q1}, {q1, q0}} {
		wg.Add(1)
		go func(one, two *tdq) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				lockPair(one, two)
				unlockPair(one, two)
			}
		}(pair[0], pair[1])
	}
	wg.Wait()

	lockPair(q0, q0)
	unlockPair(q0, q0)
}

func TestMove(t *testing.T) {
	s := newTestScheduler(t, 2)
	from, to := s.tdq(0), s.tdq(1)
	td := newRealtime(s, "td", 150)
	enqueue(s, 0, td)

	lockPair(from, to)
	assert.Equal(t, 1, s.move(from, to))
	assert.True(t, td.lock.owned(&to.mu))
	assert.Equal(t, 1, td.ts.cpu)
	assert.Equal(t, 0, s.move(from, to), "nothing left")
	unlockPair(from, to)

	assert.Equal(t, 0, s.CPU(0).Load())
	assert.Equal(t, 1, s.CPU(1).Load())
	assert.Equal(t, priority.MaxIdle, from.lowestPri())
	assert.Equal(t, priority.Priority(150), to.lowestPri())
}

func TestStealSkipsNextTimeshareThread(t *testing.T) {
	s := newTestScheduler(t, 2)
	threads := enqueueBatch(s, 0, 2)
	q := s.tdq(0)

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, threads[1], q.steal(1))

	threads[1].cpuset = topology.NewCPUSet(0)
	assert.Nil(t, q.steal(1))
}

func TestSearch(t *testing.T) {
	s, err := New(Config{}, topology.TwoLevel(4, 2, topology.ShareL2, 0))
	require.NoError(t, err)
	require.NoError(t, s.Start())

	enqueueBatch(s, 0, 3)
	enqueueBatch(s, 1, 1)
	enqueueBatch(s, 3, 1)
	all := topology.Fill(4)

	assert.Equal(t, 2, s.lowest(s.top, all, -1), "least loaded cpu of the least loaded pair")
	assert.Equal(t, 0, s.highest(s.top, all, 1))
	assert.Equal(t, -1, s.highest(s.top, all, 4))
	assert.Equal(t, 3, s.lowest(s.top, topology.NewCPUSet(1, 3), -1))
	assert.Equal(t, -1, s.lowest(s.top, all, 255), "no cpu has a lowest priority above 255")

	low, high := s.both(s.top, all)
	assert.Equal(t, 2, low)
	assert.Equal(t, 0, high)
}
