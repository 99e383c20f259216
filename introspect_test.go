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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/priority"
)

func TestIntrospect(t *testing.T) {
	s := newTestScheduler(t, 2)
	a := newRealtime(s, "a", 150)
	running(t, s, 0, a)
	enqueue(s, 0, newRealtime(s, "b", 152))
	enqueue(s, 0, newBatch(s, s.NewProcess("p", 0), "c"))
	s.Hardclock()

	st := s.Introspect()
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.Ticks)
	assert.Equal(t, 3, st.Load)
	assert.Equal(t, 100, st.Tunables["slice"])
	assert.Equal(t, int64(1), st.Stats.Switches)
	assert.Equal(t, 2, st.Topology.Count)

	require.Len(t, st.CPUs, 2)
	cpu0 := st.CPUs[0]
	assert.Equal(t, 3, cpu0.Load)
	assert.Equal(t, 2, cpu0.Transferable)
	assert.Equal(t, priority.Priority(150), cpu0.LowPriority)
	assert.Equal(t, "a", cpu0.Current.Name)
	assert.Equal(t, "running", cpu0.Current.State)
	assert.Equal(t, 0, cpu0.Current.OnCPU)

	require.Len(t, cpu0.Queued, 2)
	assert.Equal(t, "b", cpu0.Queued[0].Name)
	assert.Equal(t, "realtime", cpu0.Queued[0].Queue)
	assert.Equal(t, "c", cpu0.Queued[1].Name)
	assert.Equal(t, "timeshare", cpu0.Queued[1].Queue)
	assert.Equal(t, interact.Max, cpu0.Queued[1].Score)

	cpu1 := st.CPUs[1]
	assert.Equal(t, "idle: cpu1", cpu1.Current.Name)
	assert.Empty(t, cpu1.Queued)
	assert.Equal(t, priority.MaxIdle, cpu1.LowPriority)

	_, err := json.Marshal(st)
	assert.NoError(t, err)
}
