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
	"github.com/uber-go/tally"
)

func TestObserverCounters(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	s := newTestScheduler(t, 2, Scope(scope))

	td := newRealtime(s, "td", 150)
	td.ts.cpu = 1
	s.CPU(0).Add(td, AddBoring)
	require.Equal(t, td, s.CPU(1).Preempt())
	s.CPU(1).Relinquish()

	counters := scope.Snapshot().Counters()
	tests := []struct {
		key  string
		want int64
	}{
		{"pickcpu.picks+reason=idle_affinity", 1},
		{"notifications+", 1},
		{"switch.switches+", 2},
		{"switch.by_kind+kind=involuntary", 1},
		{"switch.by_kind+kind=voluntary", 1},
		{"switch.preemptions+", 1},
	}
	for _, tt := range tests {
		c, ok := counters[tt.key]
		if assert.True(t, ok, "counter %q not found", tt.key) {
			assert.Equal(t, tt.want, c.Value(), "counter %q", tt.key)
		}
	}

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.PickIdleAffinity)
	assert.Equal(t, int64(2), stats.Switches)
}

func TestAddFlagsString(t *testing.T) {
	assert.Equal(t, "boring", AddBoring.String())
	assert.Equal(t, "yielding|ourself", (AddYielding | AddOurself).String())
	assert.Equal(t, "intr|preempted|borrowing", (AddIntr | AddPreempted | AddBorrowing).String())
}

func TestThreadStateString(t *testing.T) {
	for state, want := range map[ThreadState]string{
		Inactive:  "inactive",
		CanRun:    "canrun",
		RunQ:      "runq",
		Running:   "running",
		Inhibited: "inhibited",
	} {
		assert.Equal(t, want, state.String())
	}
	assert.Equal(t, "unknown", ThreadState(42).String())
}
