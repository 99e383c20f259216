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
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
)

// Status is a report of the whole scheduler.
type Status struct {
	Running  bool                 `json:"running"`
	Ticks    int                  `json:"ticks"`
	Load     int                  `json:"load"`
	CPUs     []CPUStatus          `json:"cpus"`
	Topology topology.GroupStatus `json:"topology"`
	Tunables map[string]int       `json:"tunables"`
	Stats    Stats                `json:"stats"`
}

// CPUStatus is a consistent snapshot of one CPU's queue.
type CPUStatus struct {
	ID             int               `json:"id"`
	Load           int               `json:"load"`
	Sysload        int               `json:"sysload"`
	Transferable   int               `json:"transferable"`
	LowPriority    priority.Priority `json:"lowPriority"`
	SwitchCount    int               `json:"switchCount"`
	OldSwitchCount int               `json:"oldSwitchCount"`
	InsertIndex    int               `json:"insertIndex"`
	RemoveIndex    int               `json:"removeIndex"`
	IPIPending     bool              `json:"ipiPending"`
	Current        ThreadInfo        `json:"current"`
	Queued         []ThreadInfo      `json:"queued"`
}

// Introspect reports every CPU, the topology and the tunables.
func (s *Scheduler) Introspect() Status {
	st := Status{
		Running:  s.IsRunning(),
		Ticks:    s.Ticks(),
		Load:     s.Load(),
		Topology: s.top.Introspect(),
		Tunables: s.Tunables(),
		Stats:    s.Stats(),
	}
	for _, id := range s.ids {
		st.CPUs = append(st.CPUs, s.tdqs[id].introspect())
	}
	return st
}

func (q *tdq) introspect() CPUStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := CPUStatus{
		ID:             q.id,
		Load:           int(q.load.Load()),
		Sysload:        int(q.sysload.Load()),
		Transferable:   int(q.transferable.Load()),
		LowPriority:    q.lowestPri(),
		SwitchCount:    q.switchcnt,
		OldSwitchCount: q.oldswitchcnt,
		InsertIndex:    q.idx,
		RemoveIndex:    q.ridx,
		IPIPending:     q.ipipending,
		Current:        q.curthread.info(""),
		Queued:         []ThreadInfo{},
	}
	q.each(func(band string, td *Thread) {
		st.Queued = append(st.Queued, td.info(band))
	})
	return st
}
