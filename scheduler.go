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
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/sched/api/platform"
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/internal/lifecycle"
	"go.uber.org/sched/internal/sampledlogger"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

const _warnInterval = time.Second

// Scheduler owns the run queues of every CPU in a topology. Build one with
// New, then drive each CPU through its CPU handle.
type Scheduler struct {
	cfg Config
	top *topology.Group

	tdqs     []*tdq // indexed by CPU id, nil for absent CPUs
	cpus     []*CPU
	ids      []int
	firstCPU int
	smp      bool

	hz       int
	stathz   int
	tickincr interact.Ticks

	tun *tunables
	obs *observer

	logger      *zap.Logger
	sampled     *sampledlogger.Logger
	switcher    platform.Switcher
	interrupter platform.Interrupter

	ticks   atomic.Int64
	nextTID atomic.Int32
	nextPID atomic.Int32

	balanceMu    sync.Mutex // guards rand
	rand         *rand.Rand
	balanceTicks atomic.Int32
	balanceTdq   *tdq

	once *lifecycle.Once
}

// New builds a Scheduler for top. A nil top is built from cfg. The CPUs of
// the scheduler are those of the topology root, or [0, cfg.NumCPU) when set.
func New(cfg Config, top *topology.Group, opts ...Option) (*Scheduler, error) {
	if top == nil {
		var err error
		if top, err = cfg.BuildTopology(); err != nil {
			return nil, err
		}
	}

	var ids []int
	if cfg.NumCPU > 0 {
		for cpu := 0; cpu < cfg.NumCPU; cpu++ {
			ids = append(ids, cpu)
		}
	} else {
		ids = top.Mask.CPUs()
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("scheduler needs at least one cpu")
	}

	cfg = cfg.withDefaults(len(ids))
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts...)
	s := &Scheduler{
		cfg:         cfg,
		top:         top,
		ids:         ids,
		firstCPU:    ids[0],
		smp:         len(ids) > 1,
		hz:          cfg.Hz,
		stathz:      cfg.StatHz,
		tickincr:    interact.TickIncr(cfg.Hz, cfg.StatHz),
		tun:         newTunables(cfg),
		obs:         newObserver(o.scope),
		logger:      o.logger,
		sampled:     sampledlogger.New(o.logger, _warnInterval, o.clock),
		switcher:    o.switcher,
		interrupter: o.interrupter,
		rand:        rand.New(rand.NewSource(cfg.Seed)),
		once:        lifecycle.NewOnce(),
	}

	maxID := ids[len(ids)-1]
	s.tdqs = make([]*tdq, maxID+1)
	s.cpus = make([]*CPU, maxID+1)
	for _, id := range ids {
		q := newTdq(s, id)
		s.tdqs[id] = q
		s.cpus[id] = &CPU{s: s, q: q}
	}
	s.balanceTdq = s.tdqs[s.firstCPU]
	return s, nil
}

// Start attaches every CPU to its topology group and arms the balancer. It
// panics if a CPU has no group.
func (s *Scheduler) Start() error {
	return s.once.Start(func() error {
		for _, id := range s.ids {
			q := s.tdqs[id]
			cg := s.top.Find(id)
			if cg == nil {
				s.logger.Error("cpu has no topology group", zap.Int("cpu", id))
				panic(fmt.Sprintf("sched: cpu %d has no topology group", id))
			}
			q.cg = cg
			s.logger.Debug("cpu attached",
				zap.Int("cpu", id),
				zap.Int("cacheLevel", int(cg.Level)),
				zap.Stringer("group", cg.Mask))
		}
		s.balanceTicks.Store(int32(s.tun.balanceInterval()))
		s.logger.Info("scheduler started",
			zap.Int("ncpu", len(s.ids)),
			zap.Int("hz", s.hz),
			zap.Int("stathz", s.stathz))
		return nil
	})
}

// Stop marks the scheduler stopped. CPUs may still be driven afterwards but
// the balancer no longer runs.
func (s *Scheduler) Stop() error {
	return s.once.Stop(func() error {
		s.balanceTicks.Store(0)
		s.logger.Info("scheduler stopped")
		return nil
	})
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (s *Scheduler) IsRunning() bool {
	return s.once.IsRunning()
}

// CPU returns the handle of a CPU, or nil if the CPU is not registered.
func (s *Scheduler) CPU(id int) *CPU {
	if id < 0 || id >= len(s.cpus) {
		return nil
	}
	return s.cpus[id]
}

// CPUs lists the registered CPU ids in increasing order.
func (s *Scheduler) CPUs() []int {
	return append([]int(nil), s.ids...)
}

// Topology returns the topology the scheduler was built with.
func (s *Scheduler) Topology() *topology.Group {
	return s.top
}

func (s *Scheduler) tdq(id int) *tdq {
	if id < 0 || id >= len(s.tdqs) {
		return nil
	}
	return s.tdqs[id]
}

// Hardclock advances the global tick count. Call it once per hz tick
// before the per CPU Tick calls.
func (s *Scheduler) Hardclock() {
	s.ticks.Inc()
}

// Ticks returns the global tick count.
func (s *Scheduler) Ticks() int {
	return int(s.ticks.Load())
}

// Hz returns the hardclock rate.
func (s *Scheduler) Hz() int { return s.hz }

// StatHz returns the statistics clock rate.
func (s *Scheduler) StatHz() int { return s.stathz }

// Load returns the number of threads counted toward the system load.
func (s *Scheduler) Load() int {
	total := 0
	for _, id := range s.ids {
		total += int(s.tdqs[id].sysload.Load())
	}
	return total
}

// RRInterval returns the time slice in hz ticks.
func (s *Scheduler) RRInterval() int {
	n := s.tun.slice() * s.hz / s.stathz
	if n < 1 {
		n = 1
	}
	return n
}

// PctCPU returns the fraction of a CPU td used recently, in [0, 1].
func (s *Scheduler) PctCPU(td *Thread) float64 {
	td.lock.lock()
	defer td.lock.unlock()
	return float64(td.ts.usage.PctCPU(s.Ticks(), s.hz)) / interact.FScale
}

// Stats returns the decision counters.
func (s *Scheduler) Stats() Stats {
	return s.obs.snapshot()
}

// priority recomputes the user priority of a timeshare thread from its
// interactivity and CPU usage.
func (s *Scheduler) priority(td *Thread) {
	if td.class != priority.ClassTimeshare {
		return
	}
	pri := interact.Priority(td.ts.hist, td.ts.usage, td.nice(), s.tun.interact(), s.hz)
	s.userPrio(td, pri)
}
