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

// Package schedsim drives a Scheduler with synthetic workloads. Each step
// of the simulator is one hardclock tick on every CPU: sleepers whose
// time is up are woken, then every CPU accounts the tick to its current
// thread and runs the thread's burst.
package schedsim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/sched"
	"go.uber.org/sched/internal/clock"
	"go.uber.org/sched/internal/lifecycle"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

// Simulator runs workloads on a Scheduler.
type Simulator struct {
	s      *sched.Scheduler
	intr   *mailbox
	sw     *switchCounter
	clock  clock.Clock
	logger *zap.Logger
	onStep func(int)

	interval time.Duration
	once     *lifecycle.Once
	stop     chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	tick  int
	busy  map[int]int
	tasks []*task
	byID  map[int]*task
}

type task struct {
	td *sched.Thread
	w  WorkloadConfig

	left   int // ticks left in the current burst
	wake   int // tick at which a sleeping task is woken
	asleep bool
	ran    int
	cpus   topology.CPUSet
}

// New builds a simulator and its scheduler from cfg.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	var err error
	for _, w := range cfg.Workloads {
		err = multierr.Append(err, w.validate())
	}
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts...)
	sim := &Simulator{
		intr:     newMailbox(),
		sw:       newSwitchCounter(),
		clock:    o.clock,
		logger:   o.logger,
		onStep:   o.onStep,
		interval: cfg.Interval,
		once:     lifecycle.NewOnce(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		busy:     make(map[int]int),
		byID:     make(map[int]*task),
	}
	s, err := sched.New(cfg.Scheduler, nil,
		sched.Logger(o.logger),
		sched.Scope(o.scope),
		sched.Clock(o.clock),
		sched.Switcher(sim.sw),
		sched.Interrupter(sim.intr),
	)
	if err != nil {
		return nil, err
	}
	sim.s = s

	first := s.CPU(s.CPUs()[0])
	for _, w := range cfg.Workloads {
		class, pri, _ := w.class()
		var set topology.CPUSet
		for _, cpu := range w.CPUs {
			if s.CPU(cpu) == nil {
				return nil, fmt.Errorf("workload %q: unknown cpu %d", w.Name, cpu)
			}
			set.Set(cpu)
		}
		p := s.NewProcess(w.Name, w.Nice)
		for i := 0; i < w.count(); i++ {
			td := p.NewThread(fmt.Sprintf("%s/%d", w.Name, i), class, pri)
			if !set.Empty() {
				first.SetAffinity(td, set)
			}
			t := &task{td: td, w: w, left: w.Run}
			sim.tasks = append(sim.tasks, t)
			sim.byID[td.ID()] = t
		}
	}
	return sim, nil
}

// Scheduler returns the simulated scheduler.
func (sim *Simulator) Scheduler() *sched.Scheduler { return sim.s }

// Start starts the scheduler, enters every CPU and makes every task
// runnable. With a non-zero interval the simulator then steps itself
// until stopped.
func (sim *Simulator) Start() error {
	return sim.once.Start(func() error {
		if err := sim.s.Start(); err != nil {
			return err
		}
		sim.mu.Lock()
		cpus := sim.s.CPUs()
		for _, id := range cpus {
			sim.s.CPU(id).Throw(nil)
		}
		for i, t := range sim.tasks {
			sim.s.CPU(cpus[i%len(cpus)]).Add(t.td, sched.AddBoring)
		}
		sim.mu.Unlock()

		if sim.interval > 0 {
			go sim.run(sim.clock.NewTicker(sim.interval))
		} else {
			close(sim.done)
		}
		sim.logger.Info("simulator started",
			zap.Int("ncpu", len(cpus)),
			zap.Int("threads", len(sim.tasks)),
			zap.Duration("interval", sim.interval))
		return nil
	})
}

// Stop stops stepping and the scheduler.
func (sim *Simulator) Stop() error {
	return sim.once.Stop(func() error {
		close(sim.stop)
		<-sim.done
		sim.logger.Info("simulator stopped", zap.Int("ticks", sim.Ticks()))
		return sim.s.Stop()
	})
}

func (sim *Simulator) run(ticker clock.Ticker) {
	defer close(sim.done)
	defer ticker.Stop()
	for {
		select {
		case <-sim.stop:
			return
		case <-ticker.C():
			sim.Step()
		}
	}
}

// Ticks returns the number of completed steps.
func (sim *Simulator) Ticks() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.tick
}

// Run performs n steps.
func (sim *Simulator) Run(n int) {
	for i := 0; i < n; i++ {
		sim.Step()
	}
}

// Step simulates one hardclock tick.
func (sim *Simulator) Step() {
	sim.mu.Lock()
	tick := sim.step()
	sim.mu.Unlock()
	if sim.onStep != nil {
		sim.onStep(tick)
	}
}

func (sim *Simulator) step() int {
	s := sim.s
	sim.tick++
	s.Hardclock()

	for _, t := range sim.tasks {
		if !t.asleep || t.wake > sim.tick {
			continue
		}
		t.asleep = false
		s.CPU(sim.wakeCPU(t)).Wakeup(t.td)
	}

	stat := statTicks(sim.tick, s.Hz(), s.StatHz())
	for _, id := range s.CPUs() {
		c := s.CPU(id)
		if sim.intr.take(id) {
			c.Preempt()
		}
		if c.Current() == c.Idlethread() {
			c.Idle()
		}

		td := c.Current()
		t, ok := sim.byID[td.ID()]
		if !ok {
			// Idle threads still drive the statistics clock and with it
			// the balancer.
			for i := 0; i < stat; i++ {
				c.ClockTick()
			}
			continue
		}

		c.Userret()
		t.ran++
		t.cpus.Set(id)
		sim.busy[id]++
		c.Tick()
		for i := 0; i < stat; i++ {
			c.ClockTick()
		}

		if t.w.Run > 0 {
			t.left--
			if t.left <= 0 {
				t.left = t.w.Run
				if t.w.Sleep > 0 {
					t.asleep = true
					t.wake = sim.tick + t.w.Sleep + 1
					c.Sleep(0)
				} else {
					c.Relinquish()
				}
				continue
			}
		}
		c.AST()
	}
	return sim.tick
}

func (sim *Simulator) wakeCPU(t *task) int {
	if cpu := t.td.Info().LastCPU; sim.s.CPU(cpu) != nil {
		return cpu
	}
	return sim.s.CPUs()[0]
}

// statTicks is the number of statistics clock ticks that fall in hardclock
// tick n.
func statTicks(n, hz, stathz int) int {
	return n*stathz/hz - (n-1)*stathz/hz
}

// Report is a summary of a simulation so far.
type Report struct {
	Ticks      int              `json:"ticks"`
	Load       int              `json:"load"`
	Threads    []ThreadReport   `json:"threads"`
	Workloads  []WorkloadReport `json:"workloads"`
	CPUs       []CPUReport      `json:"cpus"`
	Interrupts int              `json:"interrupts"`
	Stats      sched.Stats      `json:"stats"`
}

// ThreadReport describes one simulated thread.
type ThreadReport struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Workload     string  `json:"workload"`
	State        string  `json:"state"`
	Priority     int     `json:"priority"`
	UserPriority int     `json:"userPriority"`
	Score        int     `json:"score"`
	Ticks        int     `json:"ticks"`
	PctCPU       float64 `json:"pctcpu"`
	CPUs         []int   `json:"cpus"`
}

// WorkloadReport aggregates the threads of a workload.
type WorkloadReport struct {
	Name    string `json:"name"`
	Threads int    `json:"threads"`
	Ticks   int    `json:"ticks"`
	// Share is the fraction of all busy CPU ticks given to the workload.
	Share float64 `json:"share"`
}

// CPUReport describes one CPU.
type CPUReport struct {
	ID       int `json:"id"`
	Load     int `json:"load"`
	Busy     int `json:"busy"`
	Switches int `json:"switches"`
}

// Report summarizes the simulation.
func (sim *Simulator) Report() Report {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	r := Report{
		Ticks:      sim.tick,
		Load:       sim.s.Load(),
		Interrupts: sim.intr.count(),
		Stats:      sim.s.Stats(),
	}

	var busy int
	for _, id := range sim.s.CPUs() {
		r.CPUs = append(r.CPUs, CPUReport{
			ID:       id,
			Load:     sim.s.CPU(id).Load(),
			Busy:     sim.busy[id],
			Switches: sim.sw.get(id),
		})
		busy += sim.busy[id]
	}

	index := make(map[string]int)
	for _, t := range sim.tasks {
		info := t.td.Info()
		r.Threads = append(r.Threads, ThreadReport{
			ID:           info.ID,
			Name:         info.Name,
			Workload:     t.w.Name,
			State:        info.State,
			Priority:     int(info.Priority),
			UserPriority: int(info.UserPriority),
			Score:        info.Score,
			Ticks:        t.ran,
			PctCPU:       sim.s.PctCPU(t.td),
			CPUs:         t.cpus.CPUs(),
		})

		i, ok := index[t.w.Name]
		if !ok {
			i = len(r.Workloads)
			index[t.w.Name] = i
			r.Workloads = append(r.Workloads, WorkloadReport{Name: t.w.Name})
		}
		r.Workloads[i].Threads++
		r.Workloads[i].Ticks += t.ran
	}
	for i := range r.Workloads {
		if busy > 0 {
			r.Workloads[i].Share = float64(r.Workloads[i].Ticks) / float64(busy)
		}
	}
	sort.Slice(r.Threads, func(i, j int) bool { return r.Threads[i].ID < r.Threads[j].ID })
	return r
}
