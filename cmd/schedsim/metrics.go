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


package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/sched"
	"go.uber.org/sched/x/schedsim"
)

type statCounter struct {
	desc *prometheus.Desc
	get  func(sched.Stats) int64
}

func newStatCounter(name, help string, get func(sched.Stats) int64) statCounter {
	return statCounter{
		desc: prometheus.NewDesc("schedsim_"+name+"_total", help, nil, nil),
		get:  get,
	}
}

// collector exports simulator reports to Prometheus. Every scrape takes a
// fresh Report, so values are always consistent with /report.
type collector struct {
	sim *schedsim.Simulator

	ticks      *prometheus.Desc
	load       *prometheus.Desc
	interrupts *prometheus.Desc
	cpuLoad    *prometheus.Desc
	cpuBusy    *prometheus.Desc
	cpuSwitch  *prometheus.Desc
	stats      []statCounter
}

func newCollector(sim *schedsim.Simulator) *collector {
	cpu := []string{"cpu"}
	return &collector{
		sim:        sim,
		ticks:      prometheus.NewDesc("schedsim_ticks_total", "Simulated hardclock ticks.", nil, nil),
		load:       prometheus.NewDesc("schedsim_load", "Runnable threads on all CPUs.", nil, nil),
		interrupts: prometheus.NewDesc("schedsim_interrupts_total", "Cross-CPU interrupts sent.", nil, nil),
		cpuLoad:    prometheus.NewDesc("schedsim_cpu_load", "Runnable threads on a CPU.", cpu, nil),
		cpuBusy:    prometheus.NewDesc("schedsim_cpu_busy_ticks_total", "Ticks a CPU spent running a workload.", cpu, nil),
		cpuSwitch:  prometheus.NewDesc("schedsim_cpu_switches_total", "Context switches on a CPU.", cpu, nil),
		stats: []statCounter{
			newStatCounter("pick_intr_bind", "CPU picks that kept an interrupt thread in place.", func(s sched.Stats) int64 { return s.PickIntrBind }),
			newStatCounter("pick_idle_affinity", "CPU picks of an idle CPU with cache affinity.", func(s sched.Stats) int64 { return s.PickIdleAffinity }),
			newStatCounter("pick_affinity", "CPU picks of the last CPU for affinity.", func(s sched.Stats) int64 { return s.PickAffinity }),
			newStatCounter("pick_lowest", "CPU picks of the least loaded CPU.", func(s sched.Stats) int64 { return s.PickLowest }),
			newStatCounter("pick_local", "CPU picks of the current CPU.", func(s sched.Stats) int64 { return s.PickLocal }),
			newStatCounter("pick_migration", "CPU picks that moved a thread.", func(s sched.Stats) int64 { return s.PickMigration }),
			newStatCounter("pick_fallback", "CPU picks that fell back to any allowed CPU.", func(s sched.Stats) int64 { return s.PickFallback }),
			newStatCounter("switches", "Context switches.", func(s sched.Stats) int64 { return s.Switches }),
			newStatCounter("vol_switches", "Voluntary context switches.", func(s sched.Stats) int64 { return s.VolSwitches }),
			newStatCounter("invol_switches", "Involuntary context switches.", func(s sched.Stats) int64 { return s.InvolSwitches }),
			newStatCounter("preemptions", "Preemptions by a higher priority thread.", func(s sched.Stats) int64 { return s.Preemptions }),
			newStatCounter("migrations", "Threads moved between CPUs.", func(s sched.Stats) int64 { return s.Migrations }),
			newStatCounter("steals", "Threads stolen by an idle CPU.", func(s sched.Stats) int64 { return s.Steals }),
			newStatCounter("balance_runs", "Periodic balancer runs.", func(s sched.Stats) int64 { return s.BalanceRuns }),
			newStatCounter("balance_moves", "Threads moved by the balancer.", func(s sched.Stats) int64 { return s.BalanceMoves }),
			newStatCounter("notifications", "Remote CPUs notified of new work.", func(s sched.Stats) int64 { return s.Notifications }),
			newStatCounter("idle_wakeups", "Idle CPUs woken for new work.", func(s sched.Stats) int64 { return s.IdleWakeups }),
		},
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.load
	ch <- c.interrupts
	ch <- c.cpuLoad
	ch <- c.cpuBusy
	ch <- c.cpuSwitch
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	r := c.sim.Report()
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(r.Ticks))
	ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, float64(r.Load))
	ch <- prometheus.MustNewConstMetric(c.interrupts, prometheus.CounterValue, float64(r.Interrupts))
	for _, cpu := range r.CPUs {
		id := strconv.Itoa(cpu.ID)
		ch <- prometheus.MustNewConstMetric(c.cpuLoad, prometheus.GaugeValue, float64(cpu.Load), id)
		ch <- prometheus.MustNewConstMetric(c.cpuBusy, prometheus.CounterValue, float64(cpu.Busy), id)
		ch <- prometheus.MustNewConstMetric(c.cpuSwitch, prometheus.CounterValue, float64(cpu.Switches), id)
	}
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.CounterValue, float64(s.get(r.Stats)))
	}
}
