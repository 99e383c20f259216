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
	"io/ioutil"
	"math/bits"
	"sort"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/sched/internal/config"
	"go.uber.org/sched/internal/interact"
	"go.uber.org/sched/priority"
	"go.uber.org/sched/topology"
)

const (
	_defaultHz = 1000

	// _defaultStealThreshMax caps the derived steal threshold.
	_defaultStealThreshMax = 3
)

// Config describes a Scheduler. Zero values take defaults; pointer fields
// distinguish an explicit zero from an unset value.
type Config struct {
	// Hz is the rate of the hardclock tick.
	Hz int `config:"hz"`
	// StatHz is the rate of the statistics clock. Defaults to Hz.
	StatHz int `config:"stathz"`
	// NumCPU sizes synthetic topologies. Defaults to the number of CPUs in
	// Topology, or 1.
	NumCPU int `config:"ncpu"`

	// Slice is the time slice in stat ticks. Defaults to StatHz/10.
	Slice int `config:"slice"`
	// Interact is the score below which a thread is interactive.
	Interact *int `config:"interact"`
	// PreemptThresh is the priority at or above which a newly runnable
	// thread preempts the current one. Zero disables preemption of
	// non-idle threads.
	PreemptThresh *int `config:"preempt_thresh"`
	// StaticBoost is the priority given to threads going to sleep. Zero
	// disables the boost; one uses the priority passed to Sleep.
	StaticBoost *int `config:"static_boost"`

	// BalanceInterval is the average number of stat ticks between
	// rebalances. Defaults to StatHz.
	BalanceInterval int `config:"balance_interval"`
	// Rebalance enables the periodic balancer.
	Rebalance *bool `config:"rebalance"`
	// Affinity is the number of ticks per cache level that a thread is
	// considered warm on the CPU it last ran on. Defaults to max(1, Hz/1000).
	Affinity int `config:"affinity"`
	// StealIdle lets idle CPUs steal work.
	StealIdle *bool `config:"steal_idle"`
	// StealHTT lets idle CPUs steal from their SMT siblings.
	StealHTT *bool `config:"steal_htt"`
	// StealThresh is the minimum load a CPU must have to be stolen from
	// outside SMT groups. Defaults to min(log2(ncpu), 3).
	StealThresh *int `config:"steal_thresh"`

	// Seed seeds the balancer's interval jitter.
	Seed int64 `config:"seed"`

	// Topology describes the CPU groups. An empty topology is a single
	// group of NumCPU CPUs.
	Topology topology.GroupConfig `config:"topology"`
}

// LoadConfigFromYAML reads a Config from a YAML file.
func LoadConfigFromYAML(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document into a Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := config.DecodeYAML(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("failed to decode scheduler config: %v", err)
	}
	return cfg, nil
}

// BuildTopology returns the topology described by the config.
func (c Config) BuildTopology() (*topology.Group, error) {
	ncpu := c.NumCPU
	if ncpu <= 0 {
		ncpu = countCPUs(c.Topology)
	}
	if ncpu <= 0 {
		ncpu = 1
	}
	return topology.FromConfig(c.Topology, ncpu)
}

func countCPUs(g topology.GroupConfig) int {
	n := 0
	for _, cpu := range g.CPUs {
		if cpu+1 > n {
			n = cpu + 1
		}
	}
	for _, child := range g.Children {
		if m := countCPUs(child); m > n {
			n = m
		}
	}
	return n
}

// withDefaults fills unset fields for a machine of ncpu CPUs.
func (c Config) withDefaults(ncpu int) Config {
	if c.Hz == 0 {
		c.Hz = _defaultHz
	}
	if c.StatHz == 0 {
		c.StatHz = c.Hz
	}
	if c.Slice == 0 {
		c.Slice = c.StatHz / 10
		if c.Slice == 0 {
			c.Slice = 1
		}
	}
	if c.Interact == nil {
		c.Interact = intPtr(interact.DefaultThreshold)
	}
	if c.PreemptThresh == nil {
		c.PreemptThresh = intPtr(int(priority.MinKern))
	}
	if c.StaticBoost == nil {
		c.StaticBoost = intPtr(int(priority.MinTimeshare))
	}
	if c.BalanceInterval == 0 {
		c.BalanceInterval = c.StatHz
	}
	if c.Rebalance == nil {
		c.Rebalance = boolPtr(true)
	}
	if c.Affinity == 0 {
		c.Affinity = c.Hz / 1000
		if c.Affinity < 1 {
			c.Affinity = 1
		}
	}
	if c.StealIdle == nil {
		c.StealIdle = boolPtr(true)
	}
	if c.StealHTT == nil {
		c.StealHTT = boolPtr(true)
	}
	if c.StealThresh == nil {
		c.StealThresh = intPtr(defaultStealThresh(ncpu))
	}
	return c
}

// defaultStealThresh is roughly log2(ncpu), capped.
func defaultStealThresh(ncpu int) int {
	t := bits.Len(uint(ncpu)) - 1
	if t > _defaultStealThreshMax {
		t = _defaultStealThreshMax
	}
	if t < 0 {
		t = 0
	}
	return t
}

// validate reports every out of range value. It expects defaults applied.
func (c Config) validate() error {
	var errs error
	if c.Hz < 1 {
		errs = multierr.Append(errs, fmt.Errorf("hz must be positive, got %d", c.Hz))
	}
	if c.StatHz < 1 {
		errs = multierr.Append(errs, fmt.Errorf("stathz must be positive, got %d", c.StatHz))
	}
	if c.Slice < 1 {
		errs = multierr.Append(errs, fmt.Errorf("slice must be positive, got %d", c.Slice))
	}
	if err := checkTunable("interact", *c.Interact); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := checkTunable("preempt_thresh", *c.PreemptThresh); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := checkTunable("static_boost", *c.StaticBoost); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := checkTunable("balance_interval", c.BalanceInterval); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := checkTunable("affinity", c.Affinity); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := checkTunable("steal_thresh", *c.StealThresh); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// tunableRange bounds each runtime adjustable tunable.
var tunableRange = map[string]struct{ min, max int }{
	"slice":            {1, 1 << 20},
	"interact":         {0, interact.Max},
	"preempt_thresh":   {0, int(priority.Max)},
	"static_boost":     {0, int(priority.Max)},
	"balance":          {0, 1},
	"balance_interval": {1, 1 << 20},
	"affinity":         {0, 1 << 20},
	"steal_idle":       {0, 1},
	"steal_htt":        {0, 1},
	"steal_thresh":     {0, 1 << 10},
}

func checkTunable(name string, v int) error {
	r, ok := tunableRange[name]
	if !ok {
		return fmt.Errorf("unknown tunable %q", name)
	}
	if v < r.min || v > r.max {
		return fmt.Errorf("%s must be in [%d, %d], got %d", name, r.min, r.max, v)
	}
	return nil
}

// tunables are read racily on hot paths and may lag a write by a tick.
type tunables struct {
	vals map[string]*atomic.Int32
}

func newTunables(c Config) *tunables {
	vals := map[string]int32{
		"slice":            int32(c.Slice),
		"interact":         int32(*c.Interact),
		"preempt_thresh":   int32(*c.PreemptThresh),
		"static_boost":     int32(*c.StaticBoost),
		"balance":          boolInt(*c.Rebalance),
		"balance_interval": int32(c.BalanceInterval),
		"affinity":         int32(c.Affinity),
		"steal_idle":       boolInt(*c.StealIdle),
		"steal_htt":        boolInt(*c.StealHTT),
		"steal_thresh":     int32(*c.StealThresh),
	}
	t := &tunables{vals: make(map[string]*atomic.Int32, len(vals))}
	for name, v := range vals {
		t.vals[name] = atomic.NewInt32(v)
	}
	return t
}

func (t *tunables) get(name string) int { return int(t.vals[name].Load()) }

func (t *tunables) slice() int         { return t.get("slice") }
func (t *tunables) interact() int      { return t.get("interact") }
func (t *tunables) preemptThresh() int { return t.get("preempt_thresh") }
func (t *tunables) staticBoost() int   { return t.get("static_boost") }
func (t *tunables) rebalance() bool    { return t.get("balance") != 0 }
func (t *tunables) balanceInterval() int {
	return t.get("balance_interval")
}
func (t *tunables) affinity() int    { return t.get("affinity") }
func (t *tunables) stealIdle() bool  { return t.get("steal_idle") != 0 }
func (t *tunables) stealHTT() bool   { return t.get("steal_htt") != 0 }
func (t *tunables) stealThresh() int { return t.get("steal_thresh") }

// Tunable returns the current value of a runtime tunable.
func (s *Scheduler) Tunable(name string) (int, error) {
	v, ok := s.tun.vals[name]
	if !ok {
		return 0, fmt.Errorf("unknown tunable %q", name)
	}
	return int(v.Load()), nil
}

// SetTunable changes a runtime tunable. Running CPUs observe the change
// within a tick.
func (s *Scheduler) SetTunable(name string, value int) error {
	if err := checkTunable(name, value); err != nil {
		return err
	}
	s.tun.vals[name].Store(int32(value))
	return nil
}

// Tunables lists every tunable and its value.
func (s *Scheduler) Tunables() map[string]int {
	out := make(map[string]int, len(s.tun.vals))
	for name, v := range s.tun.vals {
		out[name] = int(v.Load())
	}
	return out
}

// TunableNames lists the tunables in sorted order.
func TunableNames() []string {
	names := make([]string, 0, len(tunableRange))
	for name := range tunableRange {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
