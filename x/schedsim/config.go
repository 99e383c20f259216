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

package schedsim

import (
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/sched"
	"go.uber.org/sched/internal/config"
	"go.uber.org/sched/priority"
)

// Config describes a simulation:
//
//  interval: 1ms
//  scheduler:
//    ncpu: 4
//    topology:
//      level: 0
//      children:
//        - {level: 2, cpus: [0, 1]}
//        - {level: 2, cpus: [2, 3]}
//  workloads:
//    - {name: build, count: 6}
//    - {name: editor, run: 2, sleep: 40}
//    - {name: irq, class: ithd, priority: 24, run: 1, sleep: 10, cpus: [0]}
type Config struct {
	// Interval is the wall time of one hz tick when the simulator runs on
	// its own. Zero leaves stepping to the caller.
	Interval  time.Duration    `config:"interval"`
	Scheduler sched.Config     `config:"scheduler"`
	Workloads []WorkloadConfig `config:"workloads"`
}

// WorkloadConfig is a group of identical threads in one process.
type WorkloadConfig struct {
	Name  string `config:"name"`
	Count int    `config:"count"`
	Nice  int    `config:"nice"`
	// Class is one of timeshare, realtime, fifo, idle or ithd. Defaults to
	// timeshare.
	Class string `config:"class"`
	// Priority defaults to the first priority of the class.
	Priority int `config:"priority"`
	// Run is the length of a burst in ticks. Zero never gives up the CPU.
	Run int `config:"run"`
	// Sleep is how long a thread sleeps after each burst. Zero yields
	// instead.
	Sleep int   `config:"sleep"`
	CPUs  []int `config:"cpus"`
}

// ParseConfig decodes a YAML simulation config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := config.DecodeYAML(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("failed to decode simulator config: %v", err)
	}
	return cfg, nil
}

// LoadConfigFromYAML reads a simulation config from a file.
func LoadConfigFromYAML(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

var _classes = map[string]struct {
	class priority.Class
	pri   priority.Priority
}{
	"":          {priority.ClassTimeshare, priority.PUSER},
	"timeshare": {priority.ClassTimeshare, priority.PUSER},
	"realtime":  {priority.ClassRealtime, priority.MinRealtime},
	"fifo":      {priority.ClassFIFO, priority.MinRealtime},
	"idle":      {priority.ClassIdle, priority.MinIdle},
	"ithd":      {priority.ClassIthd, priority.MinIthd},
}

func (w WorkloadConfig) class() (priority.Class, priority.Priority, error) {
	c, ok := _classes[strings.ToLower(w.Class)]
	if !ok {
		return 0, 0, fmt.Errorf("workload %q: unknown class %q", w.Name, w.Class)
	}
	pri := c.pri
	if w.Priority != 0 {
		pri = priority.Priority(w.Priority)
	}
	return c.class, pri, nil
}

func (w WorkloadConfig) count() int {
	if w.Count == 0 {
		return 1
	}
	return w.Count
}

func (w WorkloadConfig) validate() error {
	var err error
	if w.Name == "" {
		err = multierr.Append(err, fmt.Errorf("workload without a name"))
	}
	if _, _, cerr := w.class(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	if w.Count < 0 {
		err = multierr.Append(err, fmt.Errorf("workload %q: count must not be negative, got %d", w.Name, w.Count))
	}
	if w.Priority < 0 || w.Priority > int(priority.Max) {
		err = multierr.Append(err, fmt.Errorf("workload %q: priority must be in [0, %d], got %d", w.Name, priority.Max, w.Priority))
	}
	if w.Run < 0 || w.Sleep < 0 {
		err = multierr.Append(err, fmt.Errorf("workload %q: run and sleep must not be negative", w.Name))
	}
	return err
}
