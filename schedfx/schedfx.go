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

// Package schedfx provides a Scheduler to an fx application. The
// scheduler is started and stopped with the application.
package schedfx

import (
	"context"

	"github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/sched"
	"go.uber.org/sched/api/platform"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

// Module provides a *sched.Scheduler from a sched.Config.
var Module = fx.Options(
	fx.Provide(New),
)

// Params defines the dependencies of this module.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    sched.Config

	// Topology defaults to the one described by Config.
	Topology    *topology.Group      `optional:"true"`
	Switcher    platform.Switcher    `optional:"true"`
	Interrupter platform.Interrupter `optional:"true"`
	Logger      *zap.Logger          `optional:"true"`
	Scope       tally.Scope          `optional:"true"`
}

// Result defines the values produced by this module.
type Result struct {
	fx.Out

	Scheduler *sched.Scheduler
}

// New builds a Scheduler and hooks it into the application lifecycle.
func New(p Params) (Result, error) {
	var opts []sched.Option
	if p.Switcher != nil {
		opts = append(opts, sched.Switcher(p.Switcher))
	}
	if p.Interrupter != nil {
		opts = append(opts, sched.Interrupter(p.Interrupter))
	}
	if p.Logger != nil {
		opts = append(opts, sched.Logger(p.Logger.Named("sched")))
	}
	if p.Scope != nil {
		opts = append(opts, sched.Scope(p.Scope.SubScope("sched")))
	}

	s, err := sched.New(p.Config, p.Topology, opts...)
	if err != nil {
		return Result{}, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error { return s.Start() },
		OnStop:  func(context.Context) error { return s.Stop() },
	})
	return Result{Scheduler: s}, nil
}
