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
	"github.com/uber-go/tally"
	"go.uber.org/sched/api/platform"
	"go.uber.org/sched/internal/clock"
	"go.uber.org/zap"
)

// Option customizes a Scheduler.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	logger      *zap.Logger
	scope       tally.Scope
	switcher    platform.Switcher
	interrupter platform.Interrupter
	clock       clock.Clock
}

// Logger sets the logger. Defaults to a no-op logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// Scope sets the tally scope for scheduler statistics. Defaults to a no-op
// scope.
func Scope(scope tally.Scope) Option {
	return optionFunc(func(o *options) {
		o.scope = scope
	})
}

// Switcher sets the context transfer primitive. Defaults to
// platform.NopSwitcher.
func Switcher(sw platform.Switcher) Option {
	return optionFunc(func(o *options) {
		o.switcher = sw
	})
}

// Interrupter sets the cross CPU notification mechanism. Defaults to
// platform.NopInterrupter.
func Interrupter(i platform.Interrupter) Option {
	return optionFunc(func(o *options) {
		o.interrupter = i
	})
}

// Clock sets the wall clock used to rate limit warnings.
func Clock(c clock.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

func applyOptions(opts ...Option) options {
	o := options{
		logger:      zap.NewNop(),
		scope:       tally.NoopScope,
		switcher:    platform.NopSwitcher,
		interrupter: platform.NopInterrupter,
		clock:       clock.NewReal(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
