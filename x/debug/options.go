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


package debug

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the scheduler debug page.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	logger  *zap.Logger
	refresh time.Duration
	tmpl    templateIface
}

// Logger reports pages that fail to render or encode. Leaving it unset,
// or passing nil, discards those errors.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// Refresh makes the HTML page reload itself every d, rounded down to whole
// seconds, so a live scheduler can be watched. Zero, the default, turns
// reloading off; so does anything under a second.
func Refresh(d time.Duration) Option {
	return optionFunc(func(o *options) { o.refresh = d.Truncate(time.Second) })
}

func tmpl(t templateIface) Option {
	return optionFunc(func(o *options) { o.tmpl = t })
}

func applyOptions(opts ...Option) options {
	o := options{tmpl: _defaultTmpl}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.refresh < 0 {
		o.refresh = 0
	}
	return o
}
