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

package clock

import (
	"runtime"
	"sync"
	"time"
)

// FakeClock only moves when told to. Tickers created from it fire as Add
// moves time past their deadlines.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a fake clock set to the Unix epoch.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Now returns the fake time.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// Add moves time forward by d, firing every ticker deadline crossed on the
// way in order.
func (fc *FakeClock) Add(d time.Duration) {
	fc.mu.Lock()
	end := fc.now.Add(d)
	for {
		t := fc.next(end)
		if t == nil {
			break
		}
		fc.now = t.next
		t.next = t.next.Add(t.period)
		fired := fc.now
		fc.mu.Unlock()
		t.fire(fired)
		fc.mu.Lock()
	}
	fc.now = end
	fc.mu.Unlock()
	runtime.Gosched()
}

// next returns the ticker with the earliest deadline not after end.
func (fc *FakeClock) next(end time.Time) *FakeTicker {
	var first *FakeTicker
	for _, t := range fc.tickers {
		if t.next.After(end) {
			continue
		}
		if first == nil || t.next.Before(first.next) {
			first = t
		}
	}
	return first
}

// NewTicker returns a ticker driven by Add.
func (fc *FakeClock) NewTicker(d time.Duration) Ticker {
	return fc.FakeTicker(d)
}

// FakeTicker is like NewTicker but exposes the concrete type.
func (fc *FakeClock) FakeTicker(d time.Duration) *FakeTicker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()

	t := &FakeTicker{
		c:      make(chan time.Time, 1),
		clock:  fc,
		period: d,
		next:   fc.now.Add(d),
	}
	fc.tickers = append(fc.tickers, t)
	return t
}

func (fc *FakeClock) remove(t *FakeTicker) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for i, other := range fc.tickers {
		if other == t {
			fc.tickers = append(fc.tickers[:i], fc.tickers[i+1:]...)
			return
		}
	}
}

// FakeTicker is a ticker on a FakeClock. Like time.Ticker it drops ticks
// for slow receivers.
type FakeTicker struct {
	c      chan time.Time
	clock  *FakeClock
	period time.Duration
	next   time.Time
}

// C returns the tick channel.
func (t *FakeTicker) C() <-chan time.Time { return t.c }

// Stop detaches the ticker from its clock.
func (t *FakeTicker) Stop() { t.clock.remove(t) }

func (t *FakeTicker) fire(now time.Time) {
	select {
	case t.c <- now:
	default:
	}
	runtime.Gosched()
}
