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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeNow(t *testing.T) {
	fc := NewFake()
	assert.Equal(t, time.Unix(0, 0), fc.Now())

	fc.Add(time.Second)
	assert.Equal(t, time.Unix(1, 0), fc.Now())
}

func TestFakeTicker(t *testing.T) {
	fc := NewFake()
	tk := fc.FakeTicker(10 * time.Millisecond)

	fc.Add(5 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	fc.Add(5 * time.Millisecond)
	select {
	case at := <-tk.C():
		assert.Equal(t, time.Unix(0, 0).Add(10*time.Millisecond), at)
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	fc.Add(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeTickerDropsForSlowReceivers(t *testing.T) {
	fc := NewFake()
	tk := fc.FakeTicker(time.Millisecond)

	fc.Add(5 * time.Millisecond)
	assert.Len(t, tk.C(), 1)
	assert.Equal(t, time.Unix(0, 0).Add(time.Millisecond), <-tk.C())
}

func TestFakeTickerRejectsZeroPeriod(t *testing.T) {
	assert.Panics(t, func() { NewFake().NewTicker(0) })
}

func TestReal(t *testing.T) {
	c := NewReal()
	start := c.Now()
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()

	<-tk.C()
	assert.True(t, c.Now().After(start))
}
