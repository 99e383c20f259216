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

package lifecycle

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestStartStop(t *testing.T) {
	o := NewOnce()
	assert.Equal(t, Idle, o.State())

	var starts, stops atomic.Int32
	require.NoError(t, o.Start(func() error { starts.Inc(); return nil }))
	require.NoError(t, o.Start(func() error { starts.Inc(); return nil }))
	assert.True(t, o.IsRunning())
	assert.Equal(t, int32(1), starts.Load())

	require.NoError(t, o.Stop(func() error { stops.Inc(); return nil }))
	require.NoError(t, o.Stop(func() error { stops.Inc(); return nil }))
	assert.Equal(t, Stopped, o.State())
	assert.Equal(t, int32(1), stops.Load())

	for _, ch := range []<-chan struct{}{o.Started(), o.Stopping(), o.Stopped()} {
		select {
		case <-ch:
		default:
			t.Fatal("lifecycle channel not closed")
		}
	}
}

func TestStopBeforeStart(t *testing.T) {
	o := NewOnce()
	require.NoError(t, o.Stop(nil))

	called := false
	require.NoError(t, o.Start(func() error { called = true; return nil }))
	assert.False(t, called)
	assert.Equal(t, Stopped, o.State())
}

func TestStartError(t *testing.T) {
	o := NewOnce()
	want := errors.New("great sadness")

	assert.Equal(t, want, o.Start(func() error { return want }))
	assert.Equal(t, want, o.Start(nil), "later calls see the first error")
	assert.Equal(t, Errored, o.State())
	assert.Equal(t, want, o.Stop(nil))
}

func TestStopError(t *testing.T) {
	o := NewOnce()
	require.NoError(t, o.Start(nil))

	want := errors.New("stop failed")
	assert.Equal(t, want, o.Stop(func() error { return want }))
	assert.Equal(t, Errored, o.State())
}

func TestConcurrentStart(t *testing.T) {
	o := NewOnce()
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.Start(func() error { calls.Inc(); return nil }))
			assert.True(t, o.IsRunning())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "State(42)", State(42).String())
}
