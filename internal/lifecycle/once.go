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

// Package lifecycle runs start and stop functions at most once and tracks
// the resulting state.
package lifecycle

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// State is a point in the life of an object. States only move forward.
type State int32

const (
	// Idle objects have not been started.
	Idle State = iota
	// Starting objects are running their start function.
	Starting
	// Running objects started successfully.
	Running
	// Stopping objects are running their stop function.
	Stopping
	// Stopped objects have stopped, or were stopped before starting.
	Stopped
	// Errored objects failed to start or stop.
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Once guards the start and stop of an object.
//
// Start blocks until the state is at least Running, Stop blocks until it is
// at least Stopped, and Stop before Start skips starting entirely.
type Once struct {
	state atomic.Int32

	started  chan struct{}
	stopping chan struct{}
	stopped  chan struct{}

	errMu sync.Mutex
	err   error
}

// NewOnce returns an Idle Once.
func NewOnce() *Once {
	return &Once{
		started:  make(chan struct{}),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs f if this is the first call to Start and Stop has not been
// called. Every call returns the error of that first run.
func (o *Once) Start(f func() error) error {
	if !o.state.CAS(int32(Idle), int32(Starting)) {
		<-o.started
		return o.loadErr()
	}

	err := call(f)
	if err != nil {
		o.storeErr(err)
		o.state.Store(int32(Errored))
		close(o.stopping)
		close(o.stopped)
	} else {
		o.state.Store(int32(Running))
	}
	close(o.started)
	return err
}

// Stop runs f once if the object is running. Every call returns the error
// of that run.
func (o *Once) Stop(f func() error) error {
	if o.state.CAS(int32(Idle), int32(Stopped)) {
		close(o.started)
		close(o.stopping)
		close(o.stopped)
		return nil
	}

	<-o.started
	if !o.state.CAS(int32(Running), int32(Stopping)) {
		<-o.stopped
		return o.loadErr()
	}

	close(o.stopping)
	err := call(f)
	if err != nil {
		o.storeErr(err)
		o.state.Store(int32(Errored))
	} else {
		o.state.Store(int32(Stopped))
	}
	close(o.stopped)
	return err
}

// Started closes once Start finished or Stop preempted it.
func (o *Once) Started() <-chan struct{} { return o.started }

// Stopping closes when stopping begins.
func (o *Once) Stopping() <-chan struct{} { return o.stopping }

// Stopped closes when the object is stopped or errored.
func (o *Once) Stopped() <-chan struct{} { return o.stopped }

// State returns a state the object has at least reached.
func (o *Once) State() State {
	return State(o.state.Load())
}

// IsRunning reports whether the object is running.
func (o *Once) IsRunning() bool {
	return o.State() == Running
}

func call(f func() error) error {
	if f == nil {
		return nil
	}
	return f()
}

func (o *Once) storeErr(err error) {
	o.errMu.Lock()
	o.err = err
	o.errMu.Unlock()
}

func (o *Once) loadErr() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.err
}
