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

// Package priority defines the numeric priority space shared by the
// scheduler and its callers.
//
// Priorities run from Min to Max and are inverted: a numerically smaller
// priority is more urgent. The space is split into bands, from most to least
// urgent: interrupt threads, kernel, realtime, timeshare and idle.
package priority

import "fmt"

// Priority is a thread priority. Smaller values are scheduled first.
type Priority uint8

// Bounds of the priority bands.
const (
	Min Priority = 0
	Max Priority = 255

	MinIthd Priority = Min
	MaxIthd Priority = MinKern - 1

	MinKern Priority = 64
	MaxKern Priority = MinRealtime - 1

	MinRealtime Priority = 128
	MaxRealtime Priority = MinTimeshare - 1

	MinTimeshare Priority = 160
	MaxTimeshare Priority = MinIdle - 1

	MinIdle Priority = 224
	MaxIdle Priority = Max
)

// Kernel sleep priorities. These are handed to Sleep as hints.
const (
	PSWP    = MinKern + 0
	PVM     = MinKern + 4
	PINOD   = MinKern + 8
	PRIBIO  = MinKern + 12
	PVFS    = MinKern + 16
	PZERO   = MinKern + 20
	PSOCK   = MinKern + 24
	PWAIT   = MinKern + 28
	PCONFIG = MinKern + 32
	PLOCK   = MinKern + 36
	PPAUSE  = MinKern + 40
	PUSER   = MinTimeshare
)

// Nice bounds.
const (
	MinNice = -20
	MaxNice = 20
)

// Class is the scheduling class of a thread.
type Class int

// Scheduling classes.
const (
	ClassIthd      Class = 1
	ClassRealtime  Class = 2
	ClassTimeshare Class = 3
	ClassIdle      Class = 4

	// FIFOBit marks a realtime class that is not subject to slices.
	FIFOBit   Class = 8
	ClassFIFO       = FIFOBit | ClassRealtime
)

// Base strips the FIFO bit.
func (c Class) Base() Class {
	return c &^ FIFOBit
}

// IsFIFO reports whether the class runs without a time slice.
func (c Class) IsFIFO() bool {
	return c&FIFOBit != 0
}

func (c Class) String() string {
	switch c {
	case ClassIthd:
		return "ithd"
	case ClassRealtime:
		return "realtime"
	case ClassTimeshare:
		return "timeshare"
	case ClassIdle:
		return "idle"
	case ClassFIFO:
		return "fifo"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Band identifies which of the three per-CPU run queues a priority is
// placed on.
type Band int

// Run queue bands in the order they are served.
const (
	BandRealtime Band = iota
	BandTimeshare
	BandIdle
)

func (b Band) String() string {
	switch b {
	case BandRealtime:
		return "realtime"
	case BandTimeshare:
		return "timeshare"
	case BandIdle:
		return "idle"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// BandOf classifies a priority. Interrupt, kernel and realtime priorities
// all share the realtime band.
func BandOf(p Priority) Band {
	switch {
	case p <= MaxRealtime:
		return BandRealtime
	case p <= MaxTimeshare:
		return BandTimeshare
	default:
		return BandIdle
	}
}

// IsIdle reports whether p is in the idle band.
func IsIdle(p Priority) bool {
	return p >= MinIdle
}
