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

package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandOf(t *testing.T) {
	tests := []struct {
		give Priority
		want Band
	}{
		{give: MinIthd, want: BandRealtime},
		{give: PSOCK, want: BandRealtime},
		{give: MinRealtime, want: BandRealtime},
		{give: MaxRealtime, want: BandRealtime},
		{give: MinTimeshare, want: BandTimeshare},
		{give: MaxTimeshare, want: BandTimeshare},
		{give: MinIdle, want: BandIdle},
		{give: MaxIdle, want: BandIdle},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, BandOf(tt.give), "priority %d", tt.give)
		})
	}
}

func TestClass(t *testing.T) {
	assert.Equal(t, ClassRealtime, ClassFIFO.Base())
	assert.True(t, ClassFIFO.IsFIFO())
	assert.False(t, ClassTimeshare.IsFIFO())
	assert.Equal(t, "fifo", ClassFIFO.String())
	assert.Equal(t, "Class(42)", Class(42).String())
}

func TestBandsAreContiguous(t *testing.T) {
	assert.Equal(t, MaxIthd+1, MinKern)
	assert.Equal(t, MaxKern+1, MinRealtime)
	assert.Equal(t, MaxRealtime+1, MinTimeshare)
	assert.Equal(t, MaxTimeshare+1, MinIdle)
	assert.True(t, IsIdle(MaxIdle))
	assert.False(t, IsIdle(MaxTimeshare))
}
