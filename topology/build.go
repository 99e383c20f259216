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

package topology

// None returns a single group spanning ncpu CPUs that share nothing.
func None(ncpu int) *Group {
	return &Group{Mask: Fill(ncpu), Level: ShareNone}
}

// OneLevel returns a root group of ncpu CPUs sharing the given cache level.
func OneLevel(ncpu int, share CacheLevel, flags Flags) *Group {
	return &Group{Mask: Fill(ncpu), Level: share, Flags: flags}
}

// TwoLevel returns a root that shares nothing with children of childCPUs
// CPUs each, which share the given cache level.
//
//  TwoLevel(8, 2, ShareL1, FlagHTT) // four hyper-threaded cores
func TwoLevel(ncpu, childCPUs int, share CacheLevel, flags Flags) *Group {
	root := &Group{Mask: Fill(ncpu), Level: ShareNone}
	if childCPUs <= 0 || childCPUs >= ncpu {
		root.Level, root.Flags = share, flags
		return root
	}
	for first := 0; first < ncpu; first += childCPUs {
		var mask CPUSet
		for cpu := first; cpu < first+childCPUs && cpu < ncpu; cpu++ {
			mask.Set(cpu)
		}
		root.Add(&Group{Mask: mask, Level: share, Flags: flags})
	}
	return root
}
