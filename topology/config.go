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

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// GroupConfig describes a group and its children:
//
//  topology:
//    level: 3
//    cpus: [0, 1, 2, 3]
//    children:
//      - level: 1
//        cpus: [0, 1]
//        flags: [smt]
//      - level: 1
//        cpus: [2, 3]
//        flags: [smt]
type GroupConfig struct {
	Level    int           `config:"level"`
	CPUs     []int         `config:"cpus"`
	Flags    []string      `config:"flags"`
	Children []GroupConfig `config:"children"`
}

// FromConfig builds and validates a topology tree spanning ncpu CPUs. If
// cfg has no CPUs, a flat topology of ncpu CPUs is returned.
func FromConfig(cfg GroupConfig, ncpu int) (*Group, error) {
	if len(cfg.CPUs) == 0 && len(cfg.Children) == 0 {
		return None(ncpu), nil
	}
	root, err := cfg.build()
	if err != nil {
		return nil, err
	}
	if err := root.Validate(ncpu); err != nil {
		return nil, err
	}
	return root, nil
}

func (cfg GroupConfig) build() (*Group, error) {
	var err error
	g := &Group{Level: CacheLevel(cfg.Level), Mask: NewCPUSet(cfg.CPUs...)}
	if cfg.Level < int(ShareNone) || cfg.Level > int(ShareL3) {
		err = multierr.Append(err, fmt.Errorf("invalid cache level %d", cfg.Level))
	}
	for _, name := range cfg.Flags {
		switch strings.ToLower(name) {
		case "htt":
			g.Flags |= FlagHTT
		case "smt":
			g.Flags |= FlagSMT
		default:
			err = multierr.Append(err, fmt.Errorf("unknown group flag %q", name))
		}
	}
	for _, childCfg := range cfg.Children {
		child, childErr := childCfg.build()
		if childErr != nil {
			err = multierr.Append(err, childErr)
			continue
		}
		// A parent without explicit CPUs spans its children.
		if len(cfg.CPUs) == 0 {
			g.Mask = g.Mask.Union(child.Mask)
		}
		g.Add(child)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
