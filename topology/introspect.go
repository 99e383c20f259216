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
)

// GroupStatus is a nested report of a topology tree.
type GroupStatus struct {
	Depth    int           `json:"depth"`
	Level    int           `json:"cacheLevel"`
	Count    int           `json:"count"`
	Mask     string        `json:"mask"`
	CPUs     []int         `json:"cpus"`
	Flags    []string      `json:"flags"`
	Children []GroupStatus `json:"children,omitempty"`
}

// Introspect reports g and its descendants.
func (g *Group) Introspect() GroupStatus {
	s := GroupStatus{
		Depth: g.Depth(),
		Level: int(g.Level),
		Count: g.Count(),
		Mask:  g.Mask.Hex(),
		CPUs:  g.Mask.CPUs(),
		Flags: g.flagNames(),
	}
	for _, child := range g.Children {
		s.Children = append(s.Children, child.Introspect())
	}
	return s
}

func (g *Group) flagNames() []string {
	var names []string
	if g.Flags&FlagHTT != 0 {
		names = append(names, "HTT")
	}
	if g.Flags&FlagSMT != 0 {
		names = append(names, "THREAD")
	}
	return names
}

// XML renders the tree as nested <group> elements:
//
//  <groups>
//   <group level="1" cache-level="0">
//    <cpu count="2" mask="0x3">0, 1</cpu>
//    <flags></flags>
//   </group>
//  </groups>
func XML(top *Group) string {
	var b strings.Builder
	b.WriteString("<groups>\n")
	writeXML(&b, top, 1)
	b.WriteString("</groups>\n")
	return b.String()
}

func writeXML(b *strings.Builder, g *Group, indent int) {
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(b, "%s<group level=\"%d\" cache-level=\"%d\">\n", pad, indent, g.Level)
	fmt.Fprintf(b, "%s <cpu count=\"%d\" mask=\"%s\">%s</cpu>\n", pad, g.Count(), g.Mask.Hex(), g.Mask)

	fmt.Fprintf(b, "%s <flags>", pad)
	if g.Flags&FlagHTT != 0 {
		b.WriteString(`<flag name="HTT">HTT group</flag>`)
	}
	if g.Flags&FlagSMT != 0 {
		b.WriteString(`<flag name="THREAD">SMT group</flag>`)
	}
	b.WriteString("</flags>\n")

	if len(g.Children) > 0 {
		fmt.Fprintf(b, "%s <children>\n", pad)
		for _, child := range g.Children {
			writeXML(b, child, indent+2)
		}
		fmt.Fprintf(b, "%s </children>\n", pad)
	}
	fmt.Fprintf(b, "%s</group>\n", pad)
}
