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

// Package config decodes loosely typed configuration, usually parsed from
// YAML, into structs annotated with `config` tags.
package config

import (
	"fmt"

	"github.com/uber-go/mapdecode"
	"gopkg.in/yaml.v2"
)

const _tagName = "config"

// DecodeInto decodes src into dst. Unknown keys are errors.
func DecodeInto(dst interface{}, src interface{}, opts ...mapdecode.Option) error {
	opts = append(opts, mapdecode.TagName(_tagName))
	return mapdecode.Decode(dst, src, opts...)
}

// DecodeYAML parses YAML and decodes it into dst. An empty document leaves
// dst untouched.
func DecodeYAML(dst interface{}, data []byte, opts ...mapdecode.Option) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}
	if raw == nil {
		return nil
	}
	return DecodeInto(dst, raw, opts...)
}
