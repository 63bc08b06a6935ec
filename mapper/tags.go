// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/typegraph"
)

// splitIndex splits an explicit field number off a member name, as in
// "id$3". ok is false if the suffix is not a number.
func splitIndex(name string) (base string, number int32, ok bool) {
	base, suffix, found := strings.Cut(name, "$")
	if !found {
		return name, 0, true
	}
	n, err := strconv.ParseInt(suffix, 10, 32)
	if err != nil {
		return base, 0, false
	}
	return base, int32(n), true
}

// docOptions collects the options declared by "@option key=value" tags.
func (m *Mapper) docOptions(sym typegraph.Symbol) ir.Options {
	var opts ir.Options
	for _, tag := range m.prov.DocTags(sym) {
		if tag.Name != "option" {
			continue
		}
		key, value, ok := strings.Cut(tag.Text, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			m.warnf("malformed option tag %q", tag.Text)
			continue
		}
		opts.Set(key, ParseOptionValue(value))
	}
	return opts
}

// ParseOptionValue converts the text of an option tag into a literal. The
// text is tried as a bool, an integer, a float and a quoted string, in that
// order; anything else is a bare string, such as the name of an enum value.
func ParseOptionValue(text string) ir.Literal {
	switch text {
	case "true":
		return ir.MakeBool(true)
	case "false":
		return ir.MakeBool(false)
	}
	if n, err := strconv.ParseInt(text, 0, 64); err == nil {
		return ir.MakeInt(n)
	}
	if n, err := strconv.ParseUint(text, 0, 64); err == nil {
		return ir.MakeUint(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return ir.MakeFloat(f)
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		if s, err := strconv.Unquote(text); err == nil {
			return ir.MakeString(s)
		}
		return ir.MakeString(text[1 : len(text)-1])
	}
	return ir.MakeString(text)
}

// reserved builds a reserved statement from the type of a reserved-marker
// property: a literal or a union of literals. Numbers reserve themselves,
// strings of the form "lo-hi" reserve ranges, and other strings reserve
// names.
func (m *Mapper) reserved(t typegraph.Type) (*ir.Reserved, error) {
	p := m.prov
	members := p.UnionMembers(t)
	if members == nil {
		members = []typegraph.Type{t}
	}

	res := &ir.Reserved{Pos: m.at}
	for _, member := range members {
		lit, ok := ir.FromConstant(p.Literal(member))
		if !ok {
			return nil, fmt.Errorf("reserved entries must be literals, got %s", p.TypeString(member))
		}
		if n, ok := lit.AsInt(); ok {
			if n < 1 || n > ir.MaxFieldNumber {
				return nil, fmt.Errorf("cannot reserve %d", n)
			}
			res.Ranges = append(res.Ranges, ir.Range{Start: int32(n), End: int32(n)})
			continue
		}
		s, ok := lit.AsString()
		if !ok {
			return nil, fmt.Errorf("reserved entries must be numbers or strings, got %s", lit)
		}
		if r, ok := parseRange(s); ok {
			res.Ranges = append(res.Ranges, r)
			continue
		}
		res.Names = append(res.Names, s)
	}
	return res, nil
}

func parseRange(s string) (ir.Range, bool) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return ir.Range{}, false
	}
	start, err1 := strconv.ParseInt(strings.TrimSpace(lo), 10, 32)
	end, err2 := strconv.ParseInt(strings.TrimSpace(hi), 10, 32)
	if err1 != nil || err2 != nil {
		return ir.Range{}, false
	}
	return ir.Range{Start: int32(start), End: int32(end)}, true
}
