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

package memgraph

import (
	"go/constant"
	"strconv"
	"strings"

	"github.com/bufbuild/typeproto/typegraph"
)

var primitiveFlags = []struct {
	flag typegraph.TypeFlags
	name string
}{
	{typegraph.String, "string"},
	{typegraph.Number, "number"},
	{typegraph.Boolean, "boolean"},
	{typegraph.BigInt, "bigint"},
	{typegraph.Void, "void"},
	{typegraph.Undefined, "undefined"},
	{typegraph.Null, "null"},
	{typegraph.Any, "any"},
	{typegraph.Unknown, "unknown"},
}

// format writes n in the type expression syntax accepted by the parser.
// Named types are written by name. Anonymous types are written in full when
// top is set, and may be elided otherwise.
func (g *Graph) format(buf *strings.Builder, n *node, top bool) {
	n = g.resolve(n)
	switch {
	case n == nil:
		buf.WriteString("never")
		return
	case n.ref != "":
		buf.WriteString(n.ref)
		return
	}

	for _, p := range primitiveFlags {
		if n.flags == p.flag {
			buf.WriteString(p.name)
			return
		}
	}

	switch {
	case n.flags.Has(typegraph.EnumLiteral) && !n.flags.Has(typegraph.Union):
		if n.sym != nil && n.sym.parent != nil {
			buf.WriteString(n.sym.parent.name)
			buf.WriteByte('.')
			buf.WriteString(n.sym.name)
			return
		}
		formatLiteral(buf, n)
	case n.flags.Has(typegraph.Literal):
		formatLiteral(buf, n)
	case n.sym != nil && len(n.sigs) == 0:
		buf.WriteString(n.sym.name)
		if len(n.args) > 0 {
			buf.WriteByte('<')
			for i, a := range n.args {
				if i > 0 {
					buf.WriteString(", ")
				}
				g.format(buf, a, false)
			}
			buf.WriteByte('>')
		}
	case n.flags.Has(typegraph.Union):
		for i, m := range n.members {
			if i > 0 {
				buf.WriteString(" | ")
			}
			g.format(buf, m, false)
		}
	case len(n.sigs) > 0:
		sig := n.sigs[0]
		buf.WriteByte('(')
		for i, p := range sig.params {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(p.name)
			buf.WriteString(": ")
			g.format(buf, p.typ, false)
		}
		buf.WriteString(") => ")
		g.format(buf, sig.ret, false)
	default:
		if !top && len(n.props) > 4 {
			buf.WriteString("{ ... }")
			return
		}
		buf.WriteByte('{')
		for i, p := range n.props {
			if i > 0 {
				buf.WriteByte(';')
			}
			buf.WriteByte(' ')
			buf.WriteString(p.name)
			buf.WriteString(": ")
			g.format(buf, p.typ, false)
		}
		buf.WriteString(" }")
	}
}

func formatLiteral(buf *strings.Builder, n *node) {
	switch {
	case n.lit == nil:
		buf.WriteString("never")
	case n.lit.Kind() == constant.String:
		buf.WriteString(strconv.Quote(constant.StringVal(n.lit)))
	case n.flags.Has(typegraph.BigIntLiteral):
		buf.WriteString(n.lit.ExactString())
		buf.WriteByte('n')
	case n.lit.Kind() == constant.Float:
		buf.WriteString(n.lit.String())
	default:
		buf.WriteString(n.lit.ExactString())
	}
}
