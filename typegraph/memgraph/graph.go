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

// Package memgraph is an in-memory type graph.
//
// Graphs are built with the builder methods of [Graph] and [UnitBuilder],
// from type expressions in a TypeScript-like syntax (see [UnitBuilder.Parse]),
// or from a YAML document (see [LoadYAML]).
package memgraph

import (
	"go/constant"
	"strings"

	"github.com/bufbuild/typeproto/typegraph"
)

// node is a type.
type node struct {
	flags typegraph.TypeFlags
	sym   *symbol

	props   []*symbol      // Object.
	members []*node        // Union.
	lit     constant.Value // Literal.
	sigs    []signature    // Function.
	args    []*node        // Generic instances.
	index   *node          // Array.

	// If set, this node is a named reference that has not been resolved
	// yet, scoped to the given namespace.
	ref    string
	scope  *symbol
	unit   *UnitBuilder
	target *node

	nonNull *node // Cached.
}

type signature struct {
	params []*symbol
	ret    *node
}

// symbol is a named declaration: a type, a property, a parameter or an enum
// member.
type symbol struct {
	name   string
	flags  typegraph.SymbolFlags
	parent *symbol

	typ      *node // The type of a value symbol.
	declared *node // The type a type symbol declares.

	loc    typegraph.Location
	hasLoc bool
	doc    string
	tags   []typegraph.DocTag

	// Nested type symbols, for namespaces.
	children map[string]*symbol
}

// Graph is an in-memory type graph. It implements [typegraph.Provider].
//
// Queries resolve named references and cache intermediate types, so a Graph
// is not safe for concurrent use.
type Graph struct {
	primitives map[typegraph.TypeFlags]*node
	shapes     map[string]*node
	shapeSyms  map[string]*symbol
	globals    map[string]*symbol
	units      []*UnitBuilder
}

var _ typegraph.Provider = (*Graph)(nil)

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		primitives: make(map[typegraph.TypeFlags]*node),
		shapes:     make(map[string]*node),
		shapeSyms:  make(map[string]*symbol),
		globals:    make(map[string]*symbol),
	}
}

func (g *Graph) node(t typegraph.Type) *node {
	n, _ := t.Ref().(*node)
	return g.resolve(n)
}

func (g *Graph) handle(n *node) typegraph.Type {
	n = g.resolve(n)
	if n == nil {
		return typegraph.Type{}
	}
	return typegraph.NewType(n)
}

func sym(s typegraph.Symbol) *symbol {
	v, _ := s.Ref().(*symbol)
	return v
}

func symHandle(s *symbol) typegraph.Symbol {
	if s == nil {
		return typegraph.Symbol{}
	}
	return typegraph.NewSymbol(s)
}

// Resolve resolves every named reference in the graph, returning the names
// that do not refer to any declaration. Queries resolve references on
// demand, so this is only needed to find dangling names.
func (g *Graph) Resolve() []string {
	var missing []string
	seen := make(map[*node]bool)
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if n.ref != "" {
			if g.resolve(n) == n {
				missing = append(missing, n.ref)
			}
			return
		}
		for _, p := range n.props {
			walk(p.typ)
		}
		for _, m := range n.members {
			walk(m)
		}
		for _, sig := range n.sigs {
			for _, p := range sig.params {
				walk(p.typ)
			}
			walk(sig.ret)
		}
		for _, a := range n.args {
			walk(a)
		}
		walk(n.index)
	}
	for _, u := range g.units {
		for _, d := range u.decls {
			walk(d.sym.declared)
		}
	}
	return missing
}

// resolve follows a named reference to the node it names. References that
// name no declaration resolve to themselves, except for qualified names,
// which become references to protobuf types by full name.
func (g *Graph) resolve(n *node) *node {
	for n != nil && n.ref != "" {
		if n.target == nil {
			// Failed lookups are not remembered, since the name may be
			// declared later.
			n.target = g.lookup(n)
			if n.target == nil && strings.Contains(n.ref, ".") {
				n.target = rawNode(g.Link(n.ref))
			}
			if n.target == nil {
				return n
			}
		}
		n = n.target
	}
	return n
}

func (g *Graph) lookup(n *node) *node {
	parts := strings.Split(n.ref, ".")
	// Search the enclosing namespaces outwards, then the globals.
	for scope := n.scope; scope != nil; scope = scope.parent {
		if s := lookupIn(scope.children, parts); s != nil {
			return s.declared
		}
	}
	if n.unit != nil {
		if s := lookupIn(n.unit.scope, parts); s != nil {
			return s.declared
		}
	}
	if s := lookupIn(g.globals, parts); s != nil {
		return s.declared
	}
	if len(parts) == 1 {
		return g.shapeNode(parts[0])
	}
	return nil
}

func lookupIn(scope map[string]*symbol, parts []string) *symbol {
	s := scope[parts[0]]
	for _, part := range parts[1:] {
		if s == nil {
			return nil
		}
		s = s.children[part]
	}
	if s == nil || s.declared == nil {
		return nil
	}
	return s
}

// TypeFlags implements [typegraph.Provider].
func (g *Graph) TypeFlags(t typegraph.Type) typegraph.TypeFlags {
	if n := g.node(t); n != nil {
		return n.flags
	}
	return 0
}

// Symbol implements [typegraph.Provider].
func (g *Graph) Symbol(t typegraph.Type) typegraph.Symbol {
	if n := g.node(t); n != nil {
		return symHandle(n.sym)
	}
	return typegraph.Symbol{}
}

// Properties implements [typegraph.Provider].
func (g *Graph) Properties(t typegraph.Type) []typegraph.Symbol {
	n := g.node(t)
	if n == nil {
		return nil
	}
	props := make([]typegraph.Symbol, len(n.props))
	for i, p := range n.props {
		props[i] = symHandle(p)
	}
	return props
}

// Property implements [typegraph.Provider].
func (g *Graph) Property(t typegraph.Type, name string) typegraph.Symbol {
	n := g.node(t)
	if n == nil {
		return typegraph.Symbol{}
	}
	for _, p := range n.props {
		if p.name == name {
			return symHandle(p)
		}
	}
	return typegraph.Symbol{}
}

// CallSignatures implements [typegraph.Provider].
func (g *Graph) CallSignatures(t typegraph.Type) []typegraph.Signature {
	n := g.node(t)
	if n == nil {
		return nil
	}
	sigs := make([]typegraph.Signature, len(n.sigs))
	for i, sig := range n.sigs {
		params := make([]typegraph.Symbol, len(sig.params))
		for j, p := range sig.params {
			params[j] = symHandle(p)
		}
		sigs[i] = typegraph.Signature{Params: params, Return: g.handle(sig.ret)}
	}
	return sigs
}

// TypeArguments implements [typegraph.Provider].
func (g *Graph) TypeArguments(t typegraph.Type, arity int) []typegraph.Type {
	n := g.node(t)
	if n == nil || len(n.args) < arity {
		return nil
	}
	args := make([]typegraph.Type, arity)
	for i := range args {
		args[i] = g.handle(n.args[i])
	}
	return args
}

// NumberIndexType implements [typegraph.Provider].
func (g *Graph) NumberIndexType(t typegraph.Type) typegraph.Type {
	if n := g.node(t); n != nil {
		return g.handle(n.index)
	}
	return typegraph.Type{}
}

// NonNullable implements [typegraph.Provider].
func (g *Graph) NonNullable(t typegraph.Type) typegraph.Type {
	n := g.node(t)
	if n == nil {
		return typegraph.Type{}
	}
	if n.flags.Has(typegraph.Nullish) {
		return typegraph.Type{}
	}
	if !n.flags.Has(typegraph.Union) {
		return t
	}
	if n.nonNull != nil {
		return g.handle(n.nonNull)
	}

	var members []*node
	for _, m := range n.members {
		if m := g.resolve(m); m != nil && !m.flags.Has(typegraph.Nullish) {
			members = append(members, m)
		}
	}
	switch {
	case len(members) == 0:
		// Every member is null or undefined.
		return typegraph.Type{}
	case len(members) == len(n.members):
		n.nonNull = n
	case len(members) == 1:
		n.nonNull = members[0]
	default:
		n.nonNull = &node{flags: typegraph.Union, members: members}
	}
	return g.handle(n.nonNull)
}

// UnionMembers implements [typegraph.Provider].
func (g *Graph) UnionMembers(t typegraph.Type) []typegraph.Type {
	n := g.node(t)
	if n == nil || !n.flags.Has(typegraph.Union) {
		return nil
	}
	members := make([]typegraph.Type, len(n.members))
	for i, m := range n.members {
		members[i] = g.handle(m)
	}
	return members
}

// Literal implements [typegraph.Provider].
func (g *Graph) Literal(t typegraph.Type) constant.Value {
	if n := g.node(t); n != nil {
		return n.lit
	}
	return nil
}

// TypeString implements [typegraph.Provider].
func (g *Graph) TypeString(t typegraph.Type) string {
	var buf strings.Builder
	g.format(&buf, g.node(t), true)
	return buf.String()
}

// TypeOf implements [typegraph.Provider].
func (g *Graph) TypeOf(s typegraph.Symbol) typegraph.Type {
	if v := sym(s); v != nil {
		return g.handle(v.typ)
	}
	return typegraph.Type{}
}

// DeclaredType implements [typegraph.Provider].
func (g *Graph) DeclaredType(s typegraph.Symbol) typegraph.Type {
	if v := sym(s); v != nil {
		return g.handle(v.declared)
	}
	return typegraph.Type{}
}

// Name implements [typegraph.Provider].
func (g *Graph) Name(s typegraph.Symbol) string {
	if v := sym(s); v != nil {
		return v.name
	}
	return ""
}

// SymbolFlags implements [typegraph.Provider].
func (g *Graph) SymbolFlags(s typegraph.Symbol) typegraph.SymbolFlags {
	if v := sym(s); v != nil {
		return v.flags
	}
	return 0
}

// Parent implements [typegraph.Provider].
func (g *Graph) Parent(s typegraph.Symbol) typegraph.Symbol {
	if v := sym(s); v != nil {
		return symHandle(v.parent)
	}
	return typegraph.Symbol{}
}

// Declaration implements [typegraph.Provider].
func (g *Graph) Declaration(s typegraph.Symbol) (typegraph.Location, bool) {
	if v := sym(s); v != nil {
		return v.loc, v.hasLoc
	}
	return typegraph.Location{}, false
}

// DocTags implements [typegraph.Provider].
func (g *Graph) DocTags(s typegraph.Symbol) []typegraph.DocTag {
	if v := sym(s); v != nil {
		return v.tags
	}
	return nil
}

// DocComment implements [typegraph.Provider].
func (g *Graph) DocComment(s typegraph.Symbol) string {
	if v := sym(s); v != nil {
		return v.doc
	}
	return ""
}
