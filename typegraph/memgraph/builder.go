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
	"slices"

	"github.com/bufbuild/typeproto/typegraph"
)

// Prop is a property of an object type.
type Prop struct {
	Name string
	Type typegraph.Type
	// If set, the property's type is widened with undefined.
	Optional bool
	// If set, this is a method rather than a property of function type.
	Method bool

	Doc  string
	Tags []typegraph.DocTag
	Line int
}

// Param is a parameter of a function type.
type Param struct {
	Name string
	Type typegraph.Type
}

// Member is a member of an enum. Value is usually an integer, but string
// values are accepted, since some type systems allow them.
type Member struct {
	Name  string
	Value constant.Value
	Doc   string
}

var primitiveNames = map[string]typegraph.TypeFlags{
	"string":    typegraph.String,
	"number":    typegraph.Number,
	"boolean":   typegraph.Boolean,
	"bigint":    typegraph.BigInt,
	"void":      typegraph.Void,
	"undefined": typegraph.Undefined,
	"null":      typegraph.Null,
	"any":       typegraph.Any,
	"unknown":   typegraph.Unknown,
}

// Names of the predeclared object shapes, which resolve when no declaration
// shadows them.
var shapeNames = []string{
	"Date", "ArrayBuffer", "Number", "String", "Boolean", "BigInt",
	"Uint8Array", "Int8Array", "Uint8ClampedArray",
	"Uint16Array", "Uint32Array", "Int16Array", "Int32Array",
	"BigUint64Array", "Uint64Array", "BigInt64Array", "Int64Array",
	"Float32Array", "Float64Array",
}

// Scalar type names that become links to protobuf scalars.
var scalarAliases = []string{
	"double", "float", "int32", "int64", "uint32", "uint64",
	"sint32", "sint64", "fixed32", "fixed64", "sfixed32", "sfixed64",
}

// Primitive returns the primitive type with the given flag, such as
// [typegraph.String].
func (g *Graph) Primitive(flag typegraph.TypeFlags) typegraph.Type {
	n, ok := g.primitives[flag]
	if !ok {
		n = &node{flags: flag}
		g.primitives[flag] = n
	}
	return g.handle(n)
}

// Keyword returns the primitive type named by a keyword such as "string".
func (g *Graph) Keyword(name string) (typegraph.Type, bool) {
	flag, ok := primitiveNames[name]
	if !ok {
		return typegraph.Type{}, false
	}
	return g.Primitive(flag), true
}

// LiteralType returns a literal type. Strings, booleans and numbers are
// supported.
func (g *Graph) LiteralType(v constant.Value) typegraph.Type {
	n := &node{lit: v}
	switch v.Kind() {
	case constant.String:
		n.flags = typegraph.StringLiteral
	case constant.Bool:
		n.flags = typegraph.BooleanLiteral
	default:
		n.flags = typegraph.NumberLiteral
	}
	return g.handle(n)
}

// BigIntLiteral returns a bigint literal type.
func (g *Graph) BigIntLiteral(v constant.Value) typegraph.Type {
	return g.handle(&node{flags: typegraph.BigIntLiteral, lit: v})
}

// Union returns the union of the given types. Nested unions are flattened,
// duplicates are removed, and a union of one type is that type.
func (g *Graph) Union(types ...typegraph.Type) typegraph.Type {
	var members []*node
	var add func(n *node)
	add = func(n *node) {
		if n == nil {
			return
		}
		if n.ref == "" && n.flags.Has(typegraph.Union) && n.sym == nil {
			for _, m := range n.members {
				add(m)
			}
			return
		}
		if !slices.Contains(members, n) {
			members = append(members, n)
		}
	}
	for _, t := range types {
		add(rawNode(t))
	}
	if len(members) == 1 {
		return typegraph.NewType(members[0])
	}
	return typegraph.NewType(&node{flags: typegraph.Union, members: members})
}

// Object returns an anonymous object type.
func (g *Graph) Object(props ...Prop) typegraph.Type {
	n := &node{flags: typegraph.Object}
	n.props = g.props(nil, typegraph.Location{}, props)
	return g.handle(n)
}

// Func returns an anonymous function type.
func (g *Graph) Func(ret typegraph.Type, params ...Param) typegraph.Type {
	sig := signature{ret: rawNode(ret)}
	if sig.ret == nil {
		sig.ret = g.node(g.Primitive(typegraph.Void))
	}
	for _, p := range params {
		sig.params = append(sig.params, &symbol{name: p.Name, typ: rawNode(p.Type)})
	}
	return g.handle(&node{flags: typegraph.Object, sigs: []signature{sig}})
}

// Generic returns an instance of a predeclared generic shape, such as Map
// or Set. Instances of Array and ReadonlyArray are indexable by their first
// argument.
func (g *Graph) Generic(name string, args ...typegraph.Type) typegraph.Type {
	n := &node{flags: typegraph.Object, sym: g.shapeSymbol(name)}
	for _, a := range args {
		n.args = append(n.args, rawNode(a))
	}
	if (name == "Array" || name == "ReadonlyArray") && len(n.args) > 0 {
		n.index = n.args[0]
	}
	return g.handle(n)
}

// Array returns an array of elem.
func (g *Graph) Array(elem typegraph.Type) typegraph.Type {
	return g.Generic("Array", elem)
}

// Shape returns a predeclared object shape that takes no type arguments,
// such as Date or Uint8Array.
func (g *Graph) Shape(name string) typegraph.Type {
	return g.handle(g.shapeNode(name))
}

func (g *Graph) shapeNode(name string) *node {
	if !slices.Contains(shapeNames, name) {
		return nil
	}
	n, ok := g.shapes[name]
	if !ok {
		n = &node{flags: typegraph.Object, sym: g.shapeSymbol(name)}
		g.shapes[name] = n
	}
	return n
}

func (g *Graph) shapeSymbol(name string) *symbol {
	s, ok := g.shapeSyms[name]
	if !ok {
		s = &symbol{name: name, flags: typegraph.InterfaceSymbol}
		g.shapeSyms[name] = s
	}
	return s
}

func (g *Graph) marker(props ...Prop) typegraph.Type {
	return g.Object(props...)
}

// Rep returns a marker for a repeated field of elem.
func (g *Graph) Rep(elem typegraph.Type) typegraph.Type {
	return g.marker(Prop{Name: "__protobuf_rep", Type: elem})
}

// Opt returns a marker for an explicitly optional field of elem.
func (g *Graph) Opt(elem typegraph.Type) typegraph.Type {
	return g.marker(Prop{Name: "__protobuf_opt", Type: elem})
}

// Stream returns a marker for a stream of elem.
func (g *Graph) Stream(elem typegraph.Type) typegraph.Type {
	return g.marker(Prop{Name: "__protobuf_stream", Type: elem})
}

// Link returns a marker that refers to a protobuf type by name: either a
// scalar such as "int32", or the full name of a message or enum.
func (g *Graph) Link(name string) typegraph.Type {
	return g.marker(Prop{Name: "__protobuf_link", Type: g.LiteralType(constant.MakeString(name))})
}

// Ext returns a marker that attaches the literal properties of ext to base
// as options.
func (g *Graph) Ext(base, ext typegraph.Type) typegraph.Type {
	return g.marker(
		Prop{Name: "__protobuf_base", Type: base},
		Prop{Name: "__protobuf_ext", Type: ext},
	)
}

// ProtoMap returns a marker for a protobuf map.
func (g *Graph) ProtoMap(key, value typegraph.Type) typegraph.Type {
	return g.marker(
		Prop{Name: "__protobuf_map_key", Type: key},
		Prop{Name: "__protobuf_map_value", Type: value},
	)
}

// rawNode returns the node behind a handle without resolving it, so that
// forward references stay lazy.
func rawNode(t typegraph.Type) *node {
	n, _ := t.Ref().(*node)
	return n
}

func (g *Graph) props(owner *symbol, loc typegraph.Location, props []Prop) []*symbol {
	syms := make([]*symbol, 0, len(props))
	for _, p := range props {
		s := &symbol{
			name:   p.Name,
			flags:  typegraph.PropertySymbol,
			parent: owner,
			doc:    p.Doc,
			tags:   p.Tags,
		}
		if loc.Unit != "" {
			s.loc, s.hasLoc = typegraph.Location{Unit: loc.Unit, Line: p.Line}, true
		}
		if p.Method {
			s.flags = typegraph.MethodSymbol
		}

		typ := rawNode(p.Type)
		if typ != nil && typ.ref == "" && len(typ.sigs) > 0 && typ.sym == nil {
			// Function types take the name of the member they are declared
			// by.
			named := *typ
			named.sym = s
			typ = &named
		}
		if p.Optional {
			typ = rawNode(g.Union(typegraph.NewType(typ), g.Primitive(typegraph.Undefined)))
		}
		s.typ = typ
		syms = append(syms, s)
	}
	return syms
}

// UnitBuilder declares the contents of one compilation unit, or of a
// namespace within one.
type UnitBuilder struct {
	g    *Graph
	root *UnitBuilder
	ns   *symbol

	path    string
	pkg     string
	imports []typegraph.Import
	options []typegraph.UnitOption
	decls   []*Decl

	scope map[string]*symbol // Top-level names; root only.
}

// Unit starts a new compilation unit with the given source path.
func (g *Graph) Unit(path string) *UnitBuilder {
	u := &UnitBuilder{g: g, path: path, scope: make(map[string]*symbol)}
	u.root = u
	g.units = append(g.units, u)
	return u
}

// Package sets the protobuf package of the unit.
func (u *UnitBuilder) Package(pkg string) *UnitBuilder {
	u.root.pkg = pkg
	return u
}

// Import adds an import edge to the unit. A leading "?" marks a weak import.
func (u *UnitBuilder) Import(path string) *UnitBuilder {
	imp := typegraph.Import{Path: path}
	if len(path) > 1 && path[0] == '?' {
		imp.Path, imp.Weak = path[1:], true
	}
	u.root.imports = append(u.root.imports, imp)
	return u
}

// Option adds a file option to the unit.
func (u *UnitBuilder) Option(name string, value constant.Value) *UnitBuilder {
	u.root.options = append(u.root.options, typegraph.UnitOption{Name: name, Value: value})
	return u
}

// Ref returns a reference to a type by name, which is resolved when it is
// first queried. Names are resolved in the enclosing namespaces, then in
// the unit, then in every unit of the graph, and finally among the
// predeclared shapes. Qualified names that resolve to nothing refer to
// protobuf types by full name, as if by [Graph.Link].
func (u *UnitBuilder) Ref(name string) typegraph.Type {
	return typegraph.NewType(&node{ref: name, scope: u.ns, unit: u.root})
}

func (u *UnitBuilder) loc() typegraph.Location {
	return typegraph.Location{Unit: u.root.path}
}

func (u *UnitBuilder) declare(name string, flags typegraph.SymbolFlags) *Decl {
	scope := u.root.scope
	if u.ns != nil {
		if u.ns.children == nil {
			u.ns.children = make(map[string]*symbol)
		}
		scope = u.ns.children
	}

	s := &symbol{name: name, flags: flags, parent: u.ns}
	s.loc, s.hasLoc = u.loc(), true
	if existing := scope[name]; existing != nil && existing.flags.Has(typegraph.NamespaceSymbol) && existing.declared == nil {
		// A namespace declared ahead of the type it merges with.
		existing.flags |= flags
		s = existing
	} else {
		scope[name] = s
	}
	if u.ns == nil {
		if _, ok := u.g.globals[name]; !ok {
			u.g.globals[name] = s
		}
	}

	d := &Decl{u: u, sym: s, exported: true}
	u.root.decls = append(u.root.decls, d)
	return d
}

// Interface declares an interface.
func (u *UnitBuilder) Interface(name string, props ...Prop) *Decl {
	return u.object(name, typegraph.InterfaceSymbol, props)
}

// Class declares a class.
func (u *UnitBuilder) Class(name string, props ...Prop) *Decl {
	return u.object(name, typegraph.ClassSymbol, props)
}

func (u *UnitBuilder) object(name string, flags typegraph.SymbolFlags, props []Prop) *Decl {
	d := u.declare(name, flags)
	n := &node{flags: typegraph.Object | typegraph.ClassOrInterface, sym: d.sym}
	n.props = u.g.props(d.sym, u.loc(), props)
	d.sym.declared = n
	return d
}

// Extend appends the properties of the given declarations to an interface or
// class, ahead of its own.
func (d *Decl) Extend(bases ...typegraph.Type) *Decl {
	n := d.sym.declared
	var inherited []*symbol
	for _, b := range bases {
		if base := d.u.g.node(b); base != nil {
			inherited = append(inherited, base.props...)
		}
	}
	n.props = append(inherited, n.props...)
	return d
}

// Enum declares an enum.
func (u *UnitBuilder) Enum(name string, members ...Member) *Decl {
	d := u.declare(name, typegraph.EnumSymbol)
	n := &node{flags: typegraph.Union | typegraph.EnumLiteral, sym: d.sym}
	for _, m := range members {
		ms := &symbol{
			name:   m.Name,
			flags:  typegraph.EnumMemberSymbol,
			parent: d.sym,
			doc:    m.Doc,
		}
		ms.loc, ms.hasLoc = u.loc(), true
		mn := &node{flags: typegraph.EnumLiteral | typegraph.NumberLiteral, sym: ms, lit: m.Value}
		if m.Value != nil && m.Value.Kind() == constant.String {
			mn.flags = typegraph.EnumLiteral | typegraph.StringLiteral
		}
		ms.typ, ms.declared = mn, mn
		n.members = append(n.members, mn)
	}
	d.sym.declared = n
	return d
}

// Alias declares a type alias. An anonymous object or function type takes
// the alias's name.
func (u *UnitBuilder) Alias(name string, t typegraph.Type) *Decl {
	d := u.declare(name, typegraph.TypeAliasSymbol)
	n := rawNode(t)
	if n != nil && n.ref == "" && n.sym == nil && n.flags.Has(typegraph.Object) {
		named := *n
		named.sym = d.sym
		n = &named
	}
	d.sym.declared = n
	return d
}

// Namespace returns a builder for declarations nested in the namespace name.
// A namespace merges with a type of the same name.
func (u *UnitBuilder) Namespace(name string) *UnitBuilder {
	scope := u.root.scope
	if u.ns != nil {
		scope = u.ns.children
	}
	s := scope[name]
	if s == nil {
		s = &symbol{name: name, parent: u.ns}
		s.loc, s.hasLoc = u.loc(), true
		if scope == nil {
			u.ns.children = make(map[string]*symbol)
			scope = u.ns.children
		}
		scope[name] = s
	}
	s.flags |= typegraph.NamespaceSymbol
	if s.children == nil {
		s.children = make(map[string]*symbol)
	}
	return &UnitBuilder{g: u.g, root: u.root, ns: s}
}

// Build returns the finished unit.
func (u *UnitBuilder) Build() typegraph.Unit {
	r := u.root
	unit := typegraph.Unit{
		Path:    r.path,
		Package: r.pkg,
		Imports: slices.Clone(r.imports),
		Options: slices.Clone(r.options),
	}
	for _, d := range r.decls {
		if !d.exported {
			continue
		}
		unit.Declarations = append(unit.Declarations, typegraph.Declaration{
			Name:   d.sym.name,
			Type:   r.g.handle(d.sym.declared),
			Symbol: symHandle(d.sym),
			Pos:    d.sym.loc,
		})
	}
	return unit
}

// Units returns every unit of the graph, in the order they were started.
func (g *Graph) Units() []typegraph.Unit {
	units := make([]typegraph.Unit, len(g.units))
	for i, u := range g.units {
		units[i] = u.Build()
	}
	return units
}

// Decl is a declaration made with a [UnitBuilder].
type Decl struct {
	u        *UnitBuilder
	sym      *symbol
	exported bool
}

// Type returns the declared type.
func (d *Decl) Type() typegraph.Type {
	return d.u.g.handle(d.sym.declared)
}

// Symbol returns the declared symbol.
func (d *Decl) Symbol() typegraph.Symbol {
	return symHandle(d.sym)
}

// Doc sets the documentation comment of the declaration.
func (d *Decl) Doc(text string) *Decl {
	d.sym.doc = text
	return d
}

// Tag adds a documentation tag to the declaration.
func (d *Decl) Tag(name, text string) *Decl {
	d.sym.tags = append(d.sym.tags, typegraph.DocTag{Name: name, Text: text})
	return d
}

// At sets the position of the declaration within its unit.
func (d *Decl) At(line, column int) *Decl {
	d.sym.loc.Line, d.sym.loc.Column = line, column
	return d
}

// Unexported omits the declaration from its unit's declaration list. It can
// still be referred to.
func (d *Decl) Unexported() *Decl {
	d.exported = false
	return d
}
