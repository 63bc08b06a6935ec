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

package ir

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/typegraph"
)

// ErrDuplicateName is returned when two statements in one scope have the same
// name.
var ErrDuplicateName = errors.New("duplicate name")

// Statement is an element of a [Body].
type Statement interface {
	// DeclName returns the name this statement declares in its scope, or
	// "" if it declares none.
	DeclName() string

	isStatement()
}

// Scope is anything with a [Body]: a [*File], or a [TypeDef].
type Scope interface {
	Body() *Body
	// Parent returns the enclosing scope. The parent of a file is nil, and
	// so is the parent of a definition that has not been placed by
	// [MarkParents] yet.
	Parent() Scope
}

// TypeDef is a named definition that can be the type of a field: a
// [*Message], [*Enum] or [*Service].
type TypeDef interface {
	Scope
	Statement
	TypeExpr

	setParent(Scope)
}

// Body is the ordered contents of a scope, with a table of the names it
// declares.
type Body struct {
	stmts []Statement
	names map[string]Statement
}

// Push appends a statement, failing if any name it declares is already
// declared by another statement of the body.
//
// A field whose type is a [*Oneof] declares its own name and the names of
// its members.
func (b *Body) Push(stmt Statement) error {
	names := declaredNames(stmt)
	for _, name := range names {
		if _, ok := b.names[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	if b.names == nil {
		b.names = make(map[string]Statement)
	}
	for _, name := range names {
		b.names[name] = stmt
	}
	b.stmts = append(b.stmts, stmt)
	return nil
}

func declaredNames(stmt Statement) []string {
	var names []string
	if name := stmt.DeclName(); name != "" {
		names = append(names, name)
	}
	if f, ok := stmt.(*Field); ok {
		if oneof, ok := f.Type.(*Oneof); ok {
			for _, member := range oneof.Fields {
				names = append(names, member.Name)
			}
		}
	}
	return names
}

// Statements returns the statements of this body, in order. The returned
// slice must not be modified.
func (b *Body) Statements() []Statement {
	if b == nil {
		return nil
	}
	return b.stmts
}

// Len returns the number of statements in this body.
func (b *Body) Len() int {
	if b == nil {
		return 0
	}
	return len(b.stmts)
}

// Lookup returns the statement declaring name, or nil.
func (b *Body) Lookup(name string) Statement {
	if b == nil {
		return nil
	}
	return b.names[name]
}

// Definitions returns the type definitions directly in this body.
func (b *Body) Definitions() []TypeDef {
	var defs []TypeDef
	for _, stmt := range b.Statements() {
		if def, ok := stmt.(TypeDef); ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Message is a message definition.
type Message struct {
	Name    string
	Options Options
	Comment string
	Pos     typegraph.Location
	// The node this message was declared from, possibly zero.
	Source typegraph.Type

	body   Body
	parent Scope
}

// Enum is an enum definition. Its body holds [*EnumValue] and [*Reserved]
// statements.
type Enum struct {
	Name    string
	Options Options
	Comment string
	Pos     typegraph.Location
	Source  typegraph.Type

	body   Body
	parent Scope
}

// Service is a service definition. Its body holds one [*Field] per method,
// each of type [*RPC].
type Service struct {
	Name    string
	Options Options
	Comment string
	Pos     typegraph.Location
	Source  typegraph.Type

	body   Body
	parent Scope
}

func (m *Message) DeclName() string { return m.Name }
func (e *Enum) DeclName() string    { return e.Name }
func (s *Service) DeclName() string { return s.Name }

func (m *Message) Body() *Body { return &m.body }
func (e *Enum) Body() *Body    { return &e.body }
func (s *Service) Body() *Body { return &s.body }

func (m *Message) Parent() Scope { return m.parent }
func (e *Enum) Parent() Scope    { return e.parent }
func (s *Service) Parent() Scope { return s.parent }

func (m *Message) setParent(p Scope) { m.parent = p }
func (e *Enum) setParent(p Scope)    { e.parent = p }
func (s *Service) setParent(p Scope) { s.parent = p }

func (*Message) Kind() descriptorpb.FieldDescriptorProto_Type {
	return descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
}

func (*Enum) Kind() descriptorpb.FieldDescriptorProto_Type {
	return descriptorpb.FieldDescriptorProto_TYPE_ENUM
}

func (*Service) Kind() descriptorpb.FieldDescriptorProto_Type { return 0 }

func (*Message) Normal() bool { return true }
func (*Enum) Normal() bool    { return true }
func (*Service) Normal() bool { return false }

// Enums cannot be map keys.
func (*Message) Comparable() bool { return false }
func (*Enum) Comparable() bool    { return false }
func (*Service) Comparable() bool { return false }

func (*Message) isTypeExpr() {}
func (*Enum) isTypeExpr()    {}
func (*Service) isTypeExpr() {}

func (*Message) isStatement() {}
func (*Enum) isStatement()    {}
func (*Service) isStatement() {}

// Field is a message field, oneof member or service method.
type Field struct {
	Name string
	// Zero means the number is assigned by [Normalize].
	Number  int32
	Type    TypeExpr
	Options Options
	Comment string
	Pos     typegraph.Location

	parent Scope
}

func (f *Field) DeclName() string { return f.Name }

// Parent returns the definition this field belongs to. Members of a oneof
// belong to the message containing the oneof.
func (f *Field) Parent() Scope { return f.parent }

func (*Field) isStatement() {}

// EnumValue is a value of an enum.
type EnumValue struct {
	Name    string
	Number  int32
	Options Options
	Comment string
	Pos     typegraph.Location
}

func (v *EnumValue) DeclName() string { return v.Name }

func (*EnumValue) isStatement() {}

// Range is an inclusive range of numbers.
type Range struct {
	Start, End int32
}

// Reserved reserves numbers and names in a message or enum.
type Reserved struct {
	Ranges []Range
	Names  []string
	Pos    typegraph.Location
}

func (*Reserved) DeclName() string { return "" }

func (*Reserved) isStatement() {}

// Import is an import of another file.
type Import struct {
	Path   string
	Weak   bool
	Public bool
}

// File is the root scope, one per compilation unit.
type File struct {
	// The path of the .proto file, such as "foo/bar.proto".
	Path string
	// The path of the unit this file was compiled from.
	Source  string
	Package string
	Imports []Import
	Options Options
	Comment string

	// External files stand for prebuilt files, such as the well-known
	// types. They are linked against, but never printed or generated.
	External   bool
	Descriptor *descriptorpb.FileDescriptorProto

	body     Body
	bySymbol map[typegraph.Symbol]TypeDef
	byName   map[string]TypeDef
}

// NewFile returns an empty file.
func NewFile(path, source, pkg string) *File {
	return &File{Path: path, Source: source, Package: pkg}
}

func (f *File) Body() *Body { return &f.body }

func (f *File) Parent() Scope { return nil }

// Define records def as the definition for sym and as the definition named
// name, relative to the file's package. sym may be zero.
func (f *File) Define(sym typegraph.Symbol, name string, def TypeDef) error {
	if _, ok := f.byName[name]; ok {
		return fmt.Errorf("symbol %s already defined", name)
	}
	if !sym.IsZero() {
		if _, ok := f.bySymbol[sym]; ok {
			return fmt.Errorf("symbol %s already defined", name)
		}
		if f.bySymbol == nil {
			f.bySymbol = make(map[typegraph.Symbol]TypeDef)
		}
		f.bySymbol[sym] = def
	}
	if f.byName == nil {
		f.byName = make(map[string]TypeDef)
	}
	f.byName[name] = def
	return nil
}

// Definition returns the definition recorded for sym, or nil.
func (f *File) Definition(sym typegraph.Symbol) TypeDef {
	if sym.IsZero() {
		return nil
	}
	return f.bySymbol[sym]
}

// DefinitionByName returns the definition with the given package-relative
// name, such as "Outer.Inner", or nil.
func (f *File) DefinitionByName(name string) TypeDef {
	return f.byName[name]
}

// Lookup returns the definition with the given fully-qualified name, without
// a leading dot, if it belongs to this file.
func (f *File) Lookup(fullName string) TypeDef {
	if f.Package == "" {
		return f.byName[fullName]
	}
	rest, ok := strings.CutPrefix(fullName, f.Package+".")
	if !ok {
		return nil
	}
	return f.byName[rest]
}

// AddImport adds an import of path, unless the file already imports it or is
// itself at path. It returns whether an import was added.
func (f *File) AddImport(path string) bool {
	if path == f.Path {
		return false
	}
	for _, imp := range f.Imports {
		if imp.Path == path {
			return false
		}
	}
	f.Imports = append(f.Imports, Import{Path: path})
	return true
}

// MarkParents sets the parent of every definition and field reachable from
// f's body, in a single traversal. Parents that are already set are kept.
func MarkParents(f *File) {
	var mark func(Scope)
	mark = func(scope Scope) {
		for _, stmt := range scope.Body().Statements() {
			switch stmt := stmt.(type) {
			case TypeDef:
				if stmt.Parent() == nil {
					stmt.setParent(scope)
				}
				mark(stmt)
			case *Field:
				if stmt.parent == nil {
					stmt.parent = scope
				}
				if oneof, ok := stmt.Type.(*Oneof); ok {
					for _, member := range oneof.Fields {
						if member.parent == nil {
							member.parent = scope
						}
					}
				}
			}
		}
	}
	mark(f)
}

// Place pushes def into scope's body and makes scope its parent.
func Place(scope Scope, def TypeDef) error {
	if err := scope.Body().Push(def); err != nil {
		return err
	}
	def.setParent(scope)
	return nil
}

// FileOf returns the file that contains def, or nil if def has not been placed.
func FileOf(def TypeDef) *File {
	var scope Scope = def
	for scope != nil {
		if f, ok := scope.(*File); ok {
			return f
		}
		scope = scope.Parent()
	}
	return nil
}

// FullName returns the fully-qualified name of def, without a leading dot.
func FullName(def TypeDef) string {
	return qualify(def.Parent(), def.DeclName())
}

// RelativeName returns the name of def relative to its file's package, such
// as "Outer.Inner".
func RelativeName(def TypeDef) string {
	name := def.DeclName()
	for scope := def.Parent(); scope != nil; scope = scope.Parent() {
		if outer, ok := scope.(TypeDef); ok {
			name = outer.DeclName() + "." + name
		}
	}
	return name
}

func qualify(scope Scope, name string) string {
	for scope != nil {
		switch s := scope.(type) {
		case *File:
			if s.Package != "" {
				name = s.Package + "." + name
			}
			return name
		case TypeDef:
			name = s.DeclName() + "." + name
		}
		scope = scope.Parent()
	}
	return name
}

// Resolve resolves a possibly dotted name relative to scope, searching each
// enclosing scope outwards for its first component.
func Resolve(scope Scope, name string) TypeDef {
	first, rest, _ := strings.Cut(name, ".")
	for ; scope != nil; scope = scope.Parent() {
		def, ok := scope.Body().Lookup(first).(TypeDef)
		if !ok {
			continue
		}
		for rest != "" {
			first, rest, _ = strings.Cut(rest, ".")
			def, ok = def.Body().Lookup(first).(TypeDef)
			if !ok {
				return nil
			}
		}
		return def
	}
	return nil
}
