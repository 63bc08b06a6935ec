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

// Package typegraph defines the queries the compiler issues against an
// external graph of statically-typed declarations.
//
// The compiler never inspects a host type system directly. Instead, a
// [Provider] answers questions about opaque [Type] and [Symbol] handles, so any
// introspection backend that can answer them can be compiled to protobuf.
package typegraph

import (
	"fmt"
	"go/constant"
)

// Type is an opaque handle to a node in a type graph.
//
// Types are compared by identity: two handles are equal if and only if they
// refer to the same node. The zero Type refers to no node.
type Type struct {
	ref any
}

// NewType wraps a backend-specific reference into a Type. ref must be
// comparable, and is typically a pointer.
func NewType(ref any) Type {
	return Type{ref: ref}
}

// Ref returns the backend-specific reference this handle wraps.
func (t Type) Ref() any { return t.ref }

// IsZero returns whether this is the zero Type.
func (t Type) IsZero() bool { return t.ref == nil }

// Symbol is an opaque handle to a named declaration in a type graph.
//
// Like [Type], symbols are compared by identity, and the zero Symbol refers
// to no declaration.
type Symbol struct {
	ref any
}

// NewSymbol wraps a backend-specific reference into a Symbol.
func NewSymbol(ref any) Symbol {
	return Symbol{ref: ref}
}

// Ref returns the backend-specific reference this handle wraps.
func (s Symbol) Ref() any { return s.ref }

// IsZero returns whether this is the zero Symbol.
func (s Symbol) IsZero() bool { return s.ref == nil }

// TypeFlags classifies a [Type].
type TypeFlags uint32

const (
	String TypeFlags = 1 << iota
	Number
	Boolean
	BigInt
	Void
	Undefined
	Null
	Any
	Unknown
	StringLiteral
	NumberLiteral
	BooleanLiteral
	BigIntLiteral
	EnumLiteral
	Union
	Object
	ClassOrInterface

	// Literal is the union of all literal flags.
	Literal = StringLiteral | NumberLiteral | BooleanLiteral | BigIntLiteral
	// Nullish is the union of the flags of types that carry no value.
	Nullish = Undefined | Null
)

// Has returns whether any of the given flags are set.
func (f TypeFlags) Has(flags TypeFlags) bool { return f&flags != 0 }

// SymbolFlags classifies a [Symbol].
type SymbolFlags uint32

const (
	EnumSymbol SymbolFlags = 1 << iota
	EnumMemberSymbol
	ClassSymbol
	InterfaceSymbol
	TypeAliasSymbol
	NamespaceSymbol
	PropertySymbol
	MethodSymbol
)

// Has returns whether any of the given flags are set.
func (f SymbolFlags) Has(flags SymbolFlags) bool { return f&flags != 0 }

// Signature is a call signature of a function-like type.
type Signature struct {
	// The parameters, in declaration order. Their types are obtained with
	// [Provider.TypeOf].
	Params []Symbol
	// The return type. Must not be zero; functions without a result return
	// a type with the [Void] flag.
	Return Type
}

// DocTag is a documentation tag attached to a declaration, such as
// "@option java_package=com.example".
type DocTag struct {
	Name string
	Text string
}

// Location is a position within a compilation unit.
type Location struct {
	// The path of the unit, as given by [Unit.Path].
	Unit string
	// One-based line and column. Zero means unknown.
	Line, Column int
}

// String implements [fmt.Stringer].
func (l Location) String() string {
	switch {
	case l.Unit == "":
		return "<unknown>"
	case l.Line == 0:
		return l.Unit
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.Unit, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.Unit, l.Line, l.Column)
	}
}

// Provider answers queries about a type graph.
//
// The compiler treats a Provider as authoritative and side-effect free: the
// same query always yields the same answer. Queries about a zero handle
// return zero values.
type Provider interface {
	// TypeFlags classifies a type.
	TypeFlags(Type) TypeFlags
	// Symbol returns the symbol that names a type, if any.
	Symbol(Type) Symbol
	// Properties returns the property symbols of an object type, in
	// declaration order.
	Properties(Type) []Symbol
	// Property returns the property of an object type with the given name.
	Property(t Type, name string) Symbol
	// CallSignatures returns the call signatures of a function-like type.
	CallSignatures(Type) []Signature
	// TypeArguments returns the arity type arguments of a generic
	// instantiation, or nil if they are not available.
	TypeArguments(t Type, arity int) []Type
	// NumberIndexType returns the element type of an indexable type.
	NumberIndexType(Type) Type
	// NonNullable returns t with null and undefined members removed.
	NonNullable(Type) Type
	// UnionMembers returns the members of a union type, or nil.
	UnionMembers(Type) []Type
	// Literal returns the value of a literal type, or nil.
	Literal(Type) constant.Value
	// TypeString renders a type for diagnostics.
	TypeString(Type) string

	// TypeOf returns the type of a value symbol, such as a property or
	// parameter.
	TypeOf(Symbol) Type
	// DeclaredType returns the type a type symbol declares.
	DeclaredType(Symbol) Type
	// Name returns the name of a symbol.
	Name(Symbol) string
	// SymbolFlags classifies a symbol.
	SymbolFlags(Symbol) SymbolFlags
	// Parent returns the symbol that lexically contains this one, such as
	// a namespace or an enum for its members. Symbols declared at the top
	// level of a unit have no parent.
	Parent(Symbol) Symbol
	// Declaration returns where a symbol is declared.
	Declaration(Symbol) (Location, bool)
	// DocTags returns the documentation tags attached to a symbol.
	DocTags(Symbol) []DocTag
	// DocComment returns the documentation comment attached to a symbol,
	// without comment markers.
	DocComment(Symbol) string
}

// Unit is a compilation unit: the declarations of one source file, which
// become one .proto file.
type Unit struct {
	// The path of the source file. Declarations in this unit report this
	// path from [Provider.Declaration].
	Path string
	// If set, the protobuf package for this unit. Otherwise, the package is
	// derived from Path.
	Package string
	// Additional imports declared by the source.
	Imports []Import
	// File-level options declared by the source, in order.
	Options []UnitOption
	// The exported top-level declarations.
	Declarations []Declaration
}

// Import is an import edge declared by a unit.
type Import struct {
	Path   string
	Weak   bool
	Public bool
}

// UnitOption is a file option declared by a unit.
type UnitOption struct {
	Name  string
	Value constant.Value
}

// Declaration is a top-level declaration of a unit.
type Declaration struct {
	// The identifier this declaration is exported as.
	Name string
	// The declared type.
	Type Type
	// The declared symbol, if any.
	Symbol Symbol
	Pos    Location
}
