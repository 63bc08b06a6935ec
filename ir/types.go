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

// Package ir contains the schema intermediate representation: files, the
// messages, enums and services they define, and the type expressions of
// their fields.
//
// A tree is built by the mapper with unresolved [*Ref] placeholders, which
// the linker replaces in place with the definitions they refer to. Field
// numbers are then assigned by [Normalize].
package ir

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/typegraph"
)

// TypeExpr is the type of a field, or the signature of an RPC.
//
// This is a sealed interface. Its implementations are [*Builtin], [*Ref],
// [*Repeated], [*Optional], [*Map], [*Stream], [*Oneof], [*RPC], and the type
// definitions [*Message], [*Enum] and [*Service].
type TypeExpr interface {
	// Kind returns the descriptor type of this expression. Composite
	// expressions, which have no single descriptor type, return 0.
	Kind() descriptorpb.FieldDescriptorProto_Type
	// Normal returns whether this expression can appear as the element of a
	// composite expression, or as a map value.
	Normal() bool
	// Comparable returns whether this expression can be a map key.
	Comparable() bool

	isTypeExpr()
}

// Builtin is one of the fifteen protobuf scalar types.
type Builtin struct {
	name string
	kind descriptorpb.FieldDescriptorProto_Type
}

// The protobuf scalar types.
var (
	Double   = &Builtin{"double", descriptorpb.FieldDescriptorProto_TYPE_DOUBLE}
	Float    = &Builtin{"float", descriptorpb.FieldDescriptorProto_TYPE_FLOAT}
	Int64    = &Builtin{"int64", descriptorpb.FieldDescriptorProto_TYPE_INT64}
	Uint64   = &Builtin{"uint64", descriptorpb.FieldDescriptorProto_TYPE_UINT64}
	Int32    = &Builtin{"int32", descriptorpb.FieldDescriptorProto_TYPE_INT32}
	Fixed64  = &Builtin{"fixed64", descriptorpb.FieldDescriptorProto_TYPE_FIXED64}
	Fixed32  = &Builtin{"fixed32", descriptorpb.FieldDescriptorProto_TYPE_FIXED32}
	Bool     = &Builtin{"bool", descriptorpb.FieldDescriptorProto_TYPE_BOOL}
	String   = &Builtin{"string", descriptorpb.FieldDescriptorProto_TYPE_STRING}
	Bytes    = &Builtin{"bytes", descriptorpb.FieldDescriptorProto_TYPE_BYTES}
	Uint32   = &Builtin{"uint32", descriptorpb.FieldDescriptorProto_TYPE_UINT32}
	Sfixed32 = &Builtin{"sfixed32", descriptorpb.FieldDescriptorProto_TYPE_SFIXED32}
	Sfixed64 = &Builtin{"sfixed64", descriptorpb.FieldDescriptorProto_TYPE_SFIXED64}
	Sint32   = &Builtin{"sint32", descriptorpb.FieldDescriptorProto_TYPE_SINT32}
	Sint64   = &Builtin{"sint64", descriptorpb.FieldDescriptorProto_TYPE_SINT64}
)

var builtins = []*Builtin{
	Double, Float, Int64, Uint64, Int32, Fixed64, Fixed32, Bool,
	String, Bytes, Uint32, Sfixed32, Sfixed64, Sint32, Sint64,
}

var builtinsByName = func() map[string]*Builtin {
	m := make(map[string]*Builtin, len(builtins))
	for _, b := range builtins {
		m[b.name] = b
	}
	return m
}()

// Builtins returns every scalar type, in descriptor type order.
func Builtins() []*Builtin {
	return append([]*Builtin(nil), builtins...)
}

// LookupBuiltin returns the scalar type with the given name, such as "int32",
// or nil if there is none.
func LookupBuiltin(name string) *Builtin {
	return builtinsByName[name]
}

// Name returns the name of this scalar, as written in a .proto file.
func (b *Builtin) Name() string { return b.name }

func (b *Builtin) String() string { return b.name }

func (b *Builtin) Kind() descriptorpb.FieldDescriptorProto_Type { return b.kind }

func (b *Builtin) Normal() bool { return true }

func (b *Builtin) Comparable() bool {
	switch b.kind {
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
		descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
		descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return false
	default:
		return true
	}
}

func (*Builtin) isTypeExpr() {}

// Ref is a placeholder for a message or enum that has not been linked yet.
//
// The linker replaces each Ref with the definition it refers to, looking it
// up first by Source and then by Name.
type Ref struct {
	// The fully-qualified name of the referenced type, if known.
	Name string
	// Either TYPE_MESSAGE or TYPE_ENUM.
	RefKind descriptorpb.FieldDescriptorProto_Type
	// The node this reference was mapped from, possibly zero.
	Source typegraph.Type
}

// MessageRef returns a placeholder for the message with the given name.
func MessageRef(name string) *Ref {
	return &Ref{Name: name, RefKind: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE}
}

func (r *Ref) String() string { return r.Name }

func (r *Ref) Kind() descriptorpb.FieldDescriptorProto_Type { return r.RefKind }

func (r *Ref) Normal() bool { return true }

func (r *Ref) Comparable() bool { return false }

func (*Ref) isTypeExpr() {}

// Repeated is a list of Elem.
type Repeated struct{ Elem TypeExpr }

// Optional is an Elem with explicit presence.
type Optional struct{ Elem TypeExpr }

// Stream is a stream of Elem, valid only as the input or output of an RPC.
type Stream struct{ Elem TypeExpr }

// Map is a map from Key to Value.
type Map struct{ Key, Value TypeExpr }

// Oneof is a group of mutually exclusive fields.
type Oneof struct{ Fields []*Field }

// RPC is the signature of a service method.
type RPC struct{ Input, Output TypeExpr }

func (r *Repeated) String() string { return "repeated " + TypeName(r.Elem) }
func (o *Optional) String() string { return "optional " + TypeName(o.Elem) }
func (s *Stream) String() string   { return "stream " + TypeName(s.Elem) }
func (m *Map) String() string {
	return fmt.Sprintf("map<%s, %s>", TypeName(m.Key), TypeName(m.Value))
}
func (*Oneof) String() string { return "oneof" }
func (r *RPC) String() string {
	return fmt.Sprintf("(%s) returns (%s)", TypeName(r.Input), TypeName(r.Output))
}

func (*Repeated) Kind() descriptorpb.FieldDescriptorProto_Type { return 0 }
func (*Optional) Kind() descriptorpb.FieldDescriptorProto_Type { return 0 }
func (*Stream) Kind() descriptorpb.FieldDescriptorProto_Type   { return 0 }
func (*Map) Kind() descriptorpb.FieldDescriptorProto_Type      { return 0 }
func (*Oneof) Kind() descriptorpb.FieldDescriptorProto_Type    { return 0 }
func (*RPC) Kind() descriptorpb.FieldDescriptorProto_Type      { return 0 }

func (*Repeated) Normal() bool { return false }
func (*Optional) Normal() bool { return false }
func (*Stream) Normal() bool   { return false }
func (*Map) Normal() bool      { return false }
func (*Oneof) Normal() bool    { return false }
func (*RPC) Normal() bool      { return false }

func (*Repeated) Comparable() bool { return false }
func (*Optional) Comparable() bool { return false }
func (*Stream) Comparable() bool   { return false }
func (*Map) Comparable() bool      { return false }
func (*Oneof) Comparable() bool    { return false }
func (*RPC) Comparable() bool      { return false }

func (*Repeated) isTypeExpr() {}
func (*Optional) isTypeExpr() {}
func (*Stream) isTypeExpr()   {}
func (*Map) isTypeExpr()      {}
func (*Oneof) isTypeExpr()    {}
func (*RPC) isTypeExpr()      {}

// TypeName returns a name for e suitable for diagnostics. Definitions are
// named by their fully-qualified name.
func TypeName(e TypeExpr) string {
	switch e := e.(type) {
	case nil:
		return "<nil>"
	case TypeDef:
		return FullName(e)
	case fmt.Stringer:
		return e.String()
	default:
		return fmt.Sprintf("%T", e)
	}
}

// IsMessage returns whether e is a message, or a placeholder for one.
func IsMessage(e TypeExpr) bool {
	return e != nil && e.Kind() == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
}
