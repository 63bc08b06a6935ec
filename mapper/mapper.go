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

// Package mapper lowers the nodes of a type graph into schema IR.
//
// A [Mapper] is used in two ways. [Mapper.Map] translates the type of a
// property, parameter or return value into a type expression, leaving
// placeholders for named types. [Mapper.Declare] turns a top-level
// declaration into a message, enum or service definition.
package mapper

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Names of the sentinel properties that identify marker shapes.
const (
	linkProp     = "__protobuf_link"
	baseProp     = "__protobuf_base"
	extProp      = "__protobuf_ext"
	mapKeyProp   = "__protobuf_map_key"
	mapValueProp = "__protobuf_map_value"
	repProp      = "__protobuf_rep"
	optProp      = "__protobuf_opt"
	streamProp   = "__protobuf_stream"
	reservedProp = "__protobuf_reserved"
)

// Full names of the well-known types the mapper refers to.
const (
	anyName       = "google.protobuf.Any"
	emptyName     = "google.protobuf.Empty"
	timestampName = "google.protobuf.Timestamp"
)

// ErrInvalidOneof is returned when a union cannot be lowered to a oneof.
var ErrInvalidOneof = errors.New("oneof type must have exactly one member")

// Result is the result of mapping a type.
type Result struct {
	Type ir.TypeExpr
	// Options attached to the type, which become the options of the field
	// that uses it.
	Attrs ir.Options
}

// Option configures a [Mapper].
type Option func(*Mapper)

// WithLogger sets the logger of the mapper. By default, nothing is logged.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Mapper) { m.log = logger }
}

// WithNativeOptionals makes optional properties become proto3 optional
// fields. Otherwise, they become single-member oneofs.
func WithNativeOptionals(enabled bool) Option {
	return func(m *Mapper) { m.nativeOptionals = enabled }
}

// Mapper maps nodes of a type graph to schema IR.
//
// A Mapper is not safe for concurrent use.
type Mapper struct {
	prov            typegraph.Provider
	h               *reporter.Handler
	log             logrus.FieldLogger
	nativeOptionals bool

	// The position diagnostics are reported at.
	at typegraph.Location

	required   []typegraph.Type
	seen       map[typegraph.Type]struct{}
	artificial []*ir.Message
	// The RPC mapped for each function type, so that its messages are
	// synthesized once however often the type is used.
	rpcs map[typegraph.Type]*ir.RPC
}

// New returns a mapper that queries prov and reports diagnostics to h.
func New(prov typegraph.Provider, h *reporter.Handler, opts ...Option) *Mapper {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	m := &Mapper{
		prov: prov,
		h:    h,
		log:  discard,
		seen: make(map[typegraph.Type]struct{}),
		rpcs: make(map[typegraph.Type]*ir.RPC),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Required returns the named types that were referred to while mapping, in
// the order they were first seen. Each should be defined by some file.
func (m *Mapper) Required() []typegraph.Type {
	return m.required
}

// Artificial returns the messages synthesized for method parameters and
// results. They are not placed in any file; their Source is the function
// type they were synthesized for.
func (m *Mapper) Artificial() []*ir.Message {
	return m.artificial
}

func (m *Mapper) require(t typegraph.Type) {
	if _, ok := m.seen[t]; ok {
		return
	}
	m.seen[t] = struct{}{}
	m.required = append(m.required, t)
}

func (m *Mapper) warnf(format string, args ...any) {
	m.h.HandleWarningf(m.at, format, args...)
}

func enumRef(name string, source typegraph.Type) *ir.Ref {
	return &ir.Ref{Name: name, RefKind: descriptorpb.FieldDescriptorProto_TYPE_ENUM, Source: source}
}

func messageRef(name string, source typegraph.Type) *ir.Ref {
	return &ir.Ref{Name: name, RefKind: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, Source: source}
}

// Map maps a type to a type expression.
//
// Problems that can be recovered from, such as types with no protobuf
// equivalent, are reported as warnings, and the type becomes
// google.protobuf.Any. The only error is a union that cannot form a oneof.
func (m *Mapper) Map(t typegraph.Type) (Result, error) {
	p := m.prov
	flags := p.TypeFlags(t)
	sym := p.Symbol(t)
	symFlags := p.SymbolFlags(sym)

	switch {
	case symFlags.Has(typegraph.EnumSymbol):
		decl := p.DeclaredType(sym)
		m.require(decl)
		return Result{Type: enumRef(p.Name(sym), decl)}, nil
	case symFlags.Has(typegraph.EnumMemberSymbol):
		parent := p.Parent(sym)
		decl := p.DeclaredType(parent)
		m.require(decl)
		return Result{Type: enumRef(p.Name(parent), decl)}, nil
	}

	switch {
	case flags.Has(typegraph.String):
		return Result{Type: ir.String}, nil
	case flags.Has(typegraph.Number):
		return Result{Type: ir.Double}, nil
	case flags.Has(typegraph.Boolean):
		return Result{Type: ir.Bool}, nil
	case flags.Has(typegraph.BigInt):
		return Result{Type: ir.Int64}, nil
	case flags.Has(typegraph.Void):
		return Result{Type: ir.MessageRef(emptyName)}, nil
	case flags.Has(typegraph.Any | typegraph.Unknown):
		if name := p.Name(sym); !sym.IsZero() && name != "any" && name != "unknown" {
			m.warnf("failed to resolve type %s", p.TypeString(t))
		}
		return Result{Type: ir.MessageRef(anyName)}, nil
	case flags.Has(typegraph.Union):
		return m.mapUnion(t)
	}

	if res, ok, err := m.mapMarker(t); ok || err != nil {
		return res, err
	}
	if !sym.IsZero() {
		if res, ok, err := m.mapShape(t, p.Name(sym)); ok || err != nil {
			return res, err
		}
	}
	if sigs := p.CallSignatures(t); len(sigs) > 0 {
		rpc, err := m.mapSignature(t, sigs[0])
		return Result{Type: rpc}, err
	}

	if !sym.IsZero() {
		m.require(t)
		return Result{Type: messageRef(p.Name(sym), t)}, nil
	}
	m.warnf("unmapped type %s", p.TypeString(t))
	return Result{Type: ir.MessageRef(anyName)}, nil
}

// optional wraps e in an Optional. Repeated and map types have no presence,
// so they are returned as they are.
func optional(e ir.TypeExpr) ir.TypeExpr {
	switch e.(type) {
	case *ir.Repeated, *ir.Map:
		return e
	}
	return &ir.Optional{Elem: e}
}

func (m *Mapper) mapUnion(t typegraph.Type) (Result, error) {
	p := m.prov
	if members := p.UnionMembers(t); len(members) == 1 {
		return m.Map(members[0])
	}

	nonNull := p.NonNullable(t)
	if nonNull.IsZero() {
		m.warnf("unmapped type %s", p.TypeString(t))
		return Result{Type: &ir.Optional{Elem: ir.MessageRef(anyName)}}, nil
	}
	isEnum := p.SymbolFlags(p.Symbol(nonNull)).Has(typegraph.EnumSymbol)
	if isEnum || !p.TypeFlags(nonNull).Has(typegraph.Union) {
		res, err := m.Map(nonNull)
		if err != nil {
			return res, err
		}
		res.Type = optional(res.Type)
		return res, nil
	}

	members := p.UnionMembers(nonNull)
	if len(members) == 0 {
		m.warnf("unmapped type %s", p.TypeString(t))
		return Result{Type: &ir.Optional{Elem: ir.MessageRef(anyName)}}, nil
	}
	oneof := &ir.Oneof{Fields: make([]*ir.Field, 0, len(members))}
	for _, member := range members {
		props := p.Properties(member)
		if len(props) != 1 {
			for _, member := range members {
				m.warnf("oneof member: %s", p.TypeString(member))
			}
			return Result{}, fmt.Errorf("%w: %s", ErrInvalidOneof, p.TypeString(member))
		}
		res, err := m.Map(p.TypeOf(props[0]))
		if err != nil {
			return res, err
		}
		name, number, ok := splitIndex(p.Name(props[0]))
		if !ok {
			m.warnf("oneof member %s has a non-numeric index", p.Name(props[0]))
		}
		field := &ir.Field{Name: name, Number: number, Type: res.Type, Pos: m.at}
		field.Options.Merge(&res.Attrs)
		oneof.Fields = append(oneof.Fields, field)
	}
	return Result{Type: oneof}, nil
}

// mapMarker maps the marker shapes, which are recognized by their sentinel
// properties.
func (m *Mapper) mapMarker(t typegraph.Type) (Result, bool, error) {
	p := m.prov
	prop := func(name string) typegraph.Type {
		s := p.Property(t, name)
		if s.IsZero() {
			return typegraph.Type{}
		}
		return p.TypeOf(s)
	}

	if link := prop(linkProp); !link.IsZero() {
		lit, ok := ir.FromConstant(p.Literal(link))
		name, isString := lit.AsString()
		if !ok || !isString {
			m.warnf("link name must be a string literal, got %s", p.TypeString(link))
			return Result{Type: ir.MessageRef(anyName)}, true, nil
		}
		if b := ir.LookupBuiltin(name); b != nil {
			return Result{Type: b}, true, nil
		}
		return Result{Type: ir.MessageRef(name)}, true, nil
	}

	if base := prop(baseProp); !base.IsZero() {
		res, err := m.Map(base)
		if err != nil {
			return res, true, err
		}
		if ext := prop(extProp); !ext.IsZero() {
			for _, s := range p.Properties(ext) {
				v := p.TypeOf(s)
				if !p.TypeFlags(v).Has(typegraph.Literal) {
					continue
				}
				if lit, ok := ir.FromConstant(p.Literal(v)); ok {
					res.Attrs.Set(p.Name(s), lit)
				}
			}
		}
		return res, true, nil
	}

	if key, value := prop(mapKeyProp), prop(mapValueProp); !key.IsZero() && !value.IsZero() {
		k, err := m.Map(key)
		if err != nil {
			return k, true, err
		}
		v, err := m.Map(value)
		if err != nil {
			return v, true, err
		}
		return Result{Type: &ir.Map{Key: k.Type, Value: v.Type}}, true, nil
	}

	wrappers := []struct {
		name string
		wrap func(ir.TypeExpr) ir.TypeExpr
	}{
		{repProp, func(e ir.TypeExpr) ir.TypeExpr { return &ir.Repeated{Elem: e} }},
		{optProp, optional},
		{streamProp, func(e ir.TypeExpr) ir.TypeExpr { return &ir.Stream{Elem: e} }},
	}
	for _, w := range wrappers {
		if elem := prop(w.name); !elem.IsZero() {
			res, err := m.Map(elem)
			res.Type = w.wrap(res.Type)
			return res, true, err
		}
	}
	return Result{}, false, nil
}

// mapShape maps the predeclared object shapes, by name.
func (m *Mapper) mapShape(t typegraph.Type, name string) (Result, bool, error) {
	scalar := func(e ir.TypeExpr) (Result, bool, error) {
		return Result{Type: e}, true, nil
	}
	repeated := func(elem ir.TypeExpr) (Result, bool, error) {
		return Result{Type: &ir.Repeated{Elem: elem}}, true, nil
	}
	switch name {
	case "Number":
		return scalar(ir.Double)
	case "BigInt":
		return scalar(ir.Int64)
	case "String":
		return scalar(ir.String)
	case "Boolean":
		return scalar(ir.Bool)
	case "Date":
		return scalar(ir.MessageRef(timestampName))
	case "ArrayBuffer", "Uint8Array", "Int8Array", "Uint8ClampedArray":
		return scalar(ir.Bytes)
	case "Uint16Array", "Uint32Array":
		return repeated(ir.Uint32)
	case "Int16Array", "Int32Array":
		return repeated(ir.Int32)
	case "BigUint64Array", "Uint64Array":
		return repeated(ir.Uint64)
	case "BigInt64Array", "Int64Array":
		return repeated(ir.Int64)
	case "Float32Array":
		return repeated(ir.Float)
	case "Float64Array":
		return repeated(ir.Double)
	case "Map":
		args, err := m.typeArgs(t, 2)
		if err != nil {
			return Result{}, true, err
		}
		return Result{Type: &ir.Map{Key: args[0], Value: args[1]}}, true, nil
	case "Set", "Array", "ReadonlyArray":
		if elem := m.prov.NumberIndexType(t); !elem.IsZero() && name != "Set" {
			res, err := m.Map(elem)
			if err != nil {
				return res, true, err
			}
			return repeated(res.Type)
		}
		args, err := m.typeArgs(t, 1)
		if err != nil {
			return Result{}, true, err
		}
		return repeated(args[0])
	}
	return Result{}, false, nil
}

// typeArgs maps the first n type arguments of t. Missing arguments become
// google.protobuf.Any.
func (m *Mapper) typeArgs(t typegraph.Type, n int) ([]ir.TypeExpr, error) {
	types := make([]ir.TypeExpr, n)
	args := m.prov.TypeArguments(t, n)
	for i := range types {
		if i >= len(args) {
			types[i] = ir.MessageRef(anyName)
			continue
		}
		res, err := m.Map(args[i])
		if err != nil {
			return nil, err
		}
		types[i] = res.Type
	}
	return types, nil
}
