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
	"cmp"
	"slices"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Declare adds the definition for a top-level declaration to file.
//
// Enums become enums, interfaces and classes with methods become services,
// and other interfaces and classes become messages. A declaration that maps
// to anything but a named type, such as an alias of a scalar, declares
// nothing. Neither does a declaration of a type that belongs to another
// unit, or that file already defines.
//
// Declarations nested in a namespace are placed inside the definition for
// the namespace, if file defines one, and otherwise get a flattened name
// such as Outer_Inner.
func (m *Mapper) Declare(file *ir.File, decl typegraph.Declaration) error {
	return m.declare(file, decl.Type, decl.Pos)
}

func (m *Mapper) declare(file *ir.File, t typegraph.Type, pos typegraph.Location) error {
	p := m.prov
	sym := p.Symbol(t)
	if file.Definition(sym) != nil {
		return nil
	}

	m.at = pos
	res, err := m.Map(t)
	if err != nil {
		return m.h.HandleError(reporter.Error(pos, err))
	}
	ref, ok := res.Type.(*ir.Ref)
	switch {
	case !ok || ref.Source.IsZero():
		return nil
	case ref.Source != t:
		return m.declare(file, ref.Source, pos)
	}

	loc, ok := p.Declaration(sym)
	if !ok || loc.Unit != file.Source {
		return nil
	}
	m.at = loc

	scope, name := m.placement(file, sym)
	opts := m.docOptions(sym)
	comment := p.DocComment(sym)
	m.log.WithField("type", name).Debug("creating type")

	var def ir.TypeDef
	flags := p.TypeFlags(t)
	switch {
	case flags.Has(typegraph.EnumLiteral):
		e := &ir.Enum{Name: name, Options: opts, Comment: comment, Pos: loc, Source: t}
		if err := m.enumValues(e, t); err != nil {
			return m.h.HandleError(reporter.Error(loc, err))
		}
		def = e

	case flags.Has(typegraph.ClassOrInterface):
		props := p.Properties(t)
		isService := slices.ContainsFunc(props, func(s typegraph.Symbol) bool {
			return len(p.CallSignatures(p.TypeOf(s))) > 0
		})
		opts.Merge(&res.Attrs)
		if isService {
			svc := &ir.Service{Name: name, Options: opts, Comment: comment, Pos: loc, Source: t}
			if err := m.methods(svc, props); err != nil {
				return err
			}
			def = svc
		} else {
			msg := &ir.Message{Name: name, Options: opts, Comment: comment, Pos: loc, Source: t}
			if err := m.fields(msg, props); err != nil {
				return err
			}
			def = msg
		}

	default:
		m.warnf("unhandled type %s", p.TypeString(t))
		return nil
	}

	if err := ir.Place(scope, def); err != nil {
		return m.h.HandleError(reporter.Error(loc, err))
	}
	if err := file.Define(sym, ir.RelativeName(def), def); err != nil {
		return m.h.HandleError(reporter.Error(loc, err))
	}
	return nil
}

// placement returns the scope a type symbol is defined in, and its name
// there. The enclosing namespaces are searched outwards for one that file
// defines as a message; the namespaces in between are flattened into the
// name.
func (m *Mapper) placement(file *ir.File, sym typegraph.Symbol) (ir.Scope, string) {
	p := m.prov
	name := p.Name(sym)
	for parent := p.Parent(sym); !parent.IsZero(); parent = p.Parent(parent) {
		if msg, ok := file.Definition(parent).(*ir.Message); ok {
			return msg, name
		}
		name = p.Name(parent) + "_" + name
	}
	return file, name
}

type enumValue struct {
	name    string
	number  int32
	comment string
	pos     typegraph.Location
}

func (m *Mapper) enumValues(e *ir.Enum, t typegraph.Type) error {
	p := m.prov
	members := p.UnionMembers(t)
	if members == nil {
		members = []typegraph.Type{t}
	}

	values := make([]enumValue, 0, len(members))
	for _, member := range members {
		sym := p.Symbol(member)
		lit, _ := ir.FromConstant(p.Literal(member))
		n, ok := lit.AsInt()
		if !ok || int64(int32(n)) != n {
			m.warnf("enum member %s.%s has non-numeric value %s", e.Name, p.Name(sym), p.TypeString(member))
			continue
		}
		v := enumValue{name: p.Name(sym), number: int32(n), comment: p.DocComment(sym), pos: m.at}
		if loc, ok := p.Declaration(sym); ok {
			v.pos = loc
		}
		values = append(values, v)
	}

	slices.SortStableFunc(values, func(a, b enumValue) int {
		return cmp.Compare(a.number, b.number)
	})
	if !slices.ContainsFunc(values, func(v enumValue) bool { return v.number == 0 }) {
		values = slices.Insert(values, 0, enumValue{name: "UNSPECIFIED", pos: e.Pos})
	}

	for _, v := range values {
		stmt := &ir.EnumValue{Name: v.name, Number: v.number, Comment: v.comment, Pos: v.pos}
		if err := e.Body().Push(stmt); err != nil {
			return err
		}
	}
	return nil
}

// atSymbol runs f with diagnostics reported at the declaration of sym.
func (m *Mapper) atSymbol(sym typegraph.Symbol, f func() error) error {
	prev := m.at
	if loc, ok := m.prov.Declaration(sym); ok {
		m.at = loc
	}
	defer func() { m.at = prev }()
	return f()
}

func (m *Mapper) methods(svc *ir.Service, props []typegraph.Symbol) error {
	p := m.prov
	for _, member := range props {
		err := m.atSymbol(member, func() error {
			typ := p.TypeOf(member)
			if len(p.CallSignatures(typ)) == 0 {
				m.warnf("ignoring non-callable member %s of service %s", p.Name(member), svc.Name)
				return nil
			}
			res, err := m.Map(typ)
			if err != nil {
				return m.h.HandleError(reporter.Error(m.at, err))
			}
			field := &ir.Field{
				Name:    p.Name(member),
				Type:    res.Type,
				Options: res.Attrs,
				Comment: p.DocComment(member),
				Pos:     m.at,
			}
			return m.push(svc, field)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) fields(msg *ir.Message, props []typegraph.Symbol) error {
	p := m.prov
	for _, member := range props {
		err := m.atSymbol(member, func() error {
			if p.Name(member) == reservedProp {
				res, err := m.reserved(p.TypeOf(member))
				if err != nil {
					m.warnf("%v", err)
					return nil
				}
				return m.push(msg, res)
			}

			name, number, ok := splitIndex(p.Name(member))
			if !ok {
				m.warnf("field %s of %s has a non-numeric index", p.Name(member), msg.Name)
			}
			res, err := m.Map(p.TypeOf(member))
			if err != nil {
				return m.h.HandleError(reporter.Error(m.at, err))
			}

			field := &ir.Field{
				Name:    name,
				Number:  number,
				Type:    res.Type,
				Options: res.Attrs,
				Comment: p.DocComment(member),
				Pos:     m.at,
			}
			if opt, ok := res.Type.(*ir.Optional); ok && !m.nativeOptionals {
				// An optional field becomes a oneof with a single member.
				field.Type = opt.Elem
				field = &ir.Field{
					Name: name + "_opt",
					Type: &ir.Oneof{Fields: []*ir.Field{field}},
					Pos:  m.at,
				}
			}
			return m.push(msg, field)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) push(scope ir.Scope, stmt ir.Statement) error {
	if err := scope.Body().Push(stmt); err != nil {
		return m.h.HandleError(reporter.Error(m.at, err))
	}
	return nil
}
