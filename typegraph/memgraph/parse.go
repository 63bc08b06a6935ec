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
	"fmt"
	"go/constant"
	"go/token"
	"slices"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/bufbuild/typeproto/typegraph"
)

// Parse parses a type expression, such as
//
//	{ id: int64; tags?: string[]; kind: Kind | null }
//
// Names are resolved lazily, as if by [UnitBuilder.Ref]. The syntax is a
// subset of TypeScript's: unions, array suffixes, object literals with
// optional properties and methods, function types, string, number, boolean
// and bigint literals, and instances of the generic shapes Array, Set, Map,
// and of the markers Rep, Opt, Stream, Link, Ext and ProtoMap.
//
// The scalar names int32, int64, uint32, uint64, sint32, sint64, fixed32,
// fixed64, sfixed32, sfixed64, float and double refer to protobuf scalars,
// and bytes to ArrayBuffer.
func (u *UnitBuilder) Parse(expr string) (typegraph.Type, error) {
	toks, err := lex(expr)
	if err != nil {
		return typegraph.Type{}, err
	}
	p := &parser{u: u, g: u.g, expr: expr, toks: toks}
	t, err := p.parseType()
	if err != nil {
		return typegraph.Type{}, err
	}
	if !p.at(scanner.EOF) {
		return typegraph.Type{}, p.errorf("unexpected %s", p.peek())
	}
	return t, nil
}

// MustParse is like [UnitBuilder.Parse], but panics on error.
func (u *UnitBuilder) MustParse(expr string) typegraph.Type {
	t, err := u.Parse(expr)
	if err != nil {
		panic(err)
	}
	return t
}

type tok struct {
	kind   rune
	text   string
	offset int
}

func (t tok) String() string {
	if t.kind == scanner.EOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

func lex(expr string) ([]tok, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(expr))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || (unicode.IsDigit(ch) && i > 0)
	}
	var lexErr error
	s.Error = func(s *scanner.Scanner, msg string) {
		if lexErr == nil {
			lexErr = fmt.Errorf("%q:%d: %s", expr, s.Position.Column, msg)
		}
	}

	var toks []tok
	for {
		kind := s.Scan()
		toks = append(toks, tok{kind: kind, text: s.TokenText(), offset: s.Position.Offset})
		if kind == scanner.EOF {
			break
		}
	}
	return toks, lexErr
}

type parser struct {
	u    *UnitBuilder
	g    *Graph
	expr string
	toks []tok
	pos  int
}

func (p *parser) peek() tok { return p.toks[p.pos] }

func (p *parser) next() tok {
	t := p.toks[p.pos]
	if t.kind != scanner.EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind rune) bool { return p.peek().kind == kind }

func (p *parser) accept(kind rune) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind rune) error {
	if !p.accept(kind) {
		return p.errorf("expected %q, found %s", string(kind), p.peek())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%q:%d: %s", p.expr, p.peek().offset+1, fmt.Sprintf(format, args...))
}

func (p *parser) parseType() (typegraph.Type, error) {
	p.accept('|')
	var members []typegraph.Type
	for {
		t, err := p.parsePostfix()
		if err != nil {
			return typegraph.Type{}, err
		}
		members = append(members, t)
		if !p.accept('|') {
			break
		}
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return p.g.Union(members...), nil
}

func (p *parser) parsePostfix() (typegraph.Type, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return t, err
	}
	for p.at('[') {
		p.next()
		if err := p.expect(']'); err != nil {
			return typegraph.Type{}, err
		}
		t = p.g.Array(t)
	}
	return t, nil
}

func (p *parser) parsePrimary() (typegraph.Type, error) {
	switch t := p.peek(); t.kind {
	case '(':
		start := p.pos
		if fn, err := p.parseFunc(); err == nil {
			return fn, nil
		}
		p.pos = start + 1
		inner, err := p.parseType()
		if err != nil {
			return inner, err
		}
		return inner, p.expect(')')

	case '{':
		p.next()
		props, err := p.parseMembers()
		if err != nil {
			return typegraph.Type{}, err
		}
		return p.g.Object(props...), nil

	case scanner.String:
		p.next()
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return typegraph.Type{}, p.errorf("invalid string %s", t.text)
		}
		return p.g.LiteralType(constant.MakeString(s)), nil

	case '-', scanner.Int, scanner.Float:
		return p.parseNumber()

	case scanner.Ident:
		return p.parseNamed()
	}
	return typegraph.Type{}, p.errorf("unexpected %s", p.peek())
}

func (p *parser) parseNumber() (typegraph.Type, error) {
	neg := p.accept('-')
	t := p.next()
	kind := token.INT
	switch t.kind {
	case scanner.Int:
	case scanner.Float:
		kind = token.FLOAT
	default:
		return typegraph.Type{}, p.errorf("expected number, found %s", t)
	}
	v := constant.MakeFromLiteral(t.text, kind, 0)
	if v.Kind() == constant.Unknown {
		return typegraph.Type{}, p.errorf("invalid number %s", t.text)
	}
	if neg {
		v = constant.UnaryOp(token.SUB, v, 0)
	}

	// A bigint literal is an integer immediately followed by n.
	if n := p.peek(); kind == token.INT && n.kind == scanner.Ident && n.text == "n" &&
		n.offset == t.offset+len(t.text) {
		p.next()
		return p.g.BigIntLiteral(v), nil
	}
	return p.g.LiteralType(v), nil
}

func (p *parser) parseNamed() (typegraph.Type, error) {
	name := p.next().text
	switch name {
	case "true", "false":
		return p.g.LiteralType(constant.MakeBool(name == "true")), nil
	case "bytes":
		return p.g.Shape("ArrayBuffer"), nil
	}
	if t, ok := p.g.Keyword(name); ok {
		return t, nil
	}
	if slices.Contains(scalarAliases, name) {
		return p.g.Link(name), nil
	}

	for p.at('.') {
		p.next()
		part := p.next()
		if part.kind != scanner.Ident {
			return typegraph.Type{}, p.errorf("expected identifier, found %s", part)
		}
		name += "." + part.text
	}

	if !p.at('<') {
		return p.u.Ref(name), nil
	}
	p.next()
	var args []typegraph.Type
	for {
		arg, err := p.parseType()
		if err != nil {
			return arg, err
		}
		args = append(args, arg)
		if !p.accept(',') {
			break
		}
	}
	if err := p.expect('>'); err != nil {
		return typegraph.Type{}, err
	}
	return p.instantiate(name, args)
}

func (p *parser) instantiate(name string, args []typegraph.Type) (typegraph.Type, error) {
	arity := map[string]int{
		"Rep": 1, "Opt": 1, "Stream": 1, "Link": 1, "Ext": 2, "ProtoMap": 2,
		"Array": 1, "ReadonlyArray": 1, "Set": 1, "Map": 2,
	}
	want, ok := arity[name]
	if !ok {
		return typegraph.Type{}, p.errorf("unknown generic type %s", name)
	}
	if len(args) != want {
		return typegraph.Type{}, p.errorf("%s takes %d type arguments, got %d", name, want, len(args))
	}
	switch name {
	case "Rep":
		return p.g.Rep(args[0]), nil
	case "Opt":
		return p.g.Opt(args[0]), nil
	case "Stream":
		return p.g.Stream(args[0]), nil
	case "Link":
		return p.g.marker(Prop{Name: "__protobuf_link", Type: args[0]}), nil
	case "Ext":
		return p.g.Ext(args[0], args[1]), nil
	case "ProtoMap":
		return p.g.ProtoMap(args[0], args[1]), nil
	default:
		return p.g.Generic(name, args...), nil
	}
}

func (p *parser) parseFunc() (typegraph.Type, error) {
	params, err := p.parseParams()
	if err != nil {
		return typegraph.Type{}, err
	}
	if !p.accept('=') || !p.accept('>') {
		return typegraph.Type{}, p.errorf("expected =>")
	}
	ret, err := p.parseType()
	if err != nil {
		return ret, err
	}
	return p.g.Func(ret, params...), nil
}

// parseParams parses a parenthesized parameter list.
func (p *parser) parseParams() ([]Param, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var params []Param
	for !p.accept(')') {
		if len(params) > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		name := p.next()
		if name.kind != scanner.Ident {
			return nil, p.errorf("expected parameter name, found %s", name)
		}
		param := Param{Name: name.text, Type: p.g.Primitive(typegraph.Any)}
		optional := p.accept('?')
		if p.accept(':') {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			param.Type = t
		}
		if optional {
			param.Type = p.g.Union(param.Type, p.g.Primitive(typegraph.Undefined))
		}
		params = append(params, param)
	}
	return params, nil
}

// parseMembers parses the members of an object literal, after its opening
// brace.
func (p *parser) parseMembers() ([]Prop, error) {
	var props []Prop
	for !p.accept('}') {
		prop, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
		if !p.accept(';') && !p.accept(',') && !p.at('}') {
			return nil, p.errorf("expected ; or }, found %s", p.peek())
		}
	}
	return props, nil
}

// parseMember parses one property or method.
func (p *parser) parseMember() (Prop, error) {
	var prop Prop
	switch name := p.next(); name.kind {
	case scanner.Ident:
		prop.Name = name.text
	case scanner.String:
		s, err := strconv.Unquote(name.text)
		if err != nil {
			return prop, p.errorf("invalid string %s", name.text)
		}
		prop.Name = s
	default:
		return prop, p.errorf("expected member name, found %s", name)
	}
	prop.Optional = p.accept('?')

	if p.at('(') {
		params, err := p.parseParams()
		if err != nil {
			return prop, err
		}
		ret := p.g.Primitive(typegraph.Void)
		if p.accept(':') {
			if ret, err = p.parseType(); err != nil {
				return prop, err
			}
		}
		prop.Type, prop.Method = p.g.Func(ret, params...), true
		return prop, nil
	}

	if err := p.expect(':'); err != nil {
		return prop, err
	}
	t, err := p.parseType()
	prop.Type = t
	return prop, err
}
