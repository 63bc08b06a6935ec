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
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bufbuild/typeproto/typegraph"
)

// LoadYAML reads a graph from a YAML document of the form
//
//	units:
//	  - path: api/users.ts
//	    package: api.users   # optional
//	    imports: [other.proto, "?weak.proto"]
//	    options: {go_package: example.com/api}
//	    declarations:
//	      - kind: interface   # or class, enum, type, namespace
//	        name: User
//	        doc: A user.
//	        options: ["deprecated=true"]
//	        extends: [Base]
//	        members:
//	          id: int64
//	          name?: string
//	          tags: {type: "string[]", doc: The tags.}
//	      - kind: enum
//	        name: Kind
//	        values: {ADMIN: 1, GUEST: 2}
//	      - kind: type
//	        name: Id
//	        type: fixed64
//	      - kind: namespace
//	        name: User
//	        declarations: [...]
//
// Member and alias types are type expressions, as accepted by
// [UnitBuilder.Parse]. Declarations are exported unless marked with
// "exported: false".
func LoadYAML(r io.Reader) (*Graph, []typegraph.Unit, error) {
	var doc yamlDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("memgraph: %w", err)
	}

	g := New()
	l := &yamlLoader{g: g}
	for _, yu := range doc.Units {
		if yu.Path == "" {
			return nil, nil, fmt.Errorf("memgraph: line %d: unit has no path", yu.line)
		}
		u := g.Unit(yu.Path)
		if yu.Package != "" {
			u.Package(yu.Package)
		}
		for _, imp := range yu.Imports {
			u.Import(imp)
		}
		if err := eachPair(&yu.Options, func(k, v *yaml.Node) error {
			u.Option(k.Value, scalarConstant(v))
			return nil
		}); err != nil {
			return nil, nil, l.wrap(yu.Path, err)
		}
		for i := range yu.Declarations {
			if err := l.declare(u, &yu.Declarations[i]); err != nil {
				return nil, nil, l.wrap(yu.Path, err)
			}
		}
	}

	// Bases are resolved once every unit is declared, so that they may be
	// declared in any order.
	for _, ext := range l.extends {
		for _, base := range ext.bases {
			t := ext.scope.Ref(base)
			if g.node(t).ref != "" {
				return nil, nil, fmt.Errorf("memgraph: %s:%d: unknown base type %q", ext.scope.root.path, ext.line, base)
			}
			ext.decl.Extend(t)
		}
	}
	return g, g.Units(), nil
}

type yamlDoc struct {
	Units []yamlUnit `yaml:"units"`
}

type yamlUnit struct {
	Path         string     `yaml:"path"`
	Package      string     `yaml:"package"`
	Imports      []string   `yaml:"imports"`
	Options      yaml.Node  `yaml:"options"`
	Declarations []yamlDecl `yaml:"declarations"`
	line         int
}

func (u *yamlUnit) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlUnit
	if err := value.Decode((*plain)(u)); err != nil {
		return err
	}
	u.line = value.Line
	return nil
}

type yamlDecl struct {
	Kind         string     `yaml:"kind"`
	Name         string     `yaml:"name"`
	Doc          string     `yaml:"doc"`
	Options      []string   `yaml:"options"`
	Extends      []string   `yaml:"extends"`
	Exported     *bool      `yaml:"exported"`
	Members      yaml.Node  `yaml:"members"`
	Values       yaml.Node  `yaml:"values"`
	Type         string     `yaml:"type"`
	Declarations []yamlDecl `yaml:"declarations"`
	line, column int
}

func (d *yamlDecl) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlDecl
	if err := value.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line, d.column = value.Line, value.Column
	return nil
}

type yamlMember struct {
	Type    string   `yaml:"type"`
	Doc     string   `yaml:"doc"`
	Options []string `yaml:"options"`
}

type yamlLoader struct {
	g       *Graph
	extends []pendingExtend
}

type pendingExtend struct {
	decl  *Decl
	scope *UnitBuilder
	bases []string
	line  int
}

func (l *yamlLoader) wrap(path string, err error) error {
	return fmt.Errorf("memgraph: %s:%w", path, err)
}

func (l *yamlLoader) declare(u *UnitBuilder, yd *yamlDecl) error {
	if yd.Name == "" {
		return fmt.Errorf("%d: %s declaration has no name", yd.line, yd.Kind)
	}

	var d *Decl
	switch yd.Kind {
	case "interface", "class":
		props, err := l.members(u, &yd.Members)
		if err != nil {
			return err
		}
		if yd.Kind == "class" {
			d = u.Class(yd.Name, props...)
		} else {
			d = u.Interface(yd.Name, props...)
		}
		if len(yd.Extends) > 0 {
			l.extends = append(l.extends, pendingExtend{decl: d, scope: u, bases: yd.Extends, line: yd.line})
		}

	case "enum":
		var members []Member
		if err := eachPair(&yd.Values, func(k, v *yaml.Node) error {
			members = append(members, Member{Name: k.Value, Value: scalarConstant(v)})
			return nil
		}); err != nil {
			return err
		}
		d = u.Enum(yd.Name, members...)

	case "type":
		t, err := u.Parse(yd.Type)
		if err != nil {
			return fmt.Errorf("%d: %w", yd.line, err)
		}
		d = u.Alias(yd.Name, t)

	case "namespace":
		ns := u.Namespace(yd.Name)
		for i := range yd.Declarations {
			if err := l.declare(ns, &yd.Declarations[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%d: unknown declaration kind %q", yd.line, yd.Kind)
	}

	d.At(yd.line, yd.column).Doc(strings.TrimSpace(yd.Doc))
	for _, opt := range yd.Options {
		d.Tag("option", opt)
	}
	if yd.Exported != nil && !*yd.Exported {
		d.Unexported()
	}
	return nil
}

func (l *yamlLoader) members(u *UnitBuilder, n *yaml.Node) ([]Prop, error) {
	var props []Prop
	err := eachPair(n, func(k, v *yaml.Node) error {
		prop := Prop{Name: k.Value, Line: k.Line}
		if name, ok := strings.CutSuffix(prop.Name, "?"); ok {
			prop.Name, prop.Optional = name, true
		}

		var ym yamlMember
		switch v.Kind {
		case yaml.ScalarNode:
			ym.Type = v.Value
		case yaml.MappingNode:
			if err := v.Decode(&ym); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%d: member %s must be a type or a mapping", v.Line, prop.Name)
		}

		t, err := u.Parse(ym.Type)
		if err != nil {
			return fmt.Errorf("%d: member %s: %w", v.Line, prop.Name, err)
		}
		prop.Type = t
		if raw := rawNode(t); raw != nil && len(raw.sigs) > 0 {
			prop.Method = true
		}
		prop.Doc = strings.TrimSpace(ym.Doc)
		for _, opt := range ym.Options {
			prop.Tags = append(prop.Tags, typegraph.DocTag{Name: "option", Text: opt})
		}
		props = append(props, prop)
		return nil
	})
	return props, err
}

// eachPair calls f for each key and value of a mapping node, in document
// order. A zero node is an empty mapping.
func eachPair(n *yaml.Node, f func(k, v *yaml.Node) error) error {
	if n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("%d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := f(n.Content[i], n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// scalarConstant converts a YAML scalar into a constant according to its
// resolved tag.
func scalarConstant(n *yaml.Node) constant.Value {
	text, neg := strings.CutPrefix(n.Value, "-")
	text = strings.TrimPrefix(text, "+")

	var v constant.Value
	switch n.ShortTag() {
	case "!!int":
		v = constant.MakeFromLiteral(text, token.INT, 0)
	case "!!float":
		v = constant.MakeFromLiteral(text, token.FLOAT, 0)
	case "!!bool":
		return constant.MakeBool(strings.EqualFold(n.Value, "true"))
	}
	if v == nil || v.Kind() == constant.Unknown {
		return constant.MakeString(n.Value)
	}
	if neg {
		v = constant.UnaryOp(token.SUB, v, 0)
	}
	return v
}
