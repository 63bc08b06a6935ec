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

// Package gotypes builds a type graph from type-checked Go packages.
//
// Each Go file becomes one compilation unit. Structs become messages,
// interfaces with methods become services, and defined integer types with
// constants become enums. Struct tags of the form `proto:"name$3"` rename a
// field and fix its number, and comment directives attach file and
// declaration options:
//
//	//proto:package acme.users
//	//proto:option java_package=com.acme.users
package gotypes

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/bufbuild/typeproto/internal/cases"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/typegraph/memgraph"
)

const (
	directivePrefix = "//proto:"
	tagKey          = "proto"
)

// LoadMode is the mode [Load] loads packages with.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedModule

// Load loads the Go packages matching patterns and converts them with [New].
//
// Packages that fail to load or type-check are reported together.
func Load(ctx context.Context, dir string, patterns ...string) (*memgraph.Graph, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    LoadMode,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages match %s", strings.Join(patterns, " "))
	}
	var errs []error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, err := range pkg.Errors {
			errs = append(errs, fmt.Errorf("package %s: %w", pkg.PkgPath, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return New(pkgs)
}

// New converts type-checked packages into a type graph. Every package must
// carry its syntax trees and type information.
func New(pkgs []*packages.Package) (*memgraph.Graph, error) {
	c := &converter{
		g:     memgraph.New(),
		units: make(map[*types.TypeName]*memgraph.UnitBuilder),
		docs:  make(map[token.Pos]*ast.CommentGroup),
		enums: make(map[*types.TypeName][]*types.Const),
	}
	for _, pkg := range pkgs {
		if pkg.Types == nil || pkg.TypesInfo == nil {
			return nil, fmt.Errorf("package %s was loaded without type information", pkg.PkgPath)
		}
		c.scan(pkg)
	}
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			c.declareFile(pkg, file)
		}
	}
	return c.g, nil
}

type converter struct {
	g    *memgraph.Graph
	fset *token.FileSet

	// The unit each named type is declared in.
	units map[*types.TypeName]*memgraph.UnitBuilder
	// Doc comments by the position of the identifier they document.
	docs  map[token.Pos]*ast.CommentGroup
	enums map[*types.TypeName][]*types.Const

	files []fileUnit
}

type fileUnit struct {
	file *ast.File
	unit *memgraph.UnitBuilder
}

// scan creates the units of pkg and records where each of its types is
// declared, so that declarations may refer to types in any file.
func (c *converter) scan(pkg *packages.Package) {
	c.fset = pkg.Fset
	for _, file := range pkg.Syntax {
		u := c.g.Unit(unitPath(pkg, c.fset.Position(file.Package).Filename))
		c.files = append(c.files, fileUnit{file, u})

		ast.Inspect(file, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.GenDecl:
				for _, spec := range n.Specs {
					c.recordSpec(pkg, u, n, spec)
				}
			case *ast.Field:
				for _, name := range n.Names {
					c.docs[name.Pos()] = n.Doc
				}
			}
			return true
		})
	}

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		k, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := k.Type().(*types.Named)
		if !ok || named.Obj().Pkg() != pkg.Types {
			continue
		}
		c.enums[named.Obj()] = append(c.enums[named.Obj()], k)
	}
	for _, consts := range c.enums {
		slices.SortFunc(consts, func(a, b *types.Const) int {
			return cmp.Compare(a.Pos(), b.Pos())
		})
	}
}

func (c *converter) recordSpec(pkg *packages.Package, u *memgraph.UnitBuilder, decl *ast.GenDecl, spec ast.Spec) {
	doc := func(d *ast.CommentGroup) *ast.CommentGroup {
		if d == nil && len(decl.Specs) == 1 {
			return decl.Doc
		}
		return d
	}
	switch spec := spec.(type) {
	case *ast.TypeSpec:
		c.docs[spec.Name.Pos()] = doc(spec.Doc)
		if tn, ok := pkg.TypesInfo.Defs[spec.Name].(*types.TypeName); ok {
			c.units[tn] = u
		}
	case *ast.ValueSpec:
		for _, name := range spec.Names {
			c.docs[name.Pos()] = doc(spec.Doc)
		}
	}
}

func unitPath(pkg *packages.Package, filename string) string {
	if pkg.Module != nil && pkg.Module.Dir != "" {
		if rel, err := filepath.Rel(pkg.Module.Dir, filename); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return path.Join(pkg.Name, filepath.Base(filename))
}

func (c *converter) declareFile(pkg *packages.Package, file *ast.File) {
	var u *memgraph.UnitBuilder
	for _, fu := range c.files {
		if fu.file == file {
			u = fu.unit
		}
	}
	c.fileDirectives(u, file.Doc)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			spec := spec.(*ast.TypeSpec)
			tn, ok := pkg.TypesInfo.Defs[spec.Name].(*types.TypeName)
			if !ok || spec.TypeParams != nil {
				continue
			}
			d := c.declare(u, tn)
			if d == nil {
				continue
			}
			pos := c.fset.Position(spec.Name.Pos())
			d.At(pos.Line, pos.Column)
			text, tags := c.comment(spec.Name.Pos())
			d.Doc(text)
			for _, tag := range tags {
				d.Tag(tag.Name, tag.Text)
			}
			if !tn.Exported() {
				d.Unexported()
			}
		}
	}
}

func (c *converter) declare(u *memgraph.UnitBuilder, tn *types.TypeName) *memgraph.Decl {
	name := tn.Name()
	if tn.IsAlias() {
		return u.Alias(name, c.typ(types.Unalias(tn.Type())))
	}
	switch under := tn.Type().Underlying().(type) {
	case *types.Struct:
		return u.Interface(name, c.fields(under, nil)...)
	case *types.Interface:
		if under.NumMethods() == 0 {
			return nil
		}
		return u.Interface(name, c.methods(under)...)
	}
	if consts := c.enums[tn]; len(consts) > 0 {
		members := make([]memgraph.Member, 0, len(consts))
		for _, k := range consts {
			doc, _ := c.comment(k.Pos())
			members = append(members, memgraph.Member{
				Name:  cases.Enum.Convert(k.Name()),
				Value: k.Val(),
				Doc:   doc,
			})
		}
		return u.Enum(name, members...)
	}
	return u.Alias(name, c.typ(tn.Type().Underlying()))
}

// fields appends the exported fields of s to props. Fields of embedded
// structs are promoted.
func (c *converter) fields(s *types.Struct, props []memgraph.Prop) []memgraph.Prop {
	for i := range s.NumFields() {
		f := s.Field(i)
		tag, hasTag := reflect.StructTag(s.Tag(i)).Lookup(tagKey)
		if tag == "-" {
			continue
		}
		if f.Embedded() && !hasTag {
			t := f.Type()
			if ptr, ok := t.(*types.Pointer); ok {
				t = ptr.Elem()
			}
			if embedded, ok := t.Underlying().(*types.Struct); ok {
				props = c.fields(embedded, props)
				continue
			}
		}
		if !f.Exported() {
			continue
		}

		name := cases.Snake.Convert(f.Name())
		if tag != "" {
			name = tag
		}
		doc, tags := c.comment(f.Pos())
		props = append(props, memgraph.Prop{
			Name: name,
			Type: c.typ(f.Type()),
			Doc:  doc,
			Tags: tags,
			Line: c.fset.Position(f.Pos()).Line,
		})
	}
	return props
}

// methods converts the methods of an interface into callable properties,
// in the order they are written.
func (c *converter) methods(iface *types.Interface) []memgraph.Prop {
	funcs := make([]*types.Func, 0, iface.NumMethods())
	for i := range iface.NumMethods() {
		funcs = append(funcs, iface.Method(i))
	}
	slices.SortFunc(funcs, func(a, b *types.Func) int {
		return cmp.Compare(a.Pos(), b.Pos())
	})

	props := make([]memgraph.Prop, 0, len(funcs))
	for _, fn := range funcs {
		if !fn.Exported() {
			continue
		}
		doc, tags := c.comment(fn.Pos())
		props = append(props, memgraph.Prop{
			Name:   fn.Name(),
			Type:   c.signature(fn.Type().(*types.Signature)),
			Method: true,
			Doc:    doc,
			Tags:   tags,
			Line:   c.fset.Position(fn.Pos()).Line,
		})
	}
	return props
}

// signature converts a method signature. A leading context.Context and a
// trailing error are dropped, and pointers are taken to be the messages
// they point to.
func (c *converter) signature(sig *types.Signature) typegraph.Type {
	params := sig.Params()
	var ps []memgraph.Param
	for i := range params.Len() {
		p := params.At(i)
		if i == 0 && isNamed(p.Type(), "context", "Context") {
			continue
		}
		ps = append(ps, memgraph.Param{Name: p.Name(), Type: c.typ(deref(p.Type()))})
	}

	var results []*types.Var
	for i := range sig.Results().Len() {
		results = append(results, sig.Results().At(i))
	}
	if n := len(results); n > 0 && isNamed(results[n-1].Type(), "", "error") {
		results = results[:n-1]
	}

	var ret typegraph.Type
	switch len(results) {
	case 0:
		ret = c.g.Primitive(typegraph.Void)
	case 1:
		ret = c.typ(deref(results[0].Type()))
	default:
		var props []memgraph.Prop
		for i, r := range results {
			name := r.Name()
			if name == "" {
				name = "r" + strconv.Itoa(i)
			}
			props = append(props, memgraph.Prop{Name: name, Type: c.typ(r.Type())})
		}
		ret = c.g.Object(props...)
	}
	return c.g.Func(ret, ps...)
}

func (c *converter) typ(t types.Type) typegraph.Type {
	g := c.g
	switch t := t.(type) {
	case *types.Alias:
		return c.typ(types.Unalias(t))
	case *types.Named:
		switch {
		case isNamed(t, "time", "Time"):
			return g.Shape("Date")
		case isNamed(t, "time", "Duration"):
			return g.Link("google.protobuf.Duration")
		}
		if u, ok := c.units[t.Obj()]; ok && t.TypeArgs().Len() == 0 {
			return u.Ref(t.Obj().Name())
		}
		if _, ok := t.Underlying().(*types.Basic); ok {
			return c.typ(t.Underlying())
		}
		return g.Primitive(typegraph.Any)
	case *types.Basic:
		return c.basic(t)
	case *types.Pointer:
		return g.Union(c.typ(t.Elem()), g.Primitive(typegraph.Null))
	case *types.Slice:
		if isByte(t.Elem()) {
			return g.Shape("Uint8Array")
		}
		return g.Array(c.typ(t.Elem()))
	case *types.Array:
		if isByte(t.Elem()) {
			return g.Shape("Uint8Array")
		}
		return g.Array(c.typ(t.Elem()))
	case *types.Map:
		return g.Generic("Map", c.typ(t.Key()), c.typ(t.Elem()))
	case *types.Chan:
		return g.Stream(c.typ(deref(t.Elem())))
	case *types.Struct:
		return g.Object(c.fields(t, nil)...)
	case *types.Signature:
		return c.signature(t)
	}
	return g.Primitive(typegraph.Any)
}

func (c *converter) basic(t *types.Basic) typegraph.Type {
	g := c.g
	switch t.Kind() {
	case types.String, types.UntypedString:
		return g.Primitive(typegraph.String)
	case types.Bool, types.UntypedBool:
		return g.Primitive(typegraph.Boolean)
	case types.Float64, types.UntypedFloat:
		return g.Primitive(typegraph.Number)
	case types.Float32:
		return g.Link("float")
	case types.Int, types.Int64, types.UntypedInt:
		return g.Link("int64")
	case types.Int8, types.Int16, types.Int32, types.UntypedRune:
		return g.Link("int32")
	case types.Uint, types.Uint64, types.Uintptr:
		return g.Link("uint64")
	case types.Uint8, types.Uint16, types.Uint32:
		return g.Link("uint32")
	}
	return g.Primitive(typegraph.Any)
}

// comment returns the doc comment of the identifier at pos, without the
// directives it contains, and the options those directives set.
func (c *converter) comment(pos token.Pos) (string, []typegraph.DocTag) {
	cg := c.docs[pos]
	if cg == nil {
		return "", nil
	}
	var tags []typegraph.DocTag
	for _, d := range directives(cg) {
		if d.name == "option" {
			tags = append(tags, typegraph.DocTag{Name: "option", Text: d.text})
		}
	}
	return strings.TrimSpace(cg.Text()), tags
}

// fileDirectives applies the directives in the doc comment of a file's
// package clause.
func (c *converter) fileDirectives(u *memgraph.UnitBuilder, cg *ast.CommentGroup) {
	for _, d := range directives(cg) {
		switch d.name {
		case "package":
			u.Package(d.text)
		case "import":
			u.Import(d.text)
		case "option":
			name, value, _ := strings.Cut(d.text, "=")
			u.Option(strings.TrimSpace(name), optionValue(strings.TrimSpace(value)))
		}
	}
}

type directive struct {
	name, text string
}

// directives returns the //proto: lines of a comment group. CommentGroup.Text
// drops these, since they look like tool directives.
func directives(cg *ast.CommentGroup) []directive {
	if cg == nil {
		return nil
	}
	var out []directive
	for _, line := range cg.List {
		rest, ok := strings.CutPrefix(line.Text, directivePrefix)
		if !ok {
			continue
		}
		name, text, _ := strings.Cut(rest, " ")
		out = append(out, directive{name: name, text: strings.TrimSpace(text)})
	}
	return out
}

// optionValue parses the value of a file option directive. Anything that is
// not a bool, a number or a quoted string is taken as a bare string.
func optionValue(text string) constant.Value {
	switch text {
	case "true":
		return constant.MakeBool(true)
	case "false":
		return constant.MakeBool(false)
	}
	if s, err := strconv.Unquote(text); err == nil {
		return constant.MakeString(s)
	}
	for _, tok := range []token.Token{token.INT, token.FLOAT} {
		if v := constant.MakeFromLiteral(text, tok, 0); v.Kind() != constant.Unknown {
			return v
		}
	}
	return constant.MakeString(text)
}

func deref(t types.Type) types.Type {
	if ptr, ok := t.(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

func isByte(t types.Type) bool {
	b, ok := t.(*types.Basic)
	return ok && b.Kind() == types.Uint8
}

// isNamed returns whether t is the named type pkg.name. An empty pkg refers
// to the universe scope.
func isNamed(t types.Type, pkg, name string) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	if obj.Name() != name {
		return false
	}
	if obj.Pkg() == nil {
		return pkg == ""
	}
	return obj.Pkg().Path() == pkg
}
