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

// Package printer renders schema IR as .proto source text.
//
// The output is meant to be read, and to be fed back to protoc; it carries
// the same schema as the descriptors the fdp package emits for the file.
package printer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bufbuild/typeproto/ir"
)

// Header is the first line of every printed file.
const Header = "// Code generated by typeproto. DO NOT EDIT."

// Print writes the text form of file to w.
func Print(w io.Writer, file *ir.File) error {
	_, err := io.WriteString(w, String(file))
	return err
}

// String returns the text form of file.
func String(file *ir.File) string {
	p := &printer{file: file}
	p.printFile()
	return p.String()
}

// printer is the state for printing a single file.
type printer struct {
	strings.Builder
	file   *ir.File
	indent int
}

// line writes a single indented line. An empty line is not indented.
func (p *printer) line(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if text != "" {
		p.WriteString(strings.Repeat("  ", p.indent))
		p.WriteString(text)
	}
	p.WriteByte('\n')
}

// block prints a braced block, with body indented one level.
func (p *printer) block(head string, body func()) {
	p.line("%s {", head)
	p.indent++
	body()
	p.indent--
	p.line("}")
}

func (p *printer) comment(text string) {
	if text == "" {
		return
	}
	for line := range strings.SplitSeq(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			p.line("//")
			continue
		}
		p.line("// %s", line)
	}
}

func (p *printer) printFile() {
	p.line("%s", Header)
	p.comment(p.file.Comment)
	p.line(`syntax = "proto3";`)
	if p.file.Package != "" {
		p.line("package %s;", p.file.Package)
	}
	p.optionLines(&p.file.Options)
	for _, imp := range p.file.Imports {
		var flag string
		switch {
		case imp.Weak:
			flag = "weak "
		case imp.Public:
			flag = "public "
		}
		p.line("import %s%s;", flag, ir.Quote(imp.Path))
	}

	for _, stmt := range p.file.Body().Statements() {
		if def, ok := stmt.(ir.TypeDef); ok {
			p.line("")
			p.def(def)
		}
	}
}

func (p *printer) def(def ir.TypeDef) {
	switch def := def.(type) {
	case *ir.Message:
		p.message(def)
	case *ir.Enum:
		p.enum(def)
	case *ir.Service:
		p.service(def)
	}
}

func (p *printer) message(m *ir.Message) {
	p.comment(m.Comment)
	p.block("message "+m.Name, func() {
		p.optionLines(&m.Options)
		stmts := m.Body().Statements()
		for _, stmt := range stmts {
			if def, ok := stmt.(ir.TypeDef); ok {
				p.def(def)
			}
		}
		for _, stmt := range stmts {
			switch stmt := stmt.(type) {
			case *ir.Field:
				p.field(stmt)
			case *ir.Reserved:
				p.reserved(stmt)
			}
		}
	})
}

func (p *printer) field(f *ir.Field) {
	p.comment(f.Comment)
	if oneof, ok := f.Type.(*ir.Oneof); ok {
		p.block("oneof "+f.Name, func() {
			p.optionLines(&f.Options)
			for _, member := range oneof.Fields {
				p.field(member)
			}
		})
		return
	}
	p.line("%s %s = %d%s;", p.typeName(f.Type), f.Name, f.Number, compactOptions(&f.Options))
}

func (p *printer) reserved(r *ir.Reserved) {
	if len(r.Ranges) > 0 {
		ranges := make([]string, len(r.Ranges))
		for i, rng := range r.Ranges {
			ranges[i] = strconv.Itoa(int(rng.Start))
			if rng.End != rng.Start {
				ranges[i] += " to " + strconv.Itoa(int(rng.End))
			}
		}
		p.line("reserved %s;", strings.Join(ranges, ", "))
	}
	if len(r.Names) > 0 {
		names := make([]string, len(r.Names))
		for i, name := range r.Names {
			names[i] = ir.Quote(name)
		}
		p.line("reserved %s;", strings.Join(names, ", "))
	}
}

func (p *printer) enum(e *ir.Enum) {
	p.comment(e.Comment)
	p.block("enum "+e.Name, func() {
		p.optionLines(&e.Options)
		for _, stmt := range e.Body().Statements() {
			switch stmt := stmt.(type) {
			case *ir.EnumValue:
				p.comment(stmt.Comment)
				p.line("%s = %d%s;", stmt.Name, stmt.Number, compactOptions(&stmt.Options))
			case *ir.Reserved:
				p.reserved(stmt)
			}
		}
	})
}

func (p *printer) service(s *ir.Service) {
	p.comment(s.Comment)
	p.block("service "+s.Name, func() {
		p.optionLines(&s.Options)
		for _, stmt := range s.Body().Statements() {
			f, ok := stmt.(*ir.Field)
			if !ok {
				continue
			}
			rpc, ok := f.Type.(*ir.RPC)
			if !ok {
				continue
			}
			p.comment(f.Comment)
			head := fmt.Sprintf("rpc %s (%s) returns (%s)", f.Name, p.typeName(rpc.Input), p.typeName(rpc.Output))
			if f.Options.Len() == 0 {
				p.line("%s;", head)
				continue
			}
			p.block(head, func() { p.optionLines(&f.Options) })
		}
	})
}

// optionLines prints options as option statements.
func (p *printer) optionLines(opts *ir.Options) {
	for name, value := range opts.All() {
		p.line("option %s = %s;", name, value)
	}
}

// compactOptions renders options in the bracketed form used after fields
// and enum values, with a leading space. It returns "" if there are none.
func compactOptions(opts *ir.Options) string {
	if opts.Len() == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString(" [")
	first := true
	for name, value := range opts.All() {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&buf, "%s = %s", name, value)
	}
	buf.WriteByte(']')
	return buf.String()
}

// typeName renders a type expression. Definitions in the file's own package
// are named relative to it.
func (p *printer) typeName(e ir.TypeExpr) string {
	switch e := e.(type) {
	case *ir.Builtin:
		return e.Name()
	case ir.TypeDef:
		if f := ir.FileOf(e); f != nil && f.Package == p.file.Package {
			return ir.RelativeName(e)
		}
		return ir.FullName(e)
	case *ir.Ref:
		return strings.TrimPrefix(e.Name, ".")
	case *ir.Repeated:
		return "repeated " + p.typeName(e.Elem)
	case *ir.Optional:
		return "optional " + p.typeName(e.Elem)
	case *ir.Stream:
		return "stream " + p.typeName(e.Elem)
	case *ir.Map:
		return fmt.Sprintf("map<%s, %s>", p.typeName(e.Key), p.typeName(e.Value))
	default:
		return ir.TypeName(e)
	}
}
