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

package fdp

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/internal"
	"github.com/bufbuild/typeproto/internal/cases"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/options"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Names of the options that set descriptor fields, rather than being
// encoded into the options message.
const (
	jsonNameOption     = "json_name"
	defaultValueOption = "default_value"
)

type generator struct {
	registry          *options.Registry
	includeSourceInfo bool
	exclude           func(*ir.File) bool

	currentFile    *ir.File
	path           *path
	sourceCodeInfo *descriptorpb.SourceCodeInfo

	errs []error
}

func (g *generator) errorf(pos typegraph.Location, format string, args ...any) {
	if pos.Unit == "" {
		pos.Unit = g.currentFile.Source
	}
	g.errs = append(g.errs, reporter.Errorf(pos, format, args...))
}

func (g *generator) file(file *ir.File, fdp *descriptorpb.FileDescriptorProto) {
	g.currentFile = file
	g.path = new(path)
	g.sourceCodeInfo = nil

	if file.External {
		if file.Descriptor == nil {
			g.errorf(typegraph.Location{Unit: file.Path}, "external file has no descriptor")
			return
		}
		proto.Merge(fdp, clone(file.Descriptor))
		return
	}

	fdp.Name = addr(file.Path)
	if g.includeSourceInfo {
		g.sourceCodeInfo = new(descriptorpb.SourceCodeInfo)
		fdp.SourceCodeInfo = g.sourceCodeInfo
		g.addSourceLocation(typegraph.Location{Unit: file.Source}, file.Comment)
	}

	if file.Package != "" {
		fdp.Package = addr(file.Package)
	}
	fdp.Syntax = addr("proto3")

	for i, imp := range file.Imports {
		fdp.Dependency = append(fdp.Dependency, imp.Path)
		if imp.Public {
			fdp.PublicDependency = append(fdp.PublicDependency, int32(i))
		}
		if imp.Weak {
			fdp.WeakDependency = append(fdp.WeakDependency, int32(i))
		}
	}

	var msgIndex, enumIndex, serviceIndex int32
	for _, stmt := range file.Body().Statements() {
		switch def := stmt.(type) {
		case *ir.Message:
			mdp := new(descriptorpb.DescriptorProto)
			fdp.MessageType = append(fdp.MessageType, mdp)
			g.message(def, mdp, internal.FileMessagesTag, msgIndex)
			msgIndex++
		case *ir.Enum:
			edp := new(descriptorpb.EnumDescriptorProto)
			fdp.EnumType = append(fdp.EnumType, edp)
			g.enum(def, edp, internal.FileEnumsTag, enumIndex)
			enumIndex++
		case *ir.Service:
			sdp := new(descriptorpb.ServiceDescriptorProto)
			fdp.Service = append(fdp.Service, sdp)
			g.service(def, sdp, internal.FileServicesTag, serviceIndex)
			serviceIndex++
		}
	}

	if file.Options.Len() > 0 {
		fdp.Options = new(descriptorpb.FileOptions)
		g.options(options.File, &file.Options, fdp.Options, typegraph.Location{Unit: file.Source})
	}
}

func (g *generator) message(msg *ir.Message, mdp *descriptorpb.DescriptorProto, sourcePath ...int32) {
	reset := g.path.with(sourcePath...)
	defer reset()

	g.addSourceLocation(msg.Pos, msg.Comment)
	mdp.Name = addr(msg.Name)

	// Fields that get a synthetic oneof, once all of the real ones are added.
	var optionals []*descriptorpb.FieldDescriptorProto
	addField := func(f *ir.Field, oneofIndex *int32) {
		fd := new(descriptorpb.FieldDescriptorProto)
		index := int32(len(mdp.Field))
		mdp.Field = append(mdp.Field, fd)
		fd.OneofIndex = oneofIndex

		reset := g.path.with(internal.MessageFieldsTag, index)
		defer reset()
		g.addSourceLocation(f.Pos, f.Comment)
		if g.field(msg, mdp, f, fd) && oneofIndex == nil {
			optionals = append(optionals, fd)
		}
	}

	for _, stmt := range msg.Body().Statements() {
		switch stmt := stmt.(type) {
		case *ir.Message:
			nested := new(descriptorpb.DescriptorProto)
			mdp.NestedType = append(mdp.NestedType, nested)
			g.message(stmt, nested, internal.MessageNestedMessagesTag, int32(len(mdp.NestedType)-1))

		case *ir.Enum:
			edp := new(descriptorpb.EnumDescriptorProto)
			mdp.EnumType = append(mdp.EnumType, edp)
			g.enum(stmt, edp, internal.MessageEnumsTag, int32(len(mdp.EnumType)-1))

		case *ir.Reserved:
			for _, r := range stmt.Ranges {
				mdp.ReservedRange = append(mdp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
					Start: addr(r.Start),
					End:   addr(r.End + 1), // Exclusive.
				})
			}
			mdp.ReservedName = append(mdp.ReservedName, stmt.Names...)

		case *ir.Field:
			oneof, ok := stmt.Type.(*ir.Oneof)
			if !ok {
				addField(stmt, nil)
				continue
			}

			index := int32(len(mdp.OneofDecl))
			odp := &descriptorpb.OneofDescriptorProto{Name: addr(stmt.Name)}
			mdp.OneofDecl = append(mdp.OneofDecl, odp)
			reset := g.path.with(internal.MessageOneofsTag, index)
			g.addSourceLocation(stmt.Pos, stmt.Comment)
			reset()
			if stmt.Options.Len() > 0 {
				odp.Options = new(descriptorpb.OneofOptions)
				g.options(options.Oneof, &stmt.Options, odp.Options, stmt.Pos)
			}

			for _, member := range oneof.Fields {
				switch member.Type.(type) {
				case *ir.Repeated, *ir.Map:
					g.errorf(member.Pos, "oneof member %s.%s cannot be %s", msg.Name, member.Name, ir.TypeName(member.Type))
					continue
				case *ir.Optional:
					// Every oneof member already has explicit presence.
					unwrapped := *member
					unwrapped.Type = member.Type.(*ir.Optional).Elem
					member = &unwrapped
				}
				addField(member, addr(index))
			}
		}
	}

	// Only now that we have added all of the normal oneofs do we add the
	// synthetic oneofs.
	for _, fd := range optionals {
		fd.Proto3Optional = addr(true)
		fd.OneofIndex = addr(int32(len(mdp.OneofDecl)))
		mdp.OneofDecl = append(mdp.OneofDecl, &descriptorpb.OneofDescriptorProto{
			Name: addr("_" + fd.GetName()),
		})
	}

	if msg.Options.Len() > 0 {
		mdp.Options = new(descriptorpb.MessageOptions)
		g.options(options.Message, &msg.Options, mdp.Options, msg.Pos)
	}
}

// field fills in fd for f, a field of msg. It returns whether the field is
// a proto3 optional field.
func (g *generator) field(
	msg *ir.Message,
	mdp *descriptorpb.DescriptorProto,
	f *ir.Field,
	fd *descriptorpb.FieldDescriptorProto,
) bool {
	fd.Name = addr(f.Name)
	if f.Number == 0 {
		g.errorf(f.Pos, "field %s.%s has no number", msg.Name, f.Name)
	}
	fd.Number = addr(f.Number)
	fd.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()

	typ := f.Type
	var optional bool
	switch t := typ.(type) {
	case *ir.Optional:
		optional = true
		typ = t.Elem
	case *ir.Repeated:
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
		typ = t.Elem
	case *ir.Map:
		entry := g.mapEntry(msg, f, t)
		if entry != nil {
			mdp.NestedType = append(mdp.NestedType, entry)
			fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fd.TypeName = addr("." + ir.FullName(msg) + "." + entry.GetName())
		}
		typ = nil
	}
	if typ != nil {
		g.fieldType(msg, f, typ, fd)
	}

	fd.JsonName = addr(cases.JSONName(f.Name))
	if v, ok := f.Options.Get(jsonNameOption); ok {
		if name, ok := v.AsString(); ok {
			fd.JsonName = addr(name)
		} else {
			g.errorf(f.Pos, "json_name of %s.%s must be a string, got %s", msg.Name, f.Name, v)
		}
	}
	if v, ok := f.Options.Get(defaultValueOption); ok {
		fd.DefaultValue = addr(defaultText(v))
	}

	if opts := f.Options.Without(jsonNameOption, defaultValueOption); opts.Len() > 0 {
		fd.Options = new(descriptorpb.FieldOptions)
		g.options(options.Field, &opts, fd.Options, f.Pos)
	}
	return optional
}

// fieldType sets the type of fd to typ, which must be a single value.
func (g *generator) fieldType(msg *ir.Message, f *ir.Field, typ ir.TypeExpr, fd *descriptorpb.FieldDescriptorProto) {
	switch t := typ.(type) {
	case *ir.Builtin:
		fd.Type = t.Kind().Enum()
	case *ir.Message:
		if name, ok := g.typeName(f.Pos, t); ok {
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fd.TypeName = addr(name)
		}
	case *ir.Enum:
		if name, ok := g.typeName(f.Pos, t); ok {
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
			fd.TypeName = addr(name)
		}
	case *ir.Ref:
		g.errorf(f.Pos, "field %s.%s refers to unresolved type %s", msg.Name, f.Name, t.Name)
	case *ir.Repeated, *ir.Optional, *ir.Map, *ir.Oneof:
		g.errorf(f.Pos, "field %s.%s has nested type %s", msg.Name, f.Name, ir.TypeName(f.Type))
	default:
		g.errorf(f.Pos, "%s cannot be used as a field type, in %s.%s", ir.TypeName(typ), msg.Name, f.Name)
	}
}

// typeName returns the absolute name of a definition, which must be placed
// in some file.
func (g *generator) typeName(pos typegraph.Location, def ir.TypeDef) (string, bool) {
	if ir.FileOf(def) == nil {
		g.errorf(pos, "type %s is not placed in any file", def.DeclName())
		return "", false
	}
	return "." + ir.FullName(def), true
}

// mapEntry synthesizes the entry message for a map field.
func (g *generator) mapEntry(msg *ir.Message, f *ir.Field, m *ir.Map) *descriptorpb.DescriptorProto {
	if !m.Key.Comparable() {
		g.errorf(f.Pos, "map key of %s.%s must be an integer, bool or string, got %s", msg.Name, f.Name, ir.TypeName(m.Key))
		return nil
	}
	if !m.Value.Normal() {
		g.errorf(f.Pos, "map value of %s.%s must be a single value, got %s", msg.Name, f.Name, ir.TypeName(m.Value))
		return nil
	}

	entry := &descriptorpb.DescriptorProto{
		Name:    addr(cases.MapEntryName(f.Name)),
		Options: &descriptorpb.MessageOptions{MapEntry: addr(true)},
	}
	for i, part := range []struct {
		name string
		typ  ir.TypeExpr
	}{{"key", m.Key}, {"value", m.Value}} {
		fd := &descriptorpb.FieldDescriptorProto{
			Name:     addr(part.name),
			Number:   addr(int32(i + 1)),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			JsonName: addr(part.name),
		}
		g.fieldType(msg, f, part.typ, fd)
		entry.Field = append(entry.Field, fd)
	}
	return entry
}

// defaultText renders a default_value option the way descriptors spell it.
func defaultText(v ir.Literal) string {
	switch v.Kind() {
	case ir.StringLiteral:
		s, _ := v.AsString()
		return s
	case ir.BytesLiteral:
		b, _ := v.AsBytes()
		return ir.CEscape(string(b))
	case ir.EnumLiteral:
		if _, name, _ := v.AsEnum(); name != "" {
			return name
		}
	}
	return v.String()
}

func (g *generator) enum(e *ir.Enum, edp *descriptorpb.EnumDescriptorProto, sourcePath ...int32) {
	topLevelReset := g.path.with(sourcePath...)
	defer topLevelReset()

	g.addSourceLocation(e.Pos, e.Comment)
	edp.Name = addr(e.Name)

	for _, stmt := range e.Body().Statements() {
		switch stmt := stmt.(type) {
		case *ir.EnumValue:
			evd := &descriptorpb.EnumValueDescriptorProto{
				Name:   addr(stmt.Name),
				Number: addr(stmt.Number),
			}
			reset := g.path.with(internal.EnumValuesTag, int32(len(edp.Value)))
			g.addSourceLocation(stmt.Pos, stmt.Comment)
			reset()
			edp.Value = append(edp.Value, evd)
			if stmt.Options.Len() > 0 {
				evd.Options = new(descriptorpb.EnumValueOptions)
				g.options(options.EnumValue, &stmt.Options, evd.Options, stmt.Pos)
			}

		case *ir.Reserved:
			for _, r := range stmt.Ranges {
				edp.ReservedRange = append(edp.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
					Start: addr(r.Start),
					End:   addr(r.End), // Inclusive, not exclusive like the one for messages!
				})
			}
			edp.ReservedName = append(edp.ReservedName, stmt.Names...)
		}
	}

	if e.Options.Len() > 0 {
		edp.Options = new(descriptorpb.EnumOptions)
		g.options(options.Enum, &e.Options, edp.Options, e.Pos)
	}
}

func (g *generator) service(s *ir.Service, sdp *descriptorpb.ServiceDescriptorProto, sourcePath ...int32) {
	topLevelReset := g.path.with(sourcePath...)
	defer topLevelReset()

	g.addSourceLocation(s.Pos, s.Comment)
	sdp.Name = addr(s.Name)

	for _, stmt := range s.Body().Statements() {
		f, ok := stmt.(*ir.Field)
		if !ok {
			continue
		}
		rpc, ok := f.Type.(*ir.RPC)
		if !ok {
			g.errorf(f.Pos, "member %s of service %s is not a method", f.Name, s.Name)
			continue
		}

		mdp := &descriptorpb.MethodDescriptorProto{Name: addr(f.Name)}
		reset := g.path.with(internal.ServiceMethodsTag, int32(len(sdp.Method)))
		g.addSourceLocation(f.Pos, f.Comment)
		reset()
		sdp.Method = append(sdp.Method, mdp)

		var stream bool
		mdp.InputType, stream = g.methodType(s, f, "input", rpc.Input)
		if stream {
			mdp.ClientStreaming = addr(true)
		}
		mdp.OutputType, stream = g.methodType(s, f, "output", rpc.Output)
		if stream {
			mdp.ServerStreaming = addr(true)
		}

		if f.Options.Len() > 0 {
			mdp.Options = new(descriptorpb.MethodOptions)
			g.options(options.Method, &f.Options, mdp.Options, f.Pos)
		}
	}

	if s.Options.Len() > 0 {
		sdp.Options = new(descriptorpb.ServiceOptions)
		g.options(options.Service, &s.Options, sdp.Options, s.Pos)
	}
}

// methodType returns the absolute name of a method's input or output, and
// whether it is streamed.
func (g *generator) methodType(s *ir.Service, f *ir.Field, what string, typ ir.TypeExpr) (*string, bool) {
	var stream bool
	if st, ok := typ.(*ir.Stream); ok {
		stream, typ = true, st.Elem
	}
	msg, ok := typ.(*ir.Message)
	if !ok {
		g.errorf(f.Pos, "%s of method %s.%s must be a message, got %s", what, s.Name, f.Name, ir.TypeName(typ))
		return nil, stream
	}
	name, ok := g.typeName(f.Pos, msg)
	if !ok {
		return nil, stream
	}
	return addr(name), stream
}

func (g *generator) options(target options.Target, opts *ir.Options, dst proto.Message, pos typegraph.Location) {
	if err := g.registry.Apply(target, opts, dst); err != nil {
		g.errorf(pos, "%v", fmt.Errorf("invalid options: %w", err))
	}
}
