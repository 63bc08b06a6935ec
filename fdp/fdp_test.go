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

package fdp_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/bufbuild/typeproto/fdp"
	"github.com/bufbuild/typeproto/internal/prototest"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

func push(t *testing.T, scope ir.Scope, stmts ...ir.Statement) {
	t.Helper()
	for _, stmt := range stmts {
		require.NoError(t, scope.Body().Push(stmt))
	}
}

func userFile(t *testing.T) *ir.File {
	t.Helper()

	file := ir.NewFile("a.proto", "a.ts", "p")
	kind := &ir.Enum{Name: "Kind"}
	big := &ir.EnumValue{Name: "BIG", Number: 1}
	big.Options.Set("deprecated", ir.MakeBool(true))
	push(t, kind, &ir.EnumValue{Name: "UNSPECIFIED"}, big)

	user := &ir.Message{Name: "User"}
	name := &ir.Field{Name: "name", Number: 1, Type: ir.String}
	name.Options.Set("deprecated", ir.MakeBool(true))
	tags := &ir.Field{Name: "tags", Number: 2, Type: &ir.Repeated{Elem: ir.String}}
	tags.Options.Set("json_name", ir.MakeString("labels"))
	push(t, user,
		name,
		tags,
		&ir.Field{Name: "attrs", Number: 3, Type: &ir.Map{Key: ir.String, Value: ir.Int32}},
		&ir.Field{Name: "nick", Number: 4, Type: &ir.Optional{Elem: ir.String}},
		&ir.Field{Name: "kind", Number: 5, Type: kind},
		&ir.Field{Name: "choice", Type: &ir.Oneof{Fields: []*ir.Field{
			{Name: "id", Number: 6, Type: ir.Int64},
			{Name: "email", Number: 7, Type: &ir.Optional{Elem: ir.String}},
		}}},
	)

	users := &ir.Service{Name: "Users"}
	push(t, users,
		&ir.Field{Name: "Get", Type: &ir.RPC{Input: user, Output: user}},
		&ir.Field{Name: "Watch", Type: &ir.RPC{Input: user, Output: &ir.Stream{Elem: user}}},
	)

	push(t, file, kind, user, users)
	file.Options.Set("java_package", ir.MakeString("com.example.p"))
	ir.MarkParents(file)
	return file
}

func TestFileDescriptor(t *testing.T) {
	t.Parallel()

	set, err := fdp.DescriptorSet([]*ir.File{userFile(t)})
	require.NoError(t, err)
	prototest.AssertValidSet(t, set)

	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	expected := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("a.proto"),
		Package: proto.String("p"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Kind"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("UNSPECIFIED"), Number: proto.Int32(0)},
				{
					Name:    proto.String("BIG"),
					Number:  proto.Int32(1),
					Options: &descriptorpb.EnumValueOptions{Deprecated: proto.Bool(true)},
				},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("User"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{
					Name: proto.String("name"), Number: proto.Int32(1), Label: optional, Type: str,
					JsonName: proto.String("name"),
					Options:  &descriptorpb.FieldOptions{Deprecated: proto.Bool(true)},
				},
				{
					Name: proto.String("tags"), Number: proto.Int32(2), Label: repeated, Type: str,
					JsonName: proto.String("labels"),
				},
				{
					Name: proto.String("attrs"), Number: proto.Int32(3), Label: repeated,
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".p.User.AttrsEntry"),
					JsonName: proto.String("attrs"),
				},
				{
					Name: proto.String("nick"), Number: proto.Int32(4), Label: optional, Type: str,
					JsonName:       proto.String("nick"),
					OneofIndex:     proto.Int32(1),
					Proto3Optional: proto.Bool(true),
				},
				{
					Name: proto.String("kind"), Number: proto.Int32(5), Label: optional,
					Type:     descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(),
					TypeName: proto.String(".p.Kind"),
					JsonName: proto.String("kind"),
				},
				{
					Name: proto.String("id"), Number: proto.Int32(6), Label: optional,
					Type:       descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(),
					JsonName:   proto.String("id"),
					OneofIndex: proto.Int32(0),
				},
				{
					Name: proto.String("email"), Number: proto.Int32(7), Label: optional, Type: str,
					JsonName:   proto.String("email"),
					OneofIndex: proto.Int32(0),
				},
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("AttrsEntry"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("key"), Number: proto.Int32(1), Label: optional, Type: str, JsonName: proto.String("key")},
					{
						Name: proto.String("value"), Number: proto.Int32(2), Label: optional,
						Type:     descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(),
						JsonName: proto.String("value"),
					},
				},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			}},
			OneofDecl: []*descriptorpb.OneofDescriptorProto{
				{Name: proto.String("choice")},
				{Name: proto.String("_nick")},
			},
		}},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Users"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{Name: proto.String("Get"), InputType: proto.String(".p.User"), OutputType: proto.String(".p.User")},
				{
					Name:            proto.String("Watch"),
					InputType:       proto.String(".p.User"),
					OutputType:      proto.String(".p.User"),
					ServerStreaming: proto.Bool(true),
				},
			},
		}},
		Options: &descriptorpb.FileOptions{JavaPackage: proto.String("com.example.p")},
	}
	prototest.AssertMessagesEqual(t, expected, prototest.FindFile(t, set, "a.proto"))
}

func TestReservedAndDefaults(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("r.proto", "r.ts", "")
	msg := &ir.Message{Name: "M"}
	count := &ir.Field{Name: "count", Number: 1, Type: ir.Int32}
	count.Options.Set("default_value", ir.MakeInt(-4))
	label := &ir.Field{Name: "label", Number: 2, Type: ir.String}
	label.Options.Set("default_value", ir.MakeString("a\"b"))
	push(t, msg, count, label, &ir.Reserved{Ranges: []ir.Range{{Start: 5, End: 7}}, Names: []string{"old"}})
	enum := &ir.Enum{Name: "E"}
	push(t, enum, &ir.EnumValue{Name: "E_ZERO"}, &ir.Reserved{Ranges: []ir.Range{{Start: 2, End: 3}}, Names: []string{"E_OLD"}})
	push(t, file, msg, enum)
	ir.MarkParents(file)

	fd, err := fdp.FileDescriptor(file)
	require.NoError(t, err)
	assert.Nil(t, fd.Package)

	mdp := fd.GetMessageType()[0]
	assert.Equal(t, "-4", mdp.GetField()[0].GetDefaultValue())
	assert.Equal(t, `a"b`, mdp.GetField()[1].GetDefaultValue())
	assert.Nil(t, mdp.GetField()[0].GetOptions())
	require.Len(t, mdp.GetReservedRange(), 1)
	assert.Equal(t, int32(5), mdp.GetReservedRange()[0].GetStart())
	assert.Equal(t, int32(8), mdp.GetReservedRange()[0].GetEnd())
	assert.Equal(t, []string{"old"}, mdp.GetReservedName())

	edp := fd.GetEnumType()[0]
	require.Len(t, edp.GetReservedRange(), 1)
	assert.Equal(t, int32(2), edp.GetReservedRange()[0].GetStart())
	assert.Equal(t, int32(3), edp.GetReservedRange()[0].GetEnd())
	assert.Equal(t, []string{"E_OLD"}, edp.GetReservedName())
}

func TestUninterpretedOptions(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("o.proto", "o.ts", "o")
	msg := &ir.Message{Name: "M"}
	msg.Options.Set("(custom.weight)", ir.MakeInt(5))
	push(t, file, msg)
	ir.MarkParents(file)

	fd, err := fdp.FileDescriptor(file)
	require.NoError(t, err)

	opts := fd.GetMessageType()[0].GetOptions().GetUninterpretedOption()
	require.Len(t, opts, 1)
	require.Len(t, opts[0].GetName(), 1)
	assert.Equal(t, "custom.weight", opts[0].GetName()[0].GetNamePart())
	assert.True(t, opts[0].GetName()[0].GetIsExtension())
	assert.Equal(t, uint64(5), opts[0].GetPositiveIntValue())
}

func TestDescriptorSetOrder(t *testing.T) {
	t.Parallel()

	empty := ir.NewFile("google/protobuf/empty.proto", "", "google.protobuf")
	empty.External = true
	empty.Descriptor = protodesc.ToFileDescriptorProto(emptypb.File_google_protobuf_empty_proto)
	emptyMsg := &ir.Message{Name: "Empty"}
	push(t, empty, emptyMsg)
	ir.MarkParents(empty)

	unused := ir.NewFile("google/protobuf/duration.proto", "", "google.protobuf")
	unused.External = true

	a := ir.NewFile("a.proto", "a.ts", "p")
	thing := &ir.Message{Name: "Thing"}
	push(t, a, thing)
	ir.MarkParents(a)

	b := ir.NewFile("b.proto", "b.ts", "p")
	b.Imports = []ir.Import{{Path: "a.proto"}, {Path: "google/protobuf/empty.proto", Public: true}}
	holder := &ir.Message{Name: "Holder"}
	push(t, holder,
		&ir.Field{Name: "thing", Number: 1, Type: thing},
		&ir.Field{Name: "nothing", Number: 2, Type: emptyMsg},
	)
	push(t, b, holder)
	ir.MarkParents(b)

	files := []*ir.File{b, unused, a, empty}
	set, err := fdp.DescriptorSet(files)
	require.NoError(t, err)
	prototest.AssertValidSet(t, set)

	names := make([]string, len(set.GetFile()))
	for i, f := range set.GetFile() {
		names[i] = f.GetName()
	}
	require.Len(t, names, 3)
	assert.Equal(t, "b.proto", names[2])
	assert.ElementsMatch(t, []string{"a.proto", "google/protobuf/empty.proto"}, names[:2])

	bfd := prototest.FindFile(t, set, "b.proto")
	assert.Equal(t, []string{"a.proto", "google/protobuf/empty.proto"}, bfd.GetDependency())
	assert.Equal(t, []int32{1}, bfd.GetPublicDependency())
	assert.Equal(t, ".google.protobuf.Empty", bfd.GetMessageType()[0].GetField()[1].GetTypeName())
	prototest.AssertMessagesEqual(t, empty.Descriptor, prototest.FindFile(t, set, "google/protobuf/empty.proto"))

	set, err = fdp.DescriptorSet(files, fdp.Exclude(func(f *ir.File) bool { return f.External }))
	require.NoError(t, err)
	require.Len(t, set.GetFile(), 2)
	assert.Equal(t, "a.proto", set.GetFile()[0].GetName())
	assert.Equal(t, "b.proto", set.GetFile()[1].GetName())

	sorted, err := fdp.Sort(files)
	require.NoError(t, err)
	assert.Equal(t, 3, len(sorted))
	assert.Less(t, slices.Index(sorted, a), slices.Index(sorted, b))
}

func TestSortCycle(t *testing.T) {
	t.Parallel()

	a := ir.NewFile("a.proto", "a.ts", "p")
	b := ir.NewFile("b.proto", "b.ts", "p")
	a.AddImport("b.proto")
	b.AddImport("a.proto")

	_, err := fdp.Sort([]*ir.File{a, b})
	require.ErrorContains(t, err, "cycle detected")
	_, err = fdp.DescriptorSet([]*ir.File{a, b})
	require.Error(t, err)
}

func TestStructuralErrors(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("bad.proto", "bad.ts", "bad")
	at := func(line int) typegraph.Location { return typegraph.Location{Unit: "bad.ts", Line: line} }
	orphan := &ir.Message{Name: "Orphan"}
	msg := &ir.Message{Name: "M"}
	push(t, msg,
		&ir.Field{Name: "missing", Number: 1, Type: ir.MessageRef("Missing"), Pos: at(2)},
		&ir.Field{Name: "by_float", Number: 2, Type: &ir.Map{Key: ir.Double, Value: ir.String}, Pos: at(3)},
		&ir.Field{Name: "nested", Number: 3, Type: &ir.Map{Key: ir.String, Value: &ir.Repeated{Elem: ir.String}}, Pos: at(4)},
		&ir.Field{Name: "either", Type: &ir.Oneof{Fields: []*ir.Field{
			{Name: "many", Number: 4, Type: &ir.Repeated{Elem: ir.String}, Pos: at(5)},
		}}},
		&ir.Field{Name: "unnumbered", Type: ir.Bool, Pos: at(6)},
		&ir.Field{Name: "orphan", Number: 7, Type: orphan, Pos: at(7)},
		&ir.Field{Name: "twice", Number: 8, Type: &ir.Repeated{Elem: &ir.Repeated{Elem: ir.Int32}}, Pos: at(8)},
	)
	svc := &ir.Service{Name: "S"}
	push(t, svc, &ir.Field{Name: "Call", Type: &ir.RPC{Input: ir.String, Output: msg}, Pos: at(10)})
	push(t, file, msg, svc)
	ir.MarkParents(file)

	_, err := fdp.FileDescriptor(file)
	require.Error(t, err)

	var lines []int
	for _, err := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ewp reporter.ErrorWithPos
		require.True(t, errors.As(err, &ewp), "%v", err)
		assert.Equal(t, "bad.ts", ewp.GetPosition().Unit)
		lines = append(lines, ewp.GetPosition().Line)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 10}, lines)

	assert.ErrorContains(t, err, "unresolved type Missing")
	assert.ErrorContains(t, err, "map key of M.by_float")
	assert.ErrorContains(t, err, "map value of M.nested")
	assert.ErrorContains(t, err, "oneof member M.many cannot be repeated string")
	assert.ErrorContains(t, err, "field M.unnumbered has no number")
	assert.ErrorContains(t, err, "type Orphan is not placed in any file")
	assert.ErrorContains(t, err, "field M.twice has nested type")
	assert.ErrorContains(t, err, "input of method S.Call must be a message, got string")
}

func TestExternalWithoutDescriptor(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("ext.proto", "", "ext")
	file.External = true
	_, err := fdp.FileDescriptor(file)
	require.ErrorContains(t, err, "external file has no descriptor")
}

func TestSourceInfo(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("s.proto", "s.ts", "s")
	file.Comment = "Generated."
	msg := &ir.Message{Name: "User", Comment: "A user.\n\nSecond paragraph.", Pos: typegraph.Location{Unit: "s.ts", Line: 3, Column: 2}}
	push(t, msg,
		&ir.Field{Name: "id", Number: 1, Type: ir.String, Comment: "The id.", Pos: typegraph.Location{Unit: "s.ts", Line: 4, Column: 3}},
		&ir.Field{Name: "other", Number: 2, Type: ir.String, Pos: typegraph.Location{Unit: "other.ts", Line: 9, Column: 9}},
	)
	push(t, file, msg)
	ir.MarkParents(file)

	fd, err := fdp.FileDescriptor(file, fdp.WithSourceInfo(true))
	require.NoError(t, err)

	locs := fd.GetSourceCodeInfo().GetLocation()
	require.Len(t, locs, 4)
	expected := []*descriptorpb.SourceCodeInfo_Location{
		{Path: []int32{}, Span: []int32{0, 0, 0}, LeadingComments: proto.String(" Generated.\n")},
		{Path: []int32{4, 0}, Span: []int32{2, 1, 1}, LeadingComments: proto.String(" A user.\n\n Second paragraph.\n")},
		{Path: []int32{4, 0, 2, 0}, Span: []int32{3, 2, 2}, LeadingComments: proto.String(" The id.\n")},
		{Path: []int32{4, 0, 2, 1}, Span: []int32{0, 0, 0}},
	}
	for i := range expected {
		prototest.AssertMessagesEqual(t, expected[i], locs[i], "location %d", i)
	}

	fd, err = fdp.FileDescriptor(file)
	require.NoError(t, err)
	assert.Nil(t, fd.GetSourceCodeInfo())
}
