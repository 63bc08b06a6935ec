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

// Package wellknown exposes the files that ship with protoc as external IR
// files, so that references to the well-known types can be linked.
package wellknown

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	// link in packages that include the standard protos included with protoc.
	_ "google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/apipb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/sourcecontextpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/typepb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
	_ "google.golang.org/protobuf/types/pluginpb"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/typegraph"
)

// Package is the package of the well-known types. The plugin protocol lives
// in a subpackage of it.
const Package = "google.protobuf"

var paths = []string{
	"google/protobuf/any.proto",
	"google/protobuf/api.proto",
	"google/protobuf/compiler/plugin.proto",
	"google/protobuf/descriptor.proto",
	"google/protobuf/duration.proto",
	"google/protobuf/empty.proto",
	"google/protobuf/field_mask.proto",
	"google/protobuf/source_context.proto",
	"google/protobuf/struct.proto",
	"google/protobuf/timestamp.proto",
	"google/protobuf/type.proto",
	"google/protobuf/wrappers.proto",
}

// Paths returns the paths of the well-known files.
func Paths() []string {
	return append([]string(nil), paths...)
}

// Files returns a fresh external file for each of the well-known files,
// built from the descriptors linked into the binary.
func Files() []*ir.File {
	files := make([]*ir.File, len(paths))
	for i, path := range paths {
		fd, err := protoregistry.GlobalFiles.FindFileByPath(path)
		if err != nil {
			// Every path is registered by one of the imports above.
			panic(fmt.Sprintf("wellknown: %s: %v", path, err))
		}
		files[i] = File(fd)
	}
	return files
}

// File returns an external file standing for fd. It declares every message
// and enum of fd, nested ones included, but no fields: the descriptor
// carries those.
func File(fd protoreflect.FileDescriptor) *ir.File {
	file := ir.NewFile(fd.Path(), "", string(fd.Package()))
	file.External = true
	file.Descriptor = protodesc.ToFileDescriptorProto(fd)

	for _, dep := range file.Descriptor.GetDependency() {
		file.Imports = append(file.Imports, ir.Import{Path: dep})
	}
	for _, i := range file.Descriptor.GetPublicDependency() {
		file.Imports[i].Public = true
	}
	for _, i := range file.Descriptor.GetWeakDependency() {
		file.Imports[i].Weak = true
	}

	declare(file, file, fd.Messages(), fd.Enums())
	return file
}

func declare(file *ir.File, scope ir.Scope, msgs protoreflect.MessageDescriptors, enums protoreflect.EnumDescriptors) {
	for i := range enums.Len() {
		ed := enums.Get(i)
		enum := &ir.Enum{Name: string(ed.Name())}
		values := ed.Values()
		for j := range values.Len() {
			vd := values.Get(j)
			must(enum.Body().Push(&ir.EnumValue{Name: string(vd.Name()), Number: int32(vd.Number())}))
		}
		define(file, scope, enum)
	}
	for i := range msgs.Len() {
		md := msgs.Get(i)
		msg := &ir.Message{Name: string(md.Name())}
		define(file, scope, msg)
		declare(file, msg, md.Messages(), md.Enums())
	}
}

func define(file *ir.File, scope ir.Scope, def ir.TypeDef) {
	must(ir.Place(scope, def))
	must(file.Define(typegraph.Symbol{}, ir.RelativeName(def), def))
}

// must panics on errors that a valid descriptor cannot cause.
func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("wellknown: %v", err))
	}
}
