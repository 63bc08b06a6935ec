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

// Package fdp converts linked schema IR into descriptor protos.
//
// The result can be handed to protoc plugins, or turned into descriptors
// with [protodesc.NewFiles].
//
// [protodesc.NewFiles]: https://pkg.go.dev/google.golang.org/protobuf/reflect/protodesc#NewFiles
package fdp

import (
	"errors"
	"fmt"
	"iter"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/internal/toposort"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/options"
)

// DescriptorOption is an option to pass to [DescriptorSet] or
// [FileDescriptor].
type DescriptorOption func(*generator)

// WithRegistry sets the registry used to encode options. By default, a
// registry with only the built-in options is used.
func WithRegistry(r *options.Registry) DescriptorOption {
	return func(g *generator) { g.registry = r }
}

// WithSourceInfo sets whether SourceCodeInfo is emitted. It records the
// position and comments of each definition, field, enum value and method.
func WithSourceInfo(enabled bool) DescriptorOption {
	return func(g *generator) { g.includeSourceInfo = enabled }
}

// Exclude excludes any files matching pred from a descriptor set, even if
// other files of the set import them.
func Exclude(pred func(*ir.File) bool) DescriptorOption {
	return func(g *generator) { g.exclude = pred }
}

func newGenerator(opts []DescriptorOption) *generator {
	g := new(generator)
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = options.NewRegistry()
	}
	return g
}

// DescriptorSet generates a FileDescriptorSet for the given files, ordered
// topologically so that every file follows the files it imports.
//
// External files, such as the well-known types, contribute their prebuilt
// descriptors, and are only included if some other file imports them,
// directly or not.
//
// Structural problems, such as a field whose type never got linked, are
// returned joined together, each as a [reporter.ErrorWithPos]. The set is
// returned along with them, with the offending elements left incomplete.
func DescriptorSet(files []*ir.File, opts ...DescriptorOption) (*descriptorpb.FileDescriptorSet, error) {
	g := newGenerator(opts)
	sorted, err := Sort(files)
	if err != nil {
		return nil, err
	}

	fds := new(descriptorpb.FileDescriptorSet)
	for _, file := range sorted {
		if g.exclude != nil && g.exclude(file) {
			continue
		}
		fdp := new(descriptorpb.FileDescriptorProto)
		fds.File = append(fds.File, fdp)
		g.file(file, fdp)
	}
	return fds, errors.Join(g.errs...)
}

// FileDescriptor generates a FileDescriptorProto for a single file.
func FileDescriptor(file *ir.File, opts ...DescriptorOption) (*descriptorpb.FileDescriptorProto, error) {
	g := newGenerator(opts)
	fdp := new(descriptorpb.FileDescriptorProto)
	g.file(file, fdp)
	return fdp, errors.Join(g.errs...)
}

// Sort orders the non-external files topologically over their imports, with
// the external files they import included where needed. Imports of paths
// that none of files has are ignored.
func Sort(files []*ir.File) ([]*ir.File, error) {
	byPath := make(map[string]*ir.File, len(files))
	var roots []*ir.File
	for _, f := range files {
		byPath[f.Path] = f
		if !f.External {
			roots = append(roots, f)
		}
	}

	sorted, err := toposort.Sort(
		roots,
		func(f *ir.File) string { return f.Path },
		func(f *ir.File) iter.Seq[*ir.File] {
			return func(yield func(*ir.File) bool) {
				for _, imp := range imports(f) {
					if dep := byPath[imp]; dep != nil && !yield(dep) {
						return
					}
				}
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("sorting files: %w", err)
	}
	return sorted, nil
}

// imports returns the import paths of a file. An external file's come from
// its descriptor.
func imports(f *ir.File) []string {
	if f.External && f.Descriptor != nil {
		return f.Descriptor.GetDependency()
	}
	paths := make([]string, len(f.Imports))
	for i, imp := range f.Imports {
		paths[i] = imp.Path
	}
	return paths
}

// addr returns a pointer to a copy of v.
func addr[T any](v T) *T {
	return &v
}

// clone copies the prebuilt descriptor of an external file.
func clone(fdp *descriptorpb.FileDescriptorProto) *descriptorpb.FileDescriptorProto {
	return proto.Clone(fdp).(*descriptorpb.FileDescriptorProto)
}
