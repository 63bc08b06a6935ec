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

// Package typeproto compiles graphs of statically typed declarations into
// Protocol Buffers schemas.
//
// The declarations are read through a [typegraph.Provider], such as the
// in-memory graphs of package memgraph or the Go packages loaded by package
// gotypes. Each compilation unit becomes one .proto file. Interfaces and
// classes become messages, or services when they have methods, and enums
// become enums. The result is available as schema IR, as a descriptor set,
// and as .proto text.
//
// # Configuration
//
// A [Config] controls the derived file options, the output directory, and
// the code generators to run over the result. It is usually loaded from a
// YAML file:
//
//	outDir: gen
//	package:
//	  go: example.com/acme/gen
//	ignore: ["google.protobuf", "internal.**"]
//	plugins:
//	  go:
//	    outDir: go
//	    paths: source_relative
//
// # Compiler
//
// A minimal Compiler only needs a provider:
//
//	graph, units, err := memgraph.LoadYAML(r)
//	if err != nil {
//	    return err
//	}
//	compiler := typeproto.Compiler{Provider: graph}
//	result, err := compiler.Compile(ctx, units)
//
// By default, compilation fails at the first structural error, and warnings
// are only recorded in the [Result]. A custom [reporter.Reporter] can
// collect every error instead.
package typeproto
