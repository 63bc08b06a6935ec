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

package typeproto_test

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/bufbuild/typeproto"
	"github.com/bufbuild/typeproto/internal/prototest"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/typegraph/memgraph"
)

const usersYAML = `
units:
  - path: types/acme/users.ts
    declarations:
      - kind: enum
        name: Role
        values: {ADMIN: 1}
      - kind: interface
        name: User
        doc: A user.
        members:
          id$1: int64
          name?: string
          role: Role
          created: Date
      - kind: interface
        name: Users
        members:
          get: "(id: int64) => User"
`

func load(t *testing.T, src string) (*memgraph.Graph, []typegraph.Unit) {
	t.Helper()
	g, units, err := memgraph.LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	return g, units
}

func TestCompile(t *testing.T) {
	t.Parallel()

	g, units := load(t, usersYAML)
	cfg := typeproto.DefaultConfig()
	cfg.Package.Go = "example.com/gen"
	c := typeproto.Compiler{Provider: g, Config: cfg}
	res, err := c.Compile(context.Background(), units)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	prototest.AssertValidSet(t, res.Set)
	var names []string
	for _, fd := range res.Set.GetFile() {
		names = append(names, fd.GetName())
	}
	assert.Equal(t, []string{"google/protobuf/timestamp.proto", "acme/users.proto"}, names)

	fd := prototest.FindFile(t, res.Set, "acme/users.proto")
	assert.Equal(t, "acme", fd.GetPackage())
	assert.Equal(t, []string{"google/protobuf/timestamp.proto"}, fd.GetDependency())
	assert.Equal(t, "com.acme", fd.GetOptions().GetJavaPackage())
	assert.Equal(t, "example.com/gen/acme", fd.GetOptions().GetGoPackage())
	assert.Equal(t, "UsersProto", fd.GetOptions().GetJavaOuterClassname())

	var messages []string
	for _, msg := range fd.GetMessageType() {
		messages = append(messages, msg.GetName())
	}
	assert.ElementsMatch(t, []string{"User", "getRequest"}, messages)
	require.Len(t, fd.GetService(), 1)
	method := fd.GetService()[0].GetMethod()[0]
	assert.Equal(t, ".acme.getRequest", method.GetInputType())
	assert.Equal(t, ".acme.User", method.GetOutputType())

	require.Contains(t, res.Protos, "acme/users.proto")
	text := res.Protos["acme/users.proto"]
	assert.True(t, strings.HasPrefix(text, "// Code generated by typeproto. DO NOT EDIT.\n"))
	assert.Contains(t, text, "package acme;\n")
	assert.Contains(t, text, `import "google/protobuf/timestamp.proto";`)
	assert.Contains(t, text, "// A user.\nmessage User {\n")
	assert.Contains(t, text, "  rpc get (getRequest) returns (User);\n")
	assert.NotContains(t, res.Protos, "google/protobuf/timestamp.proto")
}

func TestCompileFunctionAlias(t *testing.T) {
	t.Parallel()

	g, units := load(t, `
units:
  - path: types/inv/fns.ts
    declarations:
      - kind: type
        name: GetFn
        type: "(sku: string, n: int32) => void"
  - path: types/shop/stock.ts
    declarations:
      - kind: interface
        name: Stock
        members:
          get: GetFn
          reserve: GetFn
`)
	c := typeproto.Compiler{Provider: g}
	res, err := c.Compile(context.Background(), units)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	prototest.AssertValidSet(t, res.Set)

	fns := prototest.FindFile(t, res.Set, "inv/fns.proto")
	var messages []string
	for _, msg := range fns.GetMessageType() {
		messages = append(messages, msg.GetName())
	}
	assert.ElementsMatch(t, []string{"GetFnRequest", "GetFnResponse"}, messages)

	stock := prototest.FindFile(t, res.Set, "shop/stock.proto")
	assert.Equal(t, []string{"inv/fns.proto"}, stock.GetDependency())
	require.Len(t, stock.GetService(), 1)
	for _, method := range stock.GetService()[0].GetMethod() {
		assert.Equal(t, ".inv.GetFnRequest", method.GetInputType(), method.GetName())
		assert.Equal(t, ".inv.GetFnResponse", method.GetOutputType(), method.GetName())
	}
	assert.Contains(t, res.Protos["shop/stock.proto"], `import "inv/fns.proto";`)
}

func TestCompileIgnored(t *testing.T) {
	t.Parallel()

	g, units := load(t, usersYAML)
	cfg := typeproto.DefaultConfig()
	cfg.Ignore = append(cfg.Ignore, "ac*")
	c := typeproto.Compiler{Provider: g, Config: cfg}
	res, err := c.Compile(context.Background(), units)
	require.NoError(t, err)

	assert.Empty(t, res.Protos)
	assert.Empty(t, res.Compiled(cfg))
	prototest.FindFile(t, res.Set, "acme/users.proto")
}

func TestCompileUnresolved(t *testing.T) {
	t.Parallel()

	g, units := load(t, `
units:
  - path: a/b.ts
    declarations:
      - kind: interface
        name: Thing
        members:
          other: acme.Missing
`)
	c := typeproto.Compiler{Provider: g}
	_, err := c.Compile(context.Background(), units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refers to unresolved type acme.Missing")
}

func TestCompileCanceled(t *testing.T) {
	t.Parallel()

	g, units := load(t, usersYAML)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := typeproto.Compiler{Provider: g}
	_, err := c.Compile(ctx, units)
	assert.ErrorIs(t, err, context.Canceled)
}

type runnerFunc func(ctx context.Context, name string, req []byte) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, req []byte) ([]byte, error) {
	return f(ctx, name, req)
}

func TestGenerateAndWrite(t *testing.T) {
	t.Parallel()

	g, units := load(t, usersYAML)
	cfg := typeproto.DefaultConfig()
	cfg.OutDir = "out"
	cfg.Dump = true
	cfg.Plugins = map[string]typeproto.PluginConfig{
		"echo": {OutDir: "echo", Params: map[string]any{"paths": "source_relative"}},
	}

	var params []string
	echo := runnerFunc(func(_ context.Context, name string, b []byte) ([]byte, error) {
		req := new(pluginpb.CodeGeneratorRequest)
		if err := proto.Unmarshal(b, req); err != nil {
			return nil, err
		}
		params = append(params, req.GetParameter())
		resp := new(pluginpb.CodeGeneratorResponse)
		for _, f := range req.GetFileToGenerate() {
			resp.File = append(resp.File, &pluginpb.CodeGeneratorResponse_File{
				Name:    proto.String(strings.TrimSuffix(f, ".proto") + ".txt"),
				Content: proto.String(name + ": " + f),
			})
		}
		return proto.Marshal(resp)
	})

	fs := afero.NewMemMapFs()
	c := typeproto.Compiler{Provider: g, Config: cfg, Runner: echo, Fs: fs}
	res, err := c.Compile(context.Background(), units)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "acme", out[0].Job.Package)
	assert.Equal(t, []string{"paths=source_relative"}, params)

	require.NoError(t, c.WriteOutputs(fs, res, out))

	b, err := afero.ReadFile(fs, "out/acme/users.proto")
	require.NoError(t, err)
	assert.Equal(t, res.Protos["acme/users.proto"], string(b))

	b, err = afero.ReadFile(fs, "out/echo/acme/users.txt")
	require.NoError(t, err)
	assert.Equal(t, "echo: acme/users.proto", string(b))

	b, err = afero.ReadFile(fs, "out/"+typeproto.DumpFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"acme/users.proto"`)
}

func TestWriteOutputsDisabled(t *testing.T) {
	t.Parallel()

	g, units := load(t, usersYAML)
	cfg := typeproto.DefaultConfig()
	cfg.Proto = false
	c := typeproto.Compiler{Provider: g, Config: cfg}
	res, err := c.Compile(context.Background(), units)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, c.WriteOutputs(fs, res, nil))
	exists, err := afero.Exists(fs, "acme/users.proto")
	require.NoError(t, err)
	assert.False(t, exists)
}
