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

package linker_test

import (
	"go/constant"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/linker"
	"github.com/bufbuild/typeproto/mapper"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/typegraph/memgraph"
)

// declare maps every unit of g into a file named after the unit.
func declare(t *testing.T, g *memgraph.Graph, h *reporter.Handler) ([]*ir.File, *mapper.Mapper) {
	t.Helper()
	m := mapper.New(g, h)
	var files []*ir.File
	for _, unit := range g.Units() {
		f := ir.NewFile(unit.Package+".proto", unit.Path, unit.Package)
		for _, decl := range unit.Declarations {
			require.NoError(t, m.Declare(f, decl))
		}
		files = append(files, f)
	}
	return files, m
}

func field(t *testing.T, f *ir.File, msg, name string) *ir.Field {
	t.Helper()
	def := f.DefinitionByName(msg)
	require.NotNil(t, def, msg)
	stmt, ok := def.Body().Lookup(name).(*ir.Field)
	require.True(t, ok, "%s.%s", msg, name)
	return stmt
}

func TestLink(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	b := g.Unit("b.ts").Package("b")
	friend := b.Interface("Friend")
	b.Enum("Mood", memgraph.Member{Name: "HAPPY", Value: constant.MakeInt64(0)})
	a := g.Unit("a.ts").Package("a")
	a.Interface("User",
		memgraph.Prop{Name: "friend", Type: friend.Type()},
		memgraph.Prop{Name: "byName", Type: a.MustParse(`Link<"b.Friend">`)},
		memgraph.Prop{Name: "moods", Type: a.MustParse(`Map<string, Link<"b.Mood">>`)},
		memgraph.Prop{Name: "self", Type: a.MustParse("User[]")},
		memgraph.Prop{Name: "missing", Type: a.MustParse(`Link<"nope.Missing">`)},
	)

	h := reporter.NewHandler(nil)
	files, _ := declare(t, g, h)
	fileB, fileA := files[0], files[1]
	ir.MarkParents(fileA)
	ir.MarkParents(fileB)

	stats, err := linker.Link(files, g, h)
	require.NoError(t, err)
	assert.Equal(t, linker.Stats{Replacements: 4, Passes: 2, Unresolved: 1}, stats)

	target := fileB.DefinitionByName("Friend")
	assert.Same(t, target, field(t, fileA, "User", "friend").Type)
	assert.Same(t, target, field(t, fileA, "User", "byName").Type)
	moods := field(t, fileA, "User", "moods").Type.(*ir.Map)
	assert.Same(t, fileB.DefinitionByName("Mood"), moods.Value)
	self := field(t, fileA, "User", "self").Type.(*ir.Repeated)
	assert.Same(t, fileA.DefinitionByName("User"), self.Elem)

	assert.Equal(t, []ir.Import{{Path: "b.proto"}}, fileA.Imports)
	assert.Empty(t, fileB.Imports)

	warnings := h.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "failed to resolve nope.Missing")

	again, err := linker.Link(files, g, h)
	require.NoError(t, err)
	assert.Equal(t, linker.Stats{Passes: 1, Unresolved: 1}, again)
	assert.Len(t, fileA.Imports, 1)
}

func TestLinkCollision(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	g.Unit("one.ts").Package("p").Interface("Thing")
	g.Unit("two.ts").Package("p").Interface("Thing")

	h := reporter.NewHandler(nil)
	files := []*ir.File{}
	m := mapper.New(g, h)
	for i, unit := range g.Units() {
		f := ir.NewFile([]string{"one.proto", "two.proto"}[i], unit.Path, unit.Package)
		for _, decl := range unit.Declarations {
			require.NoError(t, m.Declare(f, decl))
		}
		files = append(files, f)
	}

	_, err := linker.Link(files, g, h)
	require.ErrorContains(t, err, `symbol "p.Thing" already defined at one.ts`)
}

func TestLinkEnumValueCollision(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("a.proto", "a.ts", "p")
	for _, name := range []string{"A", "B"} {
		e := &ir.Enum{Name: name}
		require.NoError(t, e.Body().Push(&ir.EnumValue{Name: "UNSPECIFIED"}))
		require.NoError(t, ir.Place(file, e))
	}

	var errs []reporter.ErrorWithPos
	h := reporter.NewHandler(reporter.NewReporter(func(err reporter.ErrorWithPos) error {
		errs = append(errs, err)
		return nil
	}, nil))
	_, err := linker.Link([]*ir.File{file}, nil, h)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `symbol "p.UNSPECIFIED" already defined`)
	assert.Contains(t, errs[0].Error(), "C++ scoping rules")
	assert.ErrorIs(t, h.Error(), reporter.ErrInvalidSource)
}

func TestRelocate(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	u := g.Unit("svc.ts").Package("svc")
	u.Interface("User")
	u.Interface("Users",
		memgraph.Prop{Name: "get", Method: true, Type: u.MustParse("(id: int64) => User")},
		memgraph.Prop{Name: "ping", Method: true, Type: u.MustParse("() => void")},
	)

	h := reporter.NewHandler(nil)
	files, m := declare(t, g, h)
	require.Len(t, m.Artificial(), 3)
	require.NoError(t, linker.Relocate(files, m.Artificial(), g, h))

	f := files[0]
	var names []string
	for _, def := range f.Body().Definitions() {
		names = append(names, def.DeclName())
	}
	assert.Equal(t, []string{"User", "Users", "getRequest", "pingRequest", "pingResponse"}, names)
	req := f.DefinitionByName("getRequest")
	require.NotNil(t, req)
	assert.Equal(t, "svc.getRequest", ir.FullName(req))
	assert.Empty(t, h.Warnings())

	stats, err := linker.Link(files, g, h)
	require.NoError(t, err)
	assert.Zero(t, stats.Unresolved)
	rpc := f.DefinitionByName("Users").Body().Lookup("get").(*ir.Field).Type.(*ir.RPC)
	assert.Same(t, req, rpc.Input)
	assert.Same(t, f.DefinitionByName("User"), rpc.Output)
}

func TestRelocateImports(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	b := g.Unit("b.ts").Package("b")
	getFn := b.Alias("GetFn", b.MustParse("(sku: string, n: int32) => void"))
	a := g.Unit("a.ts").Package("a")
	a.Interface("Stock",
		memgraph.Prop{Name: "get", Method: true, Type: getFn.Type()},
		memgraph.Prop{Name: "reserve", Method: true, Type: getFn.Type()},
	)

	h := reporter.NewHandler(nil)
	files, m := declare(t, g, h)
	fileB, fileA := files[0], files[1]
	require.Len(t, m.Artificial(), 2)
	require.NoError(t, linker.Relocate(files, m.Artificial(), g, h))
	assert.NotNil(t, fileB.DefinitionByName("GetFnRequest"))
	assert.NotNil(t, fileB.DefinitionByName("GetFnResponse"))
	assert.Nil(t, fileA.DefinitionByName("GetFnRequest"))

	_, err := linker.Link(files, g, h)
	require.NoError(t, err)
	assert.Equal(t, []ir.Import{{Path: "b.proto"}}, fileA.Imports)
	assert.Empty(t, fileB.Imports)

	svc := fileA.DefinitionByName("Stock")
	get := svc.Body().Lookup("get").(*ir.Field).Type.(*ir.RPC)
	reserve := svc.Body().Lookup("reserve").(*ir.Field).Type.(*ir.RPC)
	assert.NotSame(t, get, reserve)
	assert.Same(t, fileB.DefinitionByName("GetFnRequest"), get.Input)
	assert.Same(t, get.Input, reserve.Input)
	assert.Same(t, get.Output, reserve.Output)
	assert.Empty(t, h.Warnings())
}

func TestRelocateCollision(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	u := g.Unit("svc.ts")
	u.Interface("getRequest")
	u.Interface("Users",
		memgraph.Prop{Name: "get", Method: true, Type: u.MustParse("(id: int64) => string")},
	)

	h := reporter.NewHandler(nil)
	files, m := declare(t, g, h)
	err := linker.Relocate(files, m.Artificial(), g, h)
	require.ErrorIs(t, err, ir.ErrDuplicateName)
}

func TestRelocateUnplaced(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	other := g.Unit("other.ts")
	other.Interface("Remote",
		memgraph.Prop{Name: "call", Method: true, Type: other.MustParse("(n: int32) => void")},
	)
	g.Unit("a.ts").Interface("Local")

	h := reporter.NewHandler(nil)
	m := mapper.New(g, h)
	anon, err := m.Map(g.Func(g.Primitive(typegraph.Void), memgraph.Param{Name: "x", Type: other.MustParse("string")}))
	require.NoError(t, err)
	require.IsType(t, &ir.RPC{}, anon.Type)
	_, err = m.Map(g.TypeOf(g.Property(g.Units()[0].Declarations[0].Type, "call")))
	require.NoError(t, err)

	file := ir.NewFile("a.proto", "a.ts", "")
	require.NoError(t, linker.Relocate([]*ir.File{file}, m.Artificial(), g, h))
	assert.Zero(t, file.Body().Len())

	warnings := h.Warnings()
	require.Len(t, warnings, 4)
	assert.Contains(t, warnings[0].Error(), "cannot place synthesized message AnonymousRequest")
	assert.Contains(t, warnings[2].Error(), "unit other.ts is not compiled")
}

func TestCheckRequired(t *testing.T) {
	t.Parallel()

	g := memgraph.New()
	remote := g.Unit("b.ts").Interface("Remote")
	a := g.Unit("a.ts")
	a.Interface("Local", memgraph.Prop{Name: "r", Type: remote.Type()})

	h := reporter.NewHandler(nil)
	m := mapper.New(g, h)
	local := ir.NewFile("a.proto", "a.ts", "")
	for _, decl := range a.Build().Declarations {
		require.NoError(t, m.Declare(local, decl))
	}
	linker.CheckRequired([]*ir.File{local}, m.Required(), g, h)

	warnings := h.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "failed to resolve type Remote")
	assert.Equal(t, "b.ts", warnings[0].GetPosition().Unit)
}
