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

package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/typeproto/ir"
)

func TestAllocator(t *testing.T) {
	t.Parallel()

	var a ir.Allocator
	require.NoError(t, a.Mark(2, 2, "a"))
	require.NoError(t, a.Mark(5, 7, "reserved range"))
	assert.Equal(t, int32(1), a.Next("x"))
	assert.Equal(t, int32(3), a.Next("y"))
	assert.Equal(t, int32(4), a.Next("z"))
	assert.Equal(t, int32(8), a.Next("w"))

	err := a.Mark(6, 6, "b")
	require.ErrorIs(t, err, ir.ErrIndexTaken)
	assert.EqualError(t, err, "index is already taken: 6 (claimed by reserved range, then by b)")

	// Numbers below the hint are not handed out again, even if free.
	var b ir.Allocator
	assert.Equal(t, int32(1), b.Next("a"))
	require.NoError(t, b.Mark(3, 3, "c"))
	assert.Equal(t, int32(2), b.Next("b"))
	assert.Equal(t, int32(4), b.Next("d"))
}

func TestAllocatorSkipsImplementationRange(t *testing.T) {
	t.Parallel()

	var a ir.Allocator
	require.NoError(t, a.Mark(1, 18998, "reserved range"))
	assert.Equal(t, int32(18999), a.Next("a"))
	assert.Equal(t, int32(20000), a.Next("b"))
	assert.Equal(t, int32(20001), a.Next("c"))
}

func TestCheckFieldNumber(t *testing.T) {
	t.Parallel()

	require.NoError(t, ir.CheckFieldNumber(1))
	require.NoError(t, ir.CheckFieldNumber(ir.MaxFieldNumber))
	require.Error(t, ir.CheckFieldNumber(0))
	require.Error(t, ir.CheckFieldNumber(-3))
	require.Error(t, ir.CheckFieldNumber(ir.MaxFieldNumber+1))
	require.Error(t, ir.CheckFieldNumber(19500))
}

func numbers(scope ir.Scope) map[string]int32 {
	out := make(map[string]int32)
	for f := range ir.Fields(scope) {
		out[f.Name] = f.Number
	}
	return out
}

func TestNormalizeMessage(t *testing.T) {
	t.Parallel()

	msg := &ir.Message{Name: "M"}
	for _, f := range []*ir.Field{
		{Name: "a", Type: ir.String},
		{Name: "b", Number: 2, Type: ir.String},
		{Name: "c", Type: ir.String},
		{Name: "d", Number: 5, Type: ir.String},
		{Name: "e", Type: ir.String},
	} {
		require.NoError(t, msg.Body().Push(f))
	}

	require.NoError(t, ir.Normalize(msg))
	assert.Equal(t, map[string]int32{"a": 1, "b": 2, "c": 3, "d": 5, "e": 4}, numbers(msg))

	var order []string
	for _, stmt := range msg.Body().Statements() {
		order = append(order, stmt.DeclName())
	}
	assert.Equal(t, []string{"a", "b", "c", "e", "d"}, order)
}

func TestNormalizeOneofAndReserved(t *testing.T) {
	t.Parallel()

	nested := &ir.Enum{Name: "E"}
	msg := &ir.Message{Name: "M"}
	require.NoError(t, msg.Body().Push(&ir.Field{Name: "x", Type: ir.Int32}))
	require.NoError(t, msg.Body().Push(&ir.Field{Name: "choice", Type: &ir.Oneof{Fields: []*ir.Field{
		{Name: "left", Type: ir.String},
		{Name: "right", Number: 1, Type: ir.Bool},
	}}}))
	require.NoError(t, msg.Body().Push(nested))
	require.NoError(t, msg.Body().Push(&ir.Reserved{Ranges: []ir.Range{{Start: 2, End: 3}}}))

	require.NoError(t, ir.Normalize(msg))
	assert.Equal(t, map[string]int32{"x": 4, "left": 5, "right": 1}, numbers(msg))

	stmts := msg.Body().Statements()
	require.Len(t, stmts, 4)
	assert.Same(t, nested, stmts[0])
	assert.IsType(t, &ir.Reserved{}, stmts[1])
	assert.Equal(t, "choice", stmts[2].DeclName())
	assert.Equal(t, "x", stmts[3].DeclName())
}

func TestNormalizeDuplicate(t *testing.T) {
	t.Parallel()

	msg := &ir.Message{Name: "M"}
	require.NoError(t, msg.Body().Push(&ir.Field{Name: "a", Number: 3, Type: ir.String}))
	require.NoError(t, msg.Body().Push(&ir.Field{Name: "b", Number: 3, Type: ir.String}))
	require.ErrorIs(t, ir.Normalize(msg), ir.ErrIndexTaken)

	msg = &ir.Message{Name: "M"}
	require.NoError(t, msg.Body().Push(&ir.Field{Name: "a", Number: 19001, Type: ir.String}))
	require.ErrorContains(t, ir.Normalize(msg), "reserved for the protobuf implementation")
}

func TestNormalizeSkipsMethods(t *testing.T) {
	t.Parallel()

	svc := &ir.Service{Name: "S"}
	rpc := &ir.Field{Name: "Get", Type: &ir.RPC{Input: ir.MessageRef("A"), Output: ir.MessageRef("B")}}
	require.NoError(t, svc.Body().Push(rpc))
	require.NoError(t, ir.Normalize(svc))
	assert.Zero(t, rpc.Number)

	msg := &ir.Message{Name: "M"}
	require.NoError(t, msg.Body().Push(rpc))
	require.NoError(t, ir.Normalize(msg))
	assert.Zero(t, rpc.Number)
}

func TestNormalizeEnum(t *testing.T) {
	t.Parallel()

	enum := &ir.Enum{Name: "E"}
	require.NoError(t, enum.Body().Push(&ir.EnumValue{Name: "B", Number: 2}))
	require.NoError(t, enum.Body().Push(&ir.EnumValue{Name: "A", Number: 0}))
	require.NoError(t, enum.Body().Push(&ir.EnumValue{Name: "C", Number: 1}))
	require.NoError(t, ir.Normalize(enum))

	var names []string
	for _, stmt := range enum.Body().Statements() {
		names = append(names, stmt.DeclName())
	}
	assert.Equal(t, []string{"A", "C", "B"}, names)

	require.NoError(t, enum.Body().Push(&ir.EnumValue{Name: "D", Number: 1}))
	require.ErrorIs(t, ir.Normalize(enum), ir.ErrIndexTaken)

	enum.Options.Set("allow_alias", ir.MakeBool(true))
	require.NoError(t, ir.Normalize(enum))
}

func TestNormalizeFile(t *testing.T) {
	t.Parallel()

	file := ir.NewFile("a.proto", "a.ts", "a")
	outer := &ir.Message{Name: "Outer"}
	inner := &ir.Message{Name: "Inner"}
	require.NoError(t, inner.Body().Push(&ir.Field{Name: "v", Type: ir.String}))
	require.NoError(t, outer.Body().Push(&ir.Field{Name: "inner", Type: inner}))
	require.NoError(t, outer.Body().Push(inner))
	require.NoError(t, file.Body().Push(outer))

	require.NoError(t, ir.NormalizeFile(file))
	assert.Equal(t, map[string]int32{"inner": 1}, numbers(outer))
	assert.Equal(t, map[string]int32{"v": 1}, numbers(inner))
}
