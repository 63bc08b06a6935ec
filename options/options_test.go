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

package options_test

import (
	"math"
	"testing"

	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/internal/prototest"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/options"
)

func scope(t *testing.T, text string) []byte {
	t.Helper()
	b, err := protoscope.NewScanner(text).Exec()
	require.NoError(t, err)
	return b
}

func TestEncodeKnown(t *testing.T) {
	t.Parallel()

	var opts ir.Options
	opts.Set("java_package", ir.MakeString("com.example"))
	opts.Set("java_multiple_files", ir.MakeBool(true))
	opts.Set("optimize_for", ir.MakeEnum(1, "SPEED"))
	opts.Set("cc_enable_arenas", ir.MakeString("false"))

	b, err := options.NewRegistry().Encode(options.File, &opts)
	require.NoError(t, err)
	assert.Equal(t, scope(t, `1: {"com.example"} 10: 1 9: 1 31: 0`), b)
}

func TestEncodeUninterpreted(t *testing.T) {
	t.Parallel()

	var opts ir.Options
	opts.Set("(my.ext).foo", ir.MakeInt(5))
	opts.Set("custom", ir.MakeString("x"))
	opts.Set("neg", ir.MakeInt(-2))
	opts.Set("ident", ir.MakeEnum(0, "FOO"))
	opts.Set("ratio", ir.MakeFloat(0.5))

	b, err := options.NewRegistry().Encode(options.Message, &opts)
	require.NoError(t, err)
	assert.Equal(t, scope(t, `
		999: {
			2: { 1: {"my.ext"} 2: 1 }
			2: { 1: {"foo"} 2: 0 }
			4: 5
		}
		999: { 2: { 1: {"custom"} 2: 0 } 7: {"x"} }
		999: { 2: { 1: {"neg"} 2: 0 } 5: -2 }
		999: { 2: { 1: {"ident"} 2: 0 } 3: {"FOO"} }
		999: { 2: { 1: {"ratio"} 2: 0 } 6: 0.5 }
	`), b)
}

func TestApply(t *testing.T) {
	t.Parallel()

	reg := options.NewRegistry()
	require.NoError(t, reg.Register(options.File, "my_flag", options.Mapping{Number: 50001, Kind: options.BoolKind}))

	var opts ir.Options
	opts.Set("go_package", ir.MakeString("example.com/foo"))
	opts.Set("deprecated", ir.MakeInt(1))
	opts.Set("my_flag", ir.MakeBool(true))
	opts.Set("(a.b)", ir.MakeBool(false))

	var got descriptorpb.FileOptions
	require.NoError(t, reg.Apply(options.File, &opts, &got))

	want := &descriptorpb.FileOptions{
		GoPackage:  proto.String("example.com/foo"),
		Deprecated: proto.Bool(true),
		UninterpretedOption: []*descriptorpb.UninterpretedOption{{
			Name: []*descriptorpb.UninterpretedOption_NamePart{
				{NamePart: proto.String("a.b"), IsExtension: proto.Bool(true)},
			},
			IdentifierValue: proto.String("false"),
		}},
	}
	// The registered option is not known to descriptorpb, so it is kept as
	// an unknown field.
	assert.Equal(t, scope(t, `50001: 1`), []byte(got.ProtoReflect().GetUnknown()))
	got.ProtoReflect().SetUnknown(nil)
	prototest.AssertMessagesEqual(t, want, &got)
}

func TestRegistryFreezes(t *testing.T) {
	t.Parallel()

	reg := options.NewRegistry()
	require.NoError(t, reg.Register(options.Field, "x", options.Mapping{Number: 50000, Kind: options.StringKind}))
	require.ErrorContains(t, reg.Register(options.Field, "y", options.Mapping{Number: 19500, Kind: options.StringKind}), "reserved")
	require.ErrorContains(t, reg.Register(options.Field, "y", options.Mapping{Number: 19000, Kind: options.StringKind}), "reserved")
	require.Error(t, reg.Register(options.Field, "y", options.Mapping{Number: 0, Kind: options.StringKind}))
	require.Error(t, reg.Register(options.Field, "y", options.Mapping{Number: 1 << 29, Kind: options.StringKind}))
	require.NoError(t, reg.Register(options.Field, "y", options.Mapping{Number: 20000, Kind: options.StringKind}))

	_, err := reg.Encode(options.Field, &ir.Options{})
	require.NoError(t, err)
	require.ErrorIs(t, reg.Register(options.Field, "z", options.Mapping{Number: 50002, Kind: options.StringKind}), options.ErrFrozen)

	m, ok := reg.Lookup(options.Field, "x")
	require.True(t, ok)
	assert.Equal(t, options.StringKind, m.Kind)
}

func TestCoercions(t *testing.T) {
	t.Parallel()

	reg := options.NewRegistry()
	for _, m := range []struct {
		name string
		kind options.ValueKind
	}{
		{"s", options.StringKind},
		{"b", options.BytesKind},
		{"i32", options.Int32Kind},
		{"si64", options.Sint64Kind},
		{"u64", options.Uint64Kind},
		{"d", options.DoubleKind},
		{"f32", options.Fixed32Kind},
	} {
		require.NoError(t, reg.Register(options.Enum, m.name, options.Mapping{Number: protowire.Number(60000 + len(m.name)), Kind: m.kind}))
	}

	encode := func(name string, value ir.Literal) ([]byte, error) {
		var opts ir.Options
		opts.Set(name, value)
		return reg.Encode(options.Enum, &opts)
	}

	tests := []struct {
		name  string
		value ir.Literal
		want  string
	}{
		{"s", ir.MakeInt(42), `60001: {"42"}`},
		{"s", ir.MakeBool(true), `60001: {"true"}`},
		{"b", ir.MakeBool(true), `60001: {1}`},
		{"b", ir.MakeString("hi"), `60001: {"hi"}`},
		{"i32", ir.MakeString("7"), `60003: 7`},
		{"i32", ir.MakeInt(-1), `60003: -1`},
		{"i32", ir.MakeBool(true), `60003: 1`},
		{"i32", ir.MakeBytes([]byte{9, 8}), `60003: 9`},
		{"si64", ir.MakeInt(-1), `60004: 1`},
		{"u64", ir.MakeUint(math.MaxUint64), `60003: -1`},
		{"d", ir.MakeInt(2), `60001: 2.0`},
		{"f32", ir.MakeInt(3), `60003: 3i32`},
	}
	for _, test := range tests {
		got, err := encode(test.name, test.value)
		require.NoError(t, err, "%s = %v", test.name, test.value)
		assert.Equal(t, scope(t, test.want), got, "%s = %v", test.name, test.value)
	}

	_, err := encode("i32", ir.MakeInt(math.MaxInt32+1))
	require.ErrorContains(t, err, "out of range for int32")
	_, err = encode("i32", ir.MakeFloat(1.5))
	require.ErrorContains(t, err, "not an integer")
	_, err = encode("u64", ir.MakeInt(-1))
	require.ErrorContains(t, err, "out of range for uint64")
	_, err = encode("i32", ir.MakeString("abc"))
	require.Error(t, err)
}

func TestSplitName(t *testing.T) {
	t.Parallel()

	parts := options.SplitName("(foo.bar).baz..qux()")
	require.Len(t, parts, 3)
	assert.Equal(t, "foo.bar", parts[0].GetNamePart())
	assert.True(t, parts[0].GetIsExtension())
	assert.Equal(t, "baz", parts[1].GetNamePart())
	assert.False(t, parts[1].GetIsExtension())
	assert.Equal(t, "qux()", parts[2].GetNamePart())
}

func TestParse(t *testing.T) {
	t.Parallel()

	k, err := options.ParseKind("sfixed64")
	require.NoError(t, err)
	assert.Equal(t, options.Sfixed64Kind, k)
	_, err = options.ParseKind("int")
	require.Error(t, err)

	target, err := options.ParseTarget("enum_value")
	require.NoError(t, err)
	assert.Equal(t, options.EnumValue, target)
	target, err = options.ParseTarget("extensionRange")
	require.NoError(t, err)
	assert.Equal(t, options.ExtensionRange, target)
	_, err = options.ParseTarget("nope")
	require.Error(t, err)
}
