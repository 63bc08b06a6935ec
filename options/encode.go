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

package options

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/internal"
	"github.com/bufbuild/typeproto/ir"
)

// Encode encodes opts as the wire form of target's options message.
//
// Options are encoded in order. Names known to the registry are encoded as
// their field, converting the value to the field's type if needed. Other
// names are encoded as a [descriptorpb.UninterpretedOption].
//
// The first call to Encode freezes the registry.
func (r *Registry) Encode(target Target, opts *ir.Options) ([]byte, error) {
	r.freeze()

	var b []byte
	for name, value := range opts.All() {
		m, ok := r.tables[target][name]
		if !ok {
			var err error
			b, err = appendUninterpreted(b, name, value)
			if err != nil {
				return nil, fmt.Errorf("%s option %s: %w", target, name, err)
			}
			continue
		}
		var err error
		b, err = appendValue(b, m, value)
		if err != nil {
			return nil, fmt.Errorf("%s option %s: %w", target, name, err)
		}
	}
	return b, nil
}

func appendValue(b []byte, m Mapping, value ir.Literal) ([]byte, error) {
	b = protowire.AppendTag(b, m.Number, m.Kind.WireType())
	switch m.Kind {
	case StringKind:
		return protowire.AppendString(b, toText(value)), nil
	case BytesKind:
		return protowire.AppendBytes(b, toBytes(value)), nil
	case BoolKind:
		return protowire.AppendVarint(b, protowire.EncodeBool(toBool(value))), nil
	case DoubleKind:
		f, err := toFloat(m, value)
		if err != nil {
			return nil, err
		}
		return protowire.AppendFixed64(b, math.Float64bits(f)), nil
	case FloatKind:
		f, err := toFloat(m, value)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("value %v is out of range for float", f)
		}
		return protowire.AppendFixed32(b, math.Float32bits(float32(f))), nil
	}

	f, err := toFloat(m, value)
	if err != nil {
		return nil, err
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("value %v is not an integer", f)
	}
	// Integers which do not fit in a float64 exactly are taken from the
	// literal itself.
	n, isUint := exactInt(value, f)

	switch m.Kind {
	case EnumKind, Int32Kind:
		if isUint || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, uint64(n)), nil
	case Sint32Kind:
		if isUint || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, protowire.EncodeZigZag(n)), nil
	case Sfixed32Kind:
		if isUint || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendFixed32(b, uint32(int32(n))), nil
	case Uint32Kind:
		if isUint || n < 0 || n > math.MaxUint32 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, uint64(n)), nil
	case Fixed32Kind:
		if isUint || n < 0 || n > math.MaxUint32 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendFixed32(b, uint32(n)), nil
	case Int64Kind:
		if isUint {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, uint64(n)), nil
	case Sint64Kind:
		if isUint {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, protowire.EncodeZigZag(n)), nil
	case Sfixed64Kind:
		if isUint {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendFixed64(b, uint64(n)), nil
	case Uint64Kind:
		if !isUint && n < 0 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendVarint(b, uint64(n)), nil
	case Fixed64Kind:
		if !isUint && n < 0 {
			return nil, outOfRange(value, m.Kind)
		}
		return protowire.AppendFixed64(b, uint64(n)), nil
	}
	return nil, fmt.Errorf("unsupported option type %v", m.Kind)
}

func outOfRange(value ir.Literal, kind ValueKind) error {
	return fmt.Errorf("value %s is out of range for %s", value, kind)
}

// exactInt returns the integer value of a numeric literal that converted to
// the integral float f. If isUint is set, n holds the bits of a uint64 that
// exceeds math.MaxInt64.
func exactInt(value ir.Literal, f float64) (n int64, isUint bool) {
	if i, ok := value.AsInt(); ok {
		return i, false
	}
	if u, ok := value.AsUint(); ok {
		return int64(u), true
	}
	if num, _, ok := value.AsEnum(); ok {
		return int64(num), false
	}
	if f >= 1<<63 {
		return int64(uint64(f)), true
	}
	return int64(f), false
}

// toText converts a literal to the contents of a string field.
func toText(value ir.Literal) string {
	if s, ok := value.AsString(); ok {
		return s
	}
	if b, ok := value.AsBytes(); ok {
		return string(b)
	}
	return value.String()
}

// toBytes converts a literal to the contents of a bytes field.
func toBytes(value ir.Literal) []byte {
	if b, ok := value.AsBool(); ok {
		if b {
			return []byte{1}
		}
		return []byte{0}
	}
	if b, ok := value.AsBytes(); ok {
		return b
	}
	return []byte(toText(value))
}

// toBool converts a literal to a bool.
func toBool(value ir.Literal) bool {
	switch value.Kind() {
	case ir.BoolLiteral:
		b, _ := value.AsBool()
		return b
	case ir.StringLiteral:
		s, _ := value.AsString()
		return s != "" && s != "false"
	case ir.BytesLiteral:
		b, _ := value.AsBytes()
		return len(b) > 0
	default:
		f, _ := value.Float()
		return f != 0
	}
}

// toFloat converts a literal to a number.
func toFloat(m Mapping, value ir.Literal) (float64, error) {
	switch value.Kind() {
	case ir.BoolLiteral:
		if b, _ := value.AsBool(); b {
			return 1, nil
		}
		return 0, nil
	case ir.BytesLiteral:
		b, _ := value.AsBytes()
		if len(b) == 0 {
			return 0, nil
		}
		return float64(b[0]), nil
	case ir.StringLiteral:
		s, _ := value.AsString()
		if n, ok := m.Values[s]; ok && m.Kind == EnumKind {
			return float64(n), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to %s", s, m.Kind)
		}
		return f, nil
	case ir.EnumLiteral:
		num, name, _ := value.AsEnum()
		if n, ok := m.Values[name]; ok && name != "" {
			return float64(n), nil
		}
		return float64(num), nil
	}
	f, ok := value.Float()
	if !ok {
		return 0, fmt.Errorf("cannot convert %v to %s", value, m.Kind)
	}
	return f, nil
}

// appendUninterpreted appends value as an uninterpreted option named name.
func appendUninterpreted(b []byte, name string, value ir.Literal) ([]byte, error) {
	opt := &descriptorpb.UninterpretedOption{Name: SplitName(name)}
	if len(opt.Name) == 0 {
		return nil, fmt.Errorf("empty option name")
	}
	switch value.Kind() {
	case ir.StringLiteral, ir.BytesLiteral:
		opt.StringValue = []byte(toText(value))
	case ir.IntLiteral:
		n, _ := value.AsInt()
		if n < 0 {
			opt.NegativeIntValue = proto.Int64(n)
		} else {
			opt.PositiveIntValue = proto.Uint64(uint64(n))
		}
	case ir.UintLiteral:
		n, _ := value.AsUint()
		opt.PositiveIntValue = proto.Uint64(n)
	case ir.FloatLiteral:
		f, _ := value.AsFloat()
		opt.DoubleValue = proto.Float64(f)
	case ir.BoolLiteral:
		opt.IdentifierValue = proto.String(value.String())
	case ir.EnumLiteral:
		num, enumName, _ := value.AsEnum()
		switch {
		case enumName != "":
			opt.IdentifierValue = proto.String(enumName)
		case num < 0:
			opt.NegativeIntValue = proto.Int64(int64(num))
		default:
			opt.PositiveIntValue = proto.Uint64(uint64(num))
		}
	default:
		return nil, fmt.Errorf("invalid value")
	}

	msg, err := proto.MarshalOptions{Deterministic: true}.Marshal(opt)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, internal.UninterpretedOptionsTag, protowire.BytesType)
	return protowire.AppendBytes(b, msg), nil
}

// SplitName splits a dotted option name into its parts. A parenthesized
// segment, such as "(foo.bar)", is a single extension part. Empty parts are
// skipped.
func SplitName(name string) []*descriptorpb.UninterpretedOption_NamePart {
	var parts []*descriptorpb.UninterpretedOption_NamePart
	for name != "" {
		if rest, ok := strings.CutPrefix(name, "("); ok {
			if end := strings.IndexByte(rest, ')'); end >= 0 {
				part := rest[:end]
				name = strings.TrimPrefix(rest[end+1:], ".")
				if part != "" {
					parts = append(parts, &descriptorpb.UninterpretedOption_NamePart{
						NamePart:    proto.String(part),
						IsExtension: proto.Bool(true),
					})
				}
				continue
			}
		}
		var part string
		part, name, _ = strings.Cut(name, ".")
		if part == "" {
			continue
		}
		parts = append(parts, &descriptorpb.UninterpretedOption_NamePart{
			NamePart:    proto.String(part),
			IsExtension: proto.Bool(false),
		})
	}
	return parts
}
