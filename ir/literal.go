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

package ir

import (
	"go/constant"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// LiteralKind is the kind of value a [Literal] holds.
type LiteralKind int8

const (
	InvalidLiteral LiteralKind = iota
	StringLiteral
	IntLiteral
	UintLiteral
	FloatLiteral
	BoolLiteral
	EnumLiteral
	BytesLiteral
)

// Literal is an option value: a string, integer, float, bool, enum tag or
// byte string.
//
// The zero Literal is invalid.
type Literal struct {
	kind LiteralKind
	text string // String, Bytes, and the name of an Enum.
	bits uint64 // Everything numeric.
}

// MakeString returns a string literal.
func MakeString(s string) Literal {
	return Literal{kind: StringLiteral, text: s}
}

// MakeInt returns a signed integer literal.
func MakeInt(v int64) Literal {
	return Literal{kind: IntLiteral, bits: uint64(v)}
}

// MakeUint returns an unsigned integer literal. Values that fit in an int64
// are normalized to [IntLiteral].
func MakeUint(v uint64) Literal {
	if v <= math.MaxInt64 {
		return MakeInt(int64(v))
	}
	return Literal{kind: UintLiteral, bits: v}
}

// MakeFloat returns a floating-point literal.
func MakeFloat(v float64) Literal {
	return Literal{kind: FloatLiteral, bits: math.Float64bits(v)}
}

// MakeBool returns a boolean literal.
func MakeBool(v bool) Literal {
	var bits uint64
	if v {
		bits = 1
	}
	return Literal{kind: BoolLiteral, bits: bits}
}

// MakeEnum returns an enum tag with the given number. name may be empty if
// the value's name is unknown.
func MakeEnum(number int32, name string) Literal {
	return Literal{kind: EnumLiteral, text: name, bits: uint64(int64(number))}
}

// MakeBytes returns a byte string literal.
func MakeBytes(b []byte) Literal {
	return Literal{kind: BytesLiteral, text: string(b)}
}

// FromConstant converts a value obtained from a type graph into a literal.
//
// Integers that fit in neither an int64 nor a uint64 are not representable,
// and neither are complex or unknown values.
func FromConstant(v constant.Value) (Literal, bool) {
	if v == nil {
		return Literal{}, false
	}
	switch v.Kind() {
	case constant.String:
		return MakeString(constant.StringVal(v)), true
	case constant.Bool:
		return MakeBool(constant.BoolVal(v)), true
	case constant.Int:
		if n, exact := constant.Int64Val(v); exact {
			return MakeInt(n), true
		}
		if n, exact := constant.Uint64Val(v); exact {
			return MakeUint(n), true
		}
	case constant.Float:
		f, _ := constant.Float64Val(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return MakeInt(int64(f)), true
		}
		return MakeFloat(f), true
	}
	return Literal{}, false
}

// Kind returns the kind of this literal.
func (l Literal) Kind() LiteralKind { return l.kind }

// IsZero returns whether this is the zero (invalid) literal.
func (l Literal) IsZero() bool { return l.kind == InvalidLiteral }

// AsString returns the value of a string literal.
func (l Literal) AsString() (string, bool) {
	return l.text, l.kind == StringLiteral
}

// AsInt returns the value of a signed integer literal.
func (l Literal) AsInt() (int64, bool) {
	return int64(l.bits), l.kind == IntLiteral
}

// AsUint returns the value of an unsigned integer literal that does not fit
// in an int64.
func (l Literal) AsUint() (uint64, bool) {
	return l.bits, l.kind == UintLiteral
}

// AsFloat returns the value of a floating-point literal.
func (l Literal) AsFloat() (float64, bool) {
	return math.Float64frombits(l.bits), l.kind == FloatLiteral
}

// AsBool returns the value of a boolean literal.
func (l Literal) AsBool() (bool, bool) {
	return l.bits != 0, l.kind == BoolLiteral
}

// AsEnum returns the number and name of an enum tag.
func (l Literal) AsEnum() (number int32, name string, ok bool) {
	return int32(int64(l.bits)), l.text, l.kind == EnumLiteral
}

// AsBytes returns the value of a byte string literal.
func (l Literal) AsBytes() ([]byte, bool) {
	if l.kind != BytesLiteral {
		return nil, false
	}
	return []byte(l.text), true
}

// Float returns this literal's numeric value as a float64, for literals of
// any numeric kind.
func (l Literal) Float() (float64, bool) {
	switch l.kind {
	case IntLiteral:
		return float64(int64(l.bits)), true
	case UintLiteral:
		return float64(l.bits), true
	case FloatLiteral:
		return math.Float64frombits(l.bits), true
	case EnumLiteral:
		return float64(int32(int64(l.bits))), true
	}
	return 0, false
}

// NumberKind returns the narrowest scalar type that holds a numeric literal:
// DOUBLE for non-integers, then INT32, UINT32, INT64 and UINT64 in order of
// range. Non-numeric literals have kind 0.
func (l Literal) NumberKind() descriptorpb.FieldDescriptorProto_Type {
	switch l.kind {
	case FloatLiteral:
		f := math.Float64frombits(l.bits)
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		}
		if math.Abs(f) >= 1<<63 {
			return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		}
		return MakeInt(int64(f)).NumberKind()
	case IntLiteral:
		v := int64(l.bits)
		switch {
		case v < math.MinInt32 || v > math.MaxUint32:
			return descriptorpb.FieldDescriptorProto_TYPE_INT64
		case v > math.MaxInt32:
			return descriptorpb.FieldDescriptorProto_TYPE_UINT32
		default:
			return descriptorpb.FieldDescriptorProto_TYPE_INT32
		}
	case UintLiteral:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT64
	case EnumLiteral:
		return descriptorpb.FieldDescriptorProto_TYPE_ENUM
	}
	return 0
}

// String returns the text form of this literal, as it appears in a .proto
// file.
func (l Literal) String() string {
	switch l.kind {
	case StringLiteral, BytesLiteral:
		return Quote(l.text)
	case IntLiteral:
		return strconv.FormatInt(int64(l.bits), 10)
	case UintLiteral:
		return strconv.FormatUint(l.bits, 10)
	case FloatLiteral:
		return FormatFloat(math.Float64frombits(l.bits))
	case BoolLiteral:
		return strconv.FormatBool(l.bits != 0)
	case EnumLiteral:
		if l.text != "" {
			return l.text
		}
		return strconv.FormatInt(int64(int32(int64(l.bits))), 10)
	}
	return "<invalid>"
}

// FormatFloat formats a float the way protoc accepts it in option values.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Quote returns s as a double-quoted protobuf string literal, using C-style
// escapes for quotes, backslashes and all bytes outside of printable ASCII.
func Quote(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	buf.WriteString(CEscape(s))
	buf.WriteByte('"')
	return buf.String()
}

// CEscape escapes s the way protoc escapes byte strings: printable ASCII is
// kept, the usual control characters use their short escapes, and every
// other byte becomes a three-digit octal escape.
func CEscape(s string) string {
	var buf strings.Builder
	for i := range len(s) {
		c := s[i]
		switch c {
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '"':
			buf.WriteString(`\"`)
		case '\'':
			buf.WriteString(`\'`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			if c < 0x20 || c >= 0x7f {
				buf.WriteByte('\\')
				buf.WriteByte('0' + c>>6)
				buf.WriteByte('0' + (c>>3)&7)
				buf.WriteByte('0' + c&7)
				continue
			}
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
