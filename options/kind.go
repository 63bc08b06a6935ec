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
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// Target is the kind of element an option applies to. Each target has its own
// options message in descriptor.proto, and its own table of option names.
type Target int8

const (
	File Target = iota + 1
	Message
	Field
	Enum
	EnumValue
	Service
	Method
	Oneof
	ExtensionRange
)

var targetNames = [...]string{
	File:           "file",
	Message:        "message",
	Field:          "field",
	Enum:           "enum",
	EnumValue:      "enumValue",
	Service:        "service",
	Method:         "method",
	Oneof:          "oneof",
	ExtensionRange: "extensionRange",
}

// String implements [fmt.Stringer].
func (t Target) String() string {
	if t < File || int(t) >= len(targetNames) {
		return fmt.Sprintf("Target(%d)", int(t))
	}
	return targetNames[t]
}

// ParseTarget parses the name of a target, such as "file" or "enumValue".
// Matching ignores case and underscores, so "enum_value" is also accepted.
func ParseTarget(s string) (Target, error) {
	key := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for t := File; t <= ExtensionRange; t++ {
		if strings.ToLower(targetNames[t]) == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown option target %q", s)
}

// ValueKind is the protobuf type of an option's value.
type ValueKind int8

const (
	StringKind ValueKind = iota + 1
	BoolKind
	EnumKind
	Int32Kind
	Int64Kind
	Uint32Kind
	Uint64Kind
	DoubleKind
	FloatKind
	Sint32Kind
	Sint64Kind
	Fixed32Kind
	Fixed64Kind
	Sfixed32Kind
	Sfixed64Kind
	BytesKind
)

var kindNames = [...]string{
	StringKind:   "string",
	BoolKind:     "bool",
	EnumKind:     "enum",
	Int32Kind:    "int32",
	Int64Kind:    "int64",
	Uint32Kind:   "uint32",
	Uint64Kind:   "uint64",
	DoubleKind:   "double",
	FloatKind:    "float",
	Sint32Kind:   "sint32",
	Sint64Kind:   "sint64",
	Fixed32Kind:  "fixed32",
	Fixed64Kind:  "fixed64",
	Sfixed32Kind: "sfixed32",
	Sfixed64Kind: "sfixed64",
	BytesKind:    "bytes",
}

// String implements [fmt.Stringer].
func (k ValueKind) String() string {
	if k < StringKind || int(k) >= len(kindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses the name of a value kind, as written in a .proto file.
func ParseKind(s string) (ValueKind, error) {
	for k := StringKind; k <= BytesKind; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown option type %q", s)
}

// WireType returns the wire type values of this kind are encoded with.
func (k ValueKind) WireType() protowire.Type {
	switch k {
	case StringKind, BytesKind:
		return protowire.BytesType
	case DoubleKind, Fixed64Kind, Sfixed64Kind:
		return protowire.Fixed64Type
	case FloatKind, Fixed32Kind, Sfixed32Kind:
		return protowire.Fixed32Type
	default:
		return protowire.VarintType
	}
}

// Mapping describes how to encode an option: the field number it has in its
// target's options message, and the type of its value.
type Mapping struct {
	Number protowire.Number
	Kind   ValueKind
	// For EnumKind, the numbers of the enum's values by name. Options whose
	// value is given by name can only be encoded if the name is present.
	Values map[string]int32
}
