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

// Package options encodes IR option values into the options messages of
// descriptor.proto.
//
// Options are looked up by name in a [Registry], which maps each name to a
// field number and type. Options with names the registry does not know are
// kept as uninterpreted options, so that a code generator which understands
// them can still read them.
package options

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/ir"
)

// ErrFrozen is returned when registering an option after the registry has
// been used to encode options.
var ErrFrozen = errors.New("options registry is frozen")

// Registry is a table of known options for each [Target].
//
// A Registry may be extended with [Registry.Register] until its first use by
// [Registry.Encode]. From then on it is read-only, and safe for concurrent
// use.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool
	tables map[Target]map[string]Mapping
}

// NewRegistry returns a registry that knows the standard options of
// descriptor.proto.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[Target]map[string]Mapping)}
	for target, table := range builtins {
		r.tables[target] = make(map[string]Mapping, len(table))
		for name, m := range table {
			r.tables[target][name] = m
		}
	}
	return r
}

// Register adds an option to the table of target, replacing any existing
// option with the same name.
func (r *Registry) Register(target Target, name string, m Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s option %q", ErrFrozen, target, name)
	}
	if err := ir.CheckFieldNumber(int32(m.Number)); err != nil {
		return fmt.Errorf("%s option %q: %w", target, name, err)
	}
	if m.Kind < StringKind || m.Kind > BytesKind {
		return fmt.Errorf("%s option %q: invalid type %v", target, name, m.Kind)
	}
	table := r.tables[target]
	if table == nil {
		table = make(map[string]Mapping)
		r.tables[target] = table
	}
	table[name] = m
	return nil
}

// Lookup returns the mapping for the named option of target.
func (r *Registry) Lookup(target Target, name string) (Mapping, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	m, ok := r.tables[target][name]
	return m, ok
}

func (r *Registry) freeze() {
	if r.frozen.Load() {
		return
	}
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Apply encodes opts and merges the result into dst, which should be the
// options message for target, such as a [*descriptorpb.FileOptions]. Fields
// dst does not know are kept as unknown fields.
func (r *Registry) Apply(target Target, opts *ir.Options, dst proto.Message) error {
	b, err := r.Encode(target, opts)
	if err != nil {
		return err
	}
	if err := (proto.UnmarshalOptions{Merge: true}).Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%s options: %w", target, err)
	}
	return nil
}

// NewOptionsMessage returns an empty options message for target.
func NewOptionsMessage(target Target) proto.Message {
	switch target {
	case File:
		return &descriptorpb.FileOptions{}
	case Message:
		return &descriptorpb.MessageOptions{}
	case Field:
		return &descriptorpb.FieldOptions{}
	case Enum:
		return &descriptorpb.EnumOptions{}
	case EnumValue:
		return &descriptorpb.EnumValueOptions{}
	case Service:
		return &descriptorpb.ServiceOptions{}
	case Method:
		return &descriptorpb.MethodOptions{}
	case Oneof:
		return &descriptorpb.OneofOptions{}
	case ExtensionRange:
		return &descriptorpb.ExtensionRangeOptions{}
	}
	return nil
}

var builtins = map[Target]map[string]Mapping{
	File: {
		"java_package":                  {Number: 1, Kind: StringKind},
		"java_outer_classname":          {Number: 8, Kind: StringKind},
		"java_multiple_files":           {Number: 10, Kind: BoolKind},
		"java_generate_equals_and_hash": {Number: 20, Kind: BoolKind},
		"java_string_check_utf8":        {Number: 27, Kind: BoolKind},
		"optimize_for":                  {Number: 9, Kind: EnumKind, Values: descriptorpb.FileOptions_OptimizeMode_value},
		"go_package":                    {Number: 11, Kind: StringKind},
		"cc_generic_services":           {Number: 16, Kind: BoolKind},
		"java_generic_services":         {Number: 17, Kind: BoolKind},
		"py_generic_services":           {Number: 18, Kind: BoolKind},
		"php_generic_services":          {Number: 42, Kind: BoolKind},
		"deprecated":                    {Number: 23, Kind: BoolKind},
		"cc_enable_arenas":              {Number: 31, Kind: BoolKind},
		"objc_class_prefix":             {Number: 36, Kind: StringKind},
		"csharp_namespace":              {Number: 37, Kind: StringKind},
		"swift_prefix":                  {Number: 39, Kind: StringKind},
		"php_class_prefix":              {Number: 40, Kind: StringKind},
		"php_namespace":                 {Number: 41, Kind: StringKind},
		"php_metadata_namespace":        {Number: 44, Kind: StringKind},
		"ruby_package":                  {Number: 45, Kind: StringKind},
	},
	Field: {
		"ctype":      {Number: 1, Kind: EnumKind, Values: descriptorpb.FieldOptions_CType_value},
		"packed":     {Number: 2, Kind: BoolKind},
		"jstype":     {Number: 6, Kind: EnumKind, Values: descriptorpb.FieldOptions_JSType_value},
		"lazy":       {Number: 5, Kind: BoolKind},
		"deprecated": {Number: 3, Kind: BoolKind},
		"weak":       {Number: 10, Kind: BoolKind},
	},
	Message: {
		"message_set_wire_format":         {Number: 1, Kind: BoolKind},
		"no_standard_descriptor_accessor": {Number: 2, Kind: BoolKind},
		"deprecated":                      {Number: 3, Kind: BoolKind},
		"map_entry":                       {Number: 7, Kind: BoolKind},
	},
	Enum: {
		"allow_alias": {Number: 2, Kind: BoolKind},
		"deprecated":  {Number: 3, Kind: BoolKind},
	},
	EnumValue: {
		"deprecated": {Number: 1, Kind: BoolKind},
	},
	Service: {
		"deprecated": {Number: 33, Kind: BoolKind},
	},
	Method: {
		"deprecated":        {Number: 33, Kind: BoolKind},
		"idempotency_level": {Number: 34, Kind: EnumKind, Values: descriptorpb.MethodOptions_IdempotencyLevel_value},
	},
}
