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

package linker

import (
	"sync"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Symbols is a symbol table that maps the fully-qualified names of all
// definitions and enum values to the file that declares them. It is used to
// enforce uniqueness of names across all files of a compilation, and to
// resolve references by name.
//
// This type is thread-safe.
type Symbols struct {
	mu      sync.Mutex
	files   map[*ir.File]struct{}
	symbols map[string]symbolEntry
}

type symbolEntry struct {
	def         ir.TypeDef // Nil for enum values.
	file        *ir.File
	pos         typegraph.Location
	isEnumValue bool
}

// Import populates the symbol table with all definitions and enum values of
// the given file. If s is nil or if f has already been imported into s, this
// returns immediately without doing anything. If any collisions in names are
// identified, they are reported to handler and the symbol table is not
// updated.
func (s *Symbols) Import(f *ir.File, handler *reporter.Handler) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[f]; ok {
		// already imported
		return nil
	}

	// first pass: check for conflicts
	entries := collect(f)
	added := make(map[string]symbolEntry, len(entries))
	var collided bool
	for _, e := range entries {
		existing, ok := s.symbols[e.name]
		if !ok {
			existing, ok = added[e.name]
		}
		if ok {
			collided = true
			if err := reportSymbolCollision(e.pos, e.name, e.isEnumValue, existing, handler); err != nil {
				return err
			}
			continue
		}
		added[e.name] = e.symbolEntry
	}
	if collided {
		return nil
	}

	// second pass: commit all symbols
	if s.symbols == nil {
		s.symbols = make(map[string]symbolEntry)
	}
	for name, e := range added {
		s.symbols[name] = e
	}
	if s.files == nil {
		s.files = make(map[*ir.File]struct{})
	}
	s.files[f] = struct{}{}
	return nil
}

// Lookup returns the definition with the given fully-qualified name, and
// the file that declares it. It returns nil if there is no such definition;
// enum values are not definitions.
func (s *Symbols) Lookup(name string) (ir.TypeDef, *ir.File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.symbols[name]
	if !ok || e.def == nil {
		return nil, nil
	}
	return e.def, e.file
}

func reportSymbolCollision(pos typegraph.Location, name string, additionIsEnumVal bool, existing symbolEntry, handler *reporter.Handler) error {
	// because of weird scoping for enum values, provide more context in error message
	// if this conflict is with an enum value
	var suffix string
	if additionIsEnumVal || existing.isEnumValue {
		suffix = "; protobuf uses C++ scoping rules for enum values, so they exist in the scope enclosing the enum"
	}
	return handler.HandleErrorf(pos, "symbol %q already defined at %v%s", name, existing.pos, suffix)
}

type namedEntry struct {
	name string
	symbolEntry
}

// collect lists the names f declares, in declaration order.
func collect(f *ir.File) []namedEntry {
	var entries []namedEntry
	for def := range ir.Scopes(f) {
		pos := position(def, f)
		name := ir.FullName(def)
		entries = append(entries, namedEntry{name, symbolEntry{def: def, file: f, pos: pos}})

		enum, ok := def.(*ir.Enum)
		if !ok {
			continue
		}
		scope := ""
		if dot := len(name) - len(enum.Name) - 1; dot > 0 {
			scope = name[:dot+1]
		}
		for _, stmt := range enum.Body().Statements() {
			if v, ok := stmt.(*ir.EnumValue); ok {
				vpos := v.Pos
				if vpos.Unit == "" {
					vpos = pos
				}
				entries = append(entries, namedEntry{scope + v.Name, symbolEntry{file: f, pos: vpos, isEnumValue: true}})
			}
		}
	}
	return entries
}

// position returns where def is declared, falling back to its file.
func position(def ir.TypeDef, f *ir.File) typegraph.Location {
	var pos typegraph.Location
	switch def := def.(type) {
	case *ir.Message:
		pos = def.Pos
	case *ir.Enum:
		pos = def.Pos
	case *ir.Service:
		pos = def.Pos
	}
	if pos.Unit == "" {
		pos.Unit = f.Source
		if pos.Unit == "" {
			pos.Unit = f.Path
		}
	}
	return pos
}
