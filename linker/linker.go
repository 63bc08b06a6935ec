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
	"fmt"
	"strings"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Stats summarizes a call to [Link].
type Stats struct {
	// The number of placeholders replaced by definitions.
	Replacements int
	// The number of passes over the files, including the last one, which
	// found nothing to replace.
	Passes int
	// The number of placeholders left unresolved.
	Unresolved int
}

// Link replaces the placeholders in files with the definitions they refer
// to, until a pass finds nothing left to replace.
//
// A placeholder is looked up by the symbol of its source node first, in
// every file in order, and then by its name. When the definition lives in
// another file, the referring file gains an import of it. Placeholders that
// remain are reported as warnings, once each.
//
// Collisions between the names of files are reported to handler as errors.
// Linking files that are already linked replaces nothing.
func Link(files []*ir.File, prov typegraph.Provider, handler *reporter.Handler) (Stats, error) {
	symbols := &Symbols{}
	for _, f := range files {
		if err := symbols.Import(f, handler); err != nil {
			return Stats{}, err
		}
	}

	l := &linker{files: files, prov: prov, symbols: symbols}
	var stats Stats
	// Every pass but the last replaces at least one placeholder.
	limit := l.placeholders() + 1
	for {
		if stats.Passes == limit {
			return stats, fmt.Errorf("linker: no fixed point after %d passes", limit)
		}
		stats.Passes++
		n := l.pass()
		stats.Replacements += n
		if n == 0 {
			break
		}
	}

	l.importDefinitions()

	seen := make(map[*ir.Ref]struct{})
	for _, f := range files {
		for slot, field := range ir.TypeSlots(f) {
			ref, ok := (*slot).(*ir.Ref)
			if !ok {
				continue
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			stats.Unresolved++
			pos := field.Pos
			if pos.Unit == "" {
				pos.Unit = f.Source
			}
			handler.HandleWarningf(pos, "failed to resolve %s", l.describe(ref))
		}
	}
	return stats, nil
}

type linker struct {
	files   []*ir.File
	prov    typegraph.Provider
	symbols *Symbols
}

func (l *linker) placeholders() int {
	var n int
	for _, f := range l.files {
		for slot := range ir.TypeSlots(f) {
			if _, ok := (*slot).(*ir.Ref); ok {
				n++
			}
		}
	}
	return n
}

// pass replaces every placeholder that can be resolved, and returns how
// many it replaced.
func (l *linker) pass() int {
	var n int
	for _, f := range l.files {
		for slot := range ir.TypeSlots(f) {
			ref, ok := (*slot).(*ir.Ref)
			if !ok {
				continue
			}
			def, _ := l.resolve(ref)
			if def == nil {
				continue
			}
			*slot = def
			n++
		}
	}
	return n
}

// importDefinitions makes every file import the files defining the types
// it uses. This covers definitions that were never behind a placeholder,
// such as the messages synthesized for a function type declared in another
// unit.
func (l *linker) importDefinitions() {
	for _, f := range l.files {
		if f.External {
			continue
		}
		for slot := range ir.TypeSlots(f) {
			def, ok := (*slot).(ir.TypeDef)
			if !ok {
				continue
			}
			if owner := ir.FileOf(def); owner != nil && owner != f {
				f.AddImport(owner.Path)
			}
		}
	}
}

func (l *linker) resolve(ref *ir.Ref) (ir.TypeDef, *ir.File) {
	if !ref.Source.IsZero() {
		if sym := l.prov.Symbol(ref.Source); !sym.IsZero() {
			for _, f := range l.files {
				if def := f.Definition(sym); def != nil {
					return def, f
				}
			}
		}
	}
	if ref.Name == "" {
		return nil, nil
	}
	return l.symbols.Lookup(strings.TrimPrefix(ref.Name, "."))
}

func (l *linker) describe(ref *ir.Ref) string {
	if !ref.Source.IsZero() {
		return l.prov.TypeString(ref.Source)
	}
	return ref.Name
}
