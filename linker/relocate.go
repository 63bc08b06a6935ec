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
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// Relocate places each artificial message at the top level of the file
// compiled from the unit that declares the function it was synthesized for.
//
// A message whose function has no declaration, or whose declaring unit is
// not among files, is reported as a warning and left unplaced. A name
// collision with another definition of the file is an error.
func Relocate(files []*ir.File, artificial []*ir.Message, prov typegraph.Provider, handler *reporter.Handler) error {
	bySource := make(map[string]*ir.File, len(files))
	for _, f := range files {
		if !f.External {
			bySource[f.Source] = f
		}
	}

	for _, msg := range artificial {
		loc, ok := prov.Declaration(prov.Symbol(msg.Source))
		if !ok {
			handler.HandleWarningf(msg.Pos, "cannot place synthesized message %s: %s has no declaration",
				msg.Name, prov.TypeString(msg.Source))
			continue
		}
		f := bySource[loc.Unit]
		if f == nil {
			handler.HandleWarningf(loc, "cannot place synthesized message %s: unit %s is not compiled", msg.Name, loc.Unit)
			continue
		}
		if err := ir.Place(f, msg); err != nil {
			if err := handler.HandleError(reporter.Error(loc, err)); err != nil {
				return err
			}
			continue
		}
		if err := f.Define(typegraph.Symbol{}, ir.RelativeName(msg), msg); err != nil {
			if err := handler.HandleError(reporter.Error(loc, err)); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckRequired reports each of the required named types that no file
// defines. The report is a warning, since the placeholders referring to
// the type are reported again when linking fails to resolve them.
func CheckRequired(files []*ir.File, required []typegraph.Type, prov typegraph.Provider, handler *reporter.Handler) {
	for _, t := range required {
		sym := prov.Symbol(t)
		defined := false
		for _, f := range files {
			if f.Definition(sym) != nil {
				defined = true
				break
			}
		}
		if defined {
			continue
		}
		loc, _ := prov.Declaration(sym)
		handler.HandleWarningf(loc, "failed to resolve type %s", prov.TypeString(t))
	}
}
