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

package typeproto

import (
	"path"
	"strings"

	"github.com/bufbuild/typeproto/internal/cases"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
)

// The unit option that sets the package rather than a file option.
const packageOption = "package"

// typesDir is stripped from unit paths, so that sources under types/ are
// laid out as if they were at the root.
const typesDir = "types/"

// unitPaths derives the .proto path and default package of a unit path.
func unitPaths(unitPath string) (protoPath string, parts []string, stem string) {
	rel := strings.TrimPrefix(path.Clean(unitPath), typesDir)
	protoPath = strings.TrimSuffix(rel, path.Ext(rel)) + ".proto"
	if dir := path.Dir(rel); dir != "." {
		parts = strings.Split(dir, "/")
	}
	stem, _, _ = strings.Cut(path.Base(rel), ".")
	return protoPath, parts, stem
}

// newFile creates the file a unit compiles to, with the package and file
// options derived from the unit's path. The config's options apply on top
// of these, and the unit's own options on top of those.
func (c *Compiler) newFile(unit typegraph.Unit, global *ir.Options, h *reporter.Handler) (*ir.File, error) {
	protoPath, parts, stem := unitPaths(unit.Path)

	snake := make([]string, len(parts))
	pascal := make([]string, len(parts))
	for i, p := range parts {
		snake[i] = cases.Snake.Convert(p)
		pascal[i] = cases.Pascal.Convert(p)
	}

	file := ir.NewFile(protoPath, unit.Path, strings.Join(snake, "."))
	opts := &file.Options
	opts.Set("java_multiple_files", ir.MakeBool(true))
	opts.Set("cc_enable_arenas", ir.MakeBool(true))
	opts.Set("optimize_for", ir.MakeEnum(1, "SPEED"))
	if len(parts) > 0 {
		opts.Set("csharp_namespace", ir.MakeString(strings.Join(pascal, ".")))

		javaPrefix := "com"
		if p := c.config().Package.Java; p != "" {
			javaPrefix = p
		}
		opts.Set("java_package", ir.MakeString(javaPrefix+"."+strings.Join(snake, ".")))

		opts.Set("php_namespace", ir.MakeString(strings.Join(pascal, `\`)))
		opts.Set("ruby_package", ir.MakeString(strings.Join(pascal, "::")))
	}
	opts.Set("java_outer_classname", ir.MakeString(cases.Pascal.Convert(stem)+"Proto"))
	if len(parts) > 0 {
		opts.Set("php_metadata_namespace", ir.MakeString(strings.Join(pascal, `\`)+`\PBMetadata`))
	}
	goPackage := strings.Join(snake, "/")
	if p := c.config().Package.Go; p != "" {
		goPackage = path.Join(p, goPackage)
	}
	if goPackage != "" {
		opts.Set("go_package", ir.MakeString(goPackage))
	}
	opts.Merge(global)

	for _, opt := range unit.Options {
		lit, ok := ir.FromConstant(opt.Value)
		if !ok {
			err := h.HandleErrorf(typegraph.Location{Unit: unit.Path}, "file option %s has unsupported value %v", opt.Name, opt.Value)
			if err != nil {
				return nil, err
			}
			continue
		}
		if s, isString := lit.AsString(); isString && opt.Name == packageOption {
			file.Package = s
			continue
		}
		opts.Set(opt.Name, lit)
	}
	if unit.Package != "" {
		file.Package = unit.Package
	}

	for _, imp := range unit.Imports {
		file.Imports = append(file.Imports, ir.Import{Path: imp.Path, Weak: imp.Weak, Public: imp.Public})
	}
	return file, nil
}
