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
	"context"
	"io"
	"maps"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bufbuild/typeproto/fdp"
	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/linker"
	"github.com/bufbuild/typeproto/mapper"
	"github.com/bufbuild/typeproto/plugin"
	"github.com/bufbuild/typeproto/printer"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/wellknown"
)

// Compiler compiles the units of a type graph into protobuf schemas.
//
// The compilation process involves these steps:
//  1. Creating a file per unit, with options derived from its path.
//  2. Declaring messages, enums and services for each declaration.
//  3. Moving the messages synthesized for method parameters and results
//     next to the declarations they came from.
//  4. Linking references across files, against each other and against the
//     well-known types.
//  5. Numbering fields.
//  6. Emitting descriptors and the text form.
type Compiler struct {
	// The type graph the units are declared in. This field is required.
	Provider typegraph.Provider
	// If nil, [DefaultConfig] is used.
	Config *Config
	// A custom error and warning reporter. If unspecified, compilation
	// fails at the first error, and warnings are only recorded in the
	// result.
	Reporter reporter.Reporter
	Logger   logrus.FieldLogger

	// The filesystem local plugins and wasm modules are looked for in.
	// Defaults to the OS filesystem.
	Fs afero.Fs
	// If set, runs every plugin instead of looking up executables.
	Runner plugin.Runner
}

// Result is the result of a compilation.
type Result struct {
	// Every file, including the external well-known files, in the order
	// they were created.
	Files []*ir.File
	// The descriptors of the compiled files and of the files they import,
	// dependencies first.
	Set *descriptorpb.FileDescriptorSet
	// The text form of each file whose package is not ignored, by path.
	Protos map[string]string
	// The warnings reported during compilation.
	Warnings []reporter.ErrorWithPos
}

// Compiled returns the files that were compiled from units and whose
// package is not ignored, in order.
func (r *Result) Compiled(cfg *Config) []*ir.File {
	var out []*ir.File
	for _, f := range r.Files {
		if !f.External && !cfg.ignored(f.Package) {
			out = append(out, f)
		}
	}
	return out
}

func (c *Compiler) config() *Config {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	return c.Config
}

func (c *Compiler) logger() logrus.FieldLogger {
	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
	return c.Logger
}

func (c *Compiler) fs() afero.Fs {
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return c.Fs
}

// Compile compiles units, each of which becomes one file.
func (c *Compiler) Compile(ctx context.Context, units []typegraph.Unit) (*Result, error) {
	cfg := c.config()
	log := c.logger()
	h := reporter.NewHandler(c.Reporter)

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	global, err := cfg.fileOptions()
	if err != nil {
		return nil, err
	}

	files := make([]*ir.File, 0, len(units))
	for _, unit := range units {
		f, err := c.newFile(unit, &global, h)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	m := mapper.New(c.Provider, h,
		mapper.WithLogger(log),
		mapper.WithNativeOptionals(cfg.Optionals315))
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.WithField("unit", unit.Path).Info("processing unit")
		for _, decl := range unit.Declarations {
			if err := m.Declare(files[i], decl); err != nil {
				return nil, err
			}
		}
	}

	files = appendWellKnown(files)

	if err := linker.Relocate(files, m.Artificial(), c.Provider, h); err != nil {
		return nil, err
	}
	linker.CheckRequired(files, m.Required(), c.Provider, h)
	for _, f := range files {
		ir.MarkParents(f)
	}
	stats, err := linker.Link(files, c.Provider, h)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"replacements": stats.Replacements,
		"passes":       stats.Passes,
		"unresolved":   stats.Unresolved,
	}).Debug("linked files")

	for _, f := range files {
		if f.External {
			continue
		}
		if err := ir.NormalizeFile(f); err != nil {
			if err := h.HandleError(reporter.Error(typegraph.Location{Unit: f.Source}, err)); err != nil {
				return nil, err
			}
		}
	}
	if err := h.Error(); err != nil {
		return nil, err
	}

	set, err := fdp.DescriptorSet(files, fdp.WithRegistry(registry), fdp.WithSourceInfo(cfg.SourceInfo))
	if err != nil {
		if err := reportAll(h, err); err != nil {
			return nil, err
		}
	}
	if err := h.Error(); err != nil {
		return nil, err
	}

	res := &Result{
		Files:    files,
		Set:      set,
		Protos:   make(map[string]string),
		Warnings: h.Warnings(),
	}
	for _, f := range res.Compiled(cfg) {
		res.Protos[f.Path] = printer.String(f)
	}
	return res, nil
}

// appendWellKnown adds the well-known files that no compiled file
// replaces.
func appendWellKnown(files []*ir.File) []*ir.File {
	paths := make(map[string]bool, len(files))
	for _, f := range files {
		paths[f.Path] = true
	}
	for _, f := range wellknown.Files() {
		if !paths[f.Path] {
			files = append(files, f)
		}
	}
	return files
}

// reportAll reports each of the errors joined in err.
func reportAll(h *reporter.Handler, err error) error {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return h.HandleError(err)
	}
	for _, err := range joined.Unwrap() {
		if err := h.HandleError(err); err != nil {
			return err
		}
	}
	return nil
}

// Generate runs every configured plugin once per package of the compiled
// files.
func (c *Compiler) Generate(ctx context.Context, res *Result) ([]plugin.Output, error) {
	cfg := c.config()

	byPackage := make(map[string][]string)
	for _, f := range res.Compiled(cfg) {
		byPackage[f.Package] = append(byPackage[f.Package], f.Path)
	}

	var jobs []plugin.Job
	for _, name := range slices.Sorted(maps.Keys(cfg.Plugins)) {
		pc := cfg.Plugins[name]
		runner := c.runner(name, pc)
		for _, pkg := range slices.Sorted(maps.Keys(byPackage)) {
			jobs = append(jobs, plugin.Job{
				Plugin:  name,
				Package: pkg,
				Request: plugin.NewRequest(byPackage[pkg], res.Set, pc.Params),
				Runner:  runner,
			})
		}
	}
	return plugin.Generate(ctx, jobs, plugin.GenerateOptions{
		Parallelism: cfg.Parallelism,
		Logger:      c.logger(),
	})
}

func (c *Compiler) runner(name string, pc PluginConfig) plugin.Runner {
	switch {
	case c.Runner != nil:
		return c.Runner
	case pc.Wasm != "":
		return &plugin.WasmRunner{
			Modules: map[string]string{name: pc.Wasm},
			Fs:      c.fs(),
			Logger:  c.logger(),
		}
	}
	r := &plugin.ExecRunner{Fs: c.fs(), Logger: c.logger()}
	if pc.Exec != "" {
		r.Exec = map[string]string{name: pc.Exec}
	}
	return r
}

// ignored returns whether pkg matches any of the ignore patterns.
func (c *Config) ignored(pkg string) bool {
	for _, pattern := range c.Ignore {
		if ok, err := doublestar.Match(pattern, pkg); err == nil && ok {
			return true
		}
	}
	return false
}
