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

package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bufbuild/typeproto"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/typegraph/gotypes"
	"github.com/bufbuild/typeproto/typegraph/memgraph"
)

const defaultConfigFile = "typeproto.yaml"

type cmdCompile struct {
	gs *globalState

	configPath string
	outDir     string
	yamlPath   string
	goDir      string
	verbose    bool
}

func newCompileCommand(gs *globalState) *cobra.Command {
	c := &cmdCompile{gs: gs}
	cmd := &cobra.Command{
		Use:   "compile [flags] [packages...]",
		Short: "Compile units to .proto files and run the configured plugins",
		Long: `Compile units to .proto files and run the configured plugins.

Units are read from the YAML file given with --yaml. Otherwise, the Go
packages matching the arguments are loaded from the directory given with
--go, one unit per source file.`,
		RunE: c.run,
	}
	c.flags(cmd.Flags())
	return cmd
}

func (c *cmdCompile) flags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default "+defaultConfigFile+" if present)")
	flags.StringVarP(&c.outDir, "out-dir", "o", "", "output directory, overriding the config")
	flags.StringVar(&c.yamlPath, "yaml", "", "read units from a YAML file")
	flags.StringVar(&c.goDir, "go", ".", "directory Go packages are loaded from")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log progress")
}

func (c *cmdCompile) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := c.logger()

	cfg, err := c.config()
	if err != nil {
		return err
	}

	prov, units, err := c.load(cmd, args)
	if err != nil {
		return err
	}

	warn := c.color(color.FgYellow).Sprint("warning:")
	fail := c.color(color.FgRed).Sprint("error:")
	var failed bool
	compiler := typeproto.Compiler{
		Provider: prov,
		Config:   cfg,
		Logger:   log,
		Fs:       c.gs.fs,
		Reporter: reporter.NewReporter(
			func(err reporter.ErrorWithPos) error {
				failed = true
				fmt.Fprintln(c.gs.stderr, fail, err)
				return nil
			},
			func(err reporter.ErrorWithPos) {
				fmt.Fprintln(c.gs.stderr, warn, err)
			},
		),
	}

	res, err := compiler.Compile(ctx, units)
	if err != nil {
		if failed && errors.Is(err, reporter.ErrInvalidSource) {
			return errors.New("compilation failed")
		}
		return err
	}
	generated, err := compiler.Generate(ctx, res)
	if err != nil {
		return err
	}
	if err := compiler.WriteOutputs(c.gs.fs, res, generated); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"files":    len(res.Protos),
		"warnings": len(res.Warnings),
	}).Info("done")
	return nil
}

// config loads the config file, then applies the environment and flags
// on top of it. The default config file may be missing.
func (c *cmdCompile) config() (*typeproto.Config, error) {
	path := c.configPath
	if path == "" {
		path = defaultConfigFile
	}
	cfg, err := typeproto.LoadConfig(c.gs.fs, path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && c.configPath == "":
		cfg = typeproto.DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.ApplyEnv(c.gs.lookupEnv); err != nil {
		return nil, err
	}
	if c.outDir != "" {
		cfg.OutDir = c.outDir
	}
	return cfg, nil
}

func (c *cmdCompile) load(cmd *cobra.Command, args []string) (typegraph.Provider, []typegraph.Unit, error) {
	if c.yamlPath != "" {
		if len(args) > 0 {
			return nil, nil, errors.New("package arguments cannot be combined with --yaml")
		}
		f, err := c.gs.fs.Open(c.yamlPath)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		g, units, err := memgraph.LoadYAML(f)
		if err != nil {
			return nil, nil, err
		}
		return g, units, nil
	}

	if len(args) == 0 {
		args = []string{"./..."}
	}
	g, err := gotypes.Load(cmd.Context(), c.goDir, args...)
	if err != nil {
		return nil, nil, err
	}
	return g, g.Units(), nil
}

func (c *cmdCompile) logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(c.gs.stderr)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    c.gs.noColor,
		DisableTimestamp: true,
	})
	log.SetLevel(logrus.WarnLevel)
	if c.verbose {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func (c *cmdCompile) color(attrs ...color.Attribute) *color.Color {
	col := color.New(attrs...)
	if c.gs.noColor {
		col.DisableColor()
	} else {
		col.EnableColor()
	}
	return col
}
