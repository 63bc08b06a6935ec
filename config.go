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
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v3"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/options"
)

// Config configures a [Compiler]. The zero Config is not useful; start from
// [DefaultConfig] or [LoadConfig].
type Config struct {
	Package PackageConfig `yaml:"package"`
	// The directory outputs are written to.
	OutDir string `yaml:"outDir"`
	// Whether .proto files are written.
	Proto bool `yaml:"proto"`
	// Whether the descriptor set is written to request.json.
	Dump bool `yaml:"dump"`
	// Whether optional properties become proto3 optional fields, rather
	// than single-member oneofs.
	Optionals315 bool `yaml:"optionals315"`
	// Whether descriptors carry source code info.
	SourceInfo bool `yaml:"sourceInfo"`
	// Glob patterns of packages that are neither printed nor generated.
	Ignore []string `yaml:"ignore"`
	// File options set on every file, after the computed defaults.
	Options map[string]any `yaml:"options"`
	// Extra options, by target and name.
	Extend map[string]map[string]Extension `yaml:"extend"`
	// Code generators to run, by name.
	Plugins map[string]PluginConfig `yaml:"plugins"`
	// The number of plugins run at once. Zero or less means no limit.
	Parallelism int `yaml:"parallelism"`
}

// PackageConfig holds the prefixes of language-specific package options.
type PackageConfig struct {
	Go   string `yaml:"go"`
	Java string `yaml:"java"`
}

// Extension maps an option name to a field of an options message.
type Extension struct {
	Field int32  `yaml:"field"`
	Type  string `yaml:"type"`
	// For enum options, the numbers of the enum's values by name.
	Values map[string]int32 `yaml:"values"`
}

// PluginConfig configures one code generator.
type PluginConfig struct {
	// The command line to run instead of protoc-gen-<name>.
	Exec string
	// A WebAssembly module to run instead of an executable.
	Wasm string
	// The directory outputs are written to, relative to the config's
	// OutDir.
	OutDir string
	// Every other key of the plugin's config, passed as the request's
	// parameter.
	Params map[string]any
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (p *PluginConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	take := func(key string) (string, error) {
		v, ok := raw[key]
		if !ok {
			return "", nil
		}
		delete(raw, key)
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("line %d: plugin %s must be a string", value.Line, key)
		}
		return s, nil
	}
	var err error
	if p.Exec, err = take("exec"); err != nil {
		return err
	}
	if p.Wasm, err = take("wasm"); err != nil {
		return err
	}
	if p.OutDir, err = take("outDir"); err != nil {
		return err
	}
	if len(raw) > 0 {
		p.Params = raw
	}
	return nil
}

// envConfig holds the settings that may be overridden from the environment.
type envConfig struct {
	OutDir       *string `envconfig:"TYPEPROTO_OUT_DIR"`
	Proto        *bool   `envconfig:"TYPEPROTO_PROTO"`
	Dump         *bool   `envconfig:"TYPEPROTO_DUMP"`
	Optionals315 *bool   `envconfig:"TYPEPROTO_OPTIONALS315"`
	Parallelism  *int    `envconfig:"TYPEPROTO_PARALLELISM"`
}

// DefaultConfig returns the configuration used when no config file is
// given.
func DefaultConfig() *Config {
	return &Config{
		OutDir: ".",
		Proto:  true,
		Ignore: []string{"google.protobuf"},
	}
}

// LoadConfig reads a YAML config file from fs. Settings missing from the
// file keep their defaults.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadConfig(f)
}

// ReadConfig is like [LoadConfig], but reads from r.
func ReadConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from TYPEPROTO_* environment variables, as
// looked up by lookup. If lookup is nil, the process environment is used.
func (c *Config) ApplyEnv(lookup func(key string) (string, bool)) error {
	var env envConfig
	var err error
	if lookup != nil {
		err = envconfig.Process("", &env, lookup)
	} else {
		err = envconfig.Process("", &env)
	}
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if env.OutDir != nil {
		c.OutDir = *env.OutDir
	}
	if env.Proto != nil {
		c.Proto = *env.Proto
	}
	if env.Dump != nil {
		c.Dump = *env.Dump
	}
	if env.Optionals315 != nil {
		c.Optionals315 = *env.Optionals315
	}
	if env.Parallelism != nil {
		c.Parallelism = *env.Parallelism
	}
	return nil
}

// Registry returns the option registry with the config's extensions
// registered.
func (c *Config) Registry() (*options.Registry, error) {
	reg := options.NewRegistry()
	for _, targetName := range slices.Sorted(maps.Keys(c.Extend)) {
		target, err := options.ParseTarget(targetName)
		if err != nil {
			return nil, fmt.Errorf("extend: %w", err)
		}
		exts := c.Extend[targetName]
		for _, name := range slices.Sorted(maps.Keys(exts)) {
			ext := exts[name]
			kind, err := options.ParseKind(ext.Type)
			if err != nil {
				return nil, fmt.Errorf("extend %s.%s: %w", targetName, name, err)
			}
			m := options.Mapping{Number: protowire.Number(ext.Field), Kind: kind, Values: ext.Values}
			if err := reg.Register(target, name, m); err != nil {
				return nil, fmt.Errorf("extend: %w", err)
			}
		}
	}
	return reg, nil
}

// fileOptions returns the config's global file options, in name order.
func (c *Config) fileOptions() (ir.Options, error) {
	var opts ir.Options
	for _, name := range slices.Sorted(maps.Keys(c.Options)) {
		lit, err := literalOf(c.Options[name])
		if err != nil {
			return opts, fmt.Errorf("option %s: %w", name, err)
		}
		opts.Set(name, lit)
	}
	return opts, nil
}

// literalOf converts a value decoded from YAML into an option literal.
func literalOf(v any) (ir.Literal, error) {
	switch v := v.(type) {
	case string:
		return ir.MakeString(v), nil
	case bool:
		return ir.MakeBool(v), nil
	case int:
		return ir.MakeInt(int64(v)), nil
	case int64:
		return ir.MakeInt(v), nil
	case uint64:
		return ir.MakeUint(v), nil
	case float64:
		return ir.MakeFloat(v), nil
	}
	return ir.Literal{}, fmt.Errorf("unsupported value %v (%T)", v, v)
}
