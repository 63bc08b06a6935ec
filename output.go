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
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/bufbuild/typeproto/plugin"
)

// DumpFile is the file the descriptor set is dumped to, under the output
// directory.
const DumpFile = "request.json"

// WriteOutputs writes the results of a compilation to fs, under the
// configured output directory: the .proto files if enabled, the descriptor
// set dump if enabled, and the files generated by each plugin under the
// plugin's own output directory.
func (c *Compiler) WriteOutputs(fs afero.Fs, res *Result, generated []plugin.Output) error {
	cfg := c.config()

	if cfg.Proto {
		for _, path := range slices.Sorted(maps.Keys(res.Protos)) {
			if err := c.write(fs, filepath.Join(cfg.OutDir, filepath.FromSlash(path)), []byte(res.Protos[path])); err != nil {
				return err
			}
		}
	}

	if cfg.Dump {
		b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(res.Set)
		if err != nil {
			return fmt.Errorf("failed to encode descriptor set: %w", err)
		}
		if err := c.write(fs, filepath.Join(cfg.OutDir, DumpFile), b); err != nil {
			return err
		}
	}

	for _, out := range generated {
		dir := filepath.Join(cfg.OutDir, cfg.Plugins[out.Job.Plugin].OutDir)
		for _, f := range out.Files {
			if err := c.write(fs, filepath.Join(dir, filepath.FromSlash(f.Name)), f.Content); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compiler) write(fs afero.Fs, path string, data []byte) error {
	c.logger().WithField("path", path).Info("writing file")
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
