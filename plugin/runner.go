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

package plugin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Runner runs a plugin on a serialized request, returning its serialized
// response.
type Runner interface {
	Run(ctx context.Context, name string, req []byte) ([]byte, error)
}

// ExecRunner runs plugins as executables.
type ExecRunner struct {
	// Exec overrides the command line for the plugin of the same name. The
	// command line is split into fields on whitespace.
	Exec map[string]string
	// Dir is the working directory of plugins. Local plugins are looked for
	// in Dir before the PATH. Defaults to the current directory.
	Dir string
	// Fs is used to look for local plugins. Defaults to the OS filesystem.
	Fs afero.Fs
	// Logger receives what plugins write to stderr. Defaults to discarding
	// it.
	Logger logrus.FieldLogger
}

// Command returns the command line used to run the named plugin.
//
// Unless overridden, this is protoc-gen-<name>. If that file exists in Dir,
// it is run from there.
func (r *ExecRunner) Command(name string) []string {
	if line, ok := r.Exec[name]; ok {
		if args := strings.Fields(line); len(args) > 0 {
			return args
		}
	}

	exe := "protoc-gen-" + name
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if info, err := fs.Stat(filepath.Join(r.dir(), exe)); err == nil && !info.IsDir() {
		return []string{"." + string(filepath.Separator) + exe}
	}
	return []string{exe}
}

func (r *ExecRunner) dir() string {
	if r.Dir == "" {
		return "."
	}
	return r.Dir
}

// Run implements [Runner].
func (r *ExecRunner) Run(ctx context.Context, name string, req []byte) ([]byte, error) {
	args := r.Command(name)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Running plugins is the point.
	cmd.Dir = r.dir()
	cmd.Stdin = bytes.NewReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	logStderr(r.logger().WithField("plugin", name), &stderr)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w: %s: %w", name, ErrGeneratorFailed, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return discard()
	}
	return r.Logger
}

// WasmRunner runs plugins compiled to WebAssembly under WASI, with the
// request on stdin and the response on stdout.
type WasmRunner struct {
	// Modules maps plugin names to the .wasm files that implement them.
	Modules map[string]string
	// Fs is used to read modules. Defaults to the OS filesystem.
	Fs afero.Fs
	// Logger receives what plugins write to stderr.
	Logger logrus.FieldLogger
}

// Run implements [Runner].
func (r *WasmRunner) Run(ctx context.Context, name string, req []byte) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, fmt.Errorf("[%s] %w: %w", name, ErrGeneratorFailed, err)
	}

	path, ok := r.Modules[name]
	if !ok {
		return fail(errors.New("no module for plugin"))
	}
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	bin, err := afero.ReadFile(fs, path)
	if err != nil {
		return fail(err)
	}

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	var stdout, stderr bytes.Buffer
	config := wazero.NewModuleConfig().
		WithName(name).
		WithArgs("protoc-gen-" + name).
		WithStdin(bytes.NewReader(req)).
		WithStdout(&stdout).
		WithStderr(&stderr)
	mod, err := runtime.InstantiateWithConfig(ctx, bin, config)
	logger := r.Logger
	if logger == nil {
		logger = discard()
	}
	logStderr(logger.WithField("plugin", name), &stderr)
	if err != nil {
		var exit *sys.ExitError
		if !errors.As(err, &exit) || exit.ExitCode() != 0 {
			return fail(err)
		}
	}
	if mod != nil {
		_ = mod.Close(ctx)
	}
	return stdout.Bytes(), nil
}

// logStderr logs each line a plugin wrote to stderr.
func logStderr(logger logrus.FieldLogger, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Info(scanner.Text())
	}
}

func discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
