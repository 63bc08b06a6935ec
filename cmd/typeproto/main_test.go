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
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unitsYAML = `
units:
  - path: types/acme/users.ts
    declarations:
      - kind: interface
        name: User
        members:
          id: int64
          tags: "Array<string>"
      - kind: type
        name: Point
        type: "{ x: number }"
`

func newTestState(t *testing.T, files map[string]string, env map[string]string) (*globalState, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	var stderr bytes.Buffer
	return &globalState{
		fs:     fs,
		stdout: new(bytes.Buffer),
		stderr: &stderr,
		lookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		noColor: true,
	}, &stderr
}

func execute(gs *globalState, args ...string) error {
	cmd := newRootCommand(gs)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestCompileYAML(t *testing.T) {
	t.Parallel()

	gs, stderr := newTestState(t, map[string]string{
		"units.yaml":     unitsYAML,
		"typeproto.yaml": "package:\n  go: example.com/gen\ndump: true\n",
	}, map[string]string{
		"TYPEPROTO_OUT_DIR": "gen",
	})
	require.NoError(t, execute(gs, "compile", "--yaml", "units.yaml"))

	proto, err := afero.ReadFile(gs.fs, "gen/acme/users.proto")
	require.NoError(t, err)
	assert.Contains(t, string(proto), "message User {\n")
	assert.Contains(t, string(proto), `option go_package = "example.com/gen/acme";`)

	exists, err := afero.Exists(gs.fs, "gen/request.json")
	require.NoError(t, err)
	assert.True(t, exists)

	// The alias of an object literal is reported, but does not fail
	// compilation.
	assert.Contains(t, stderr.String(), "warning: ")
}

func TestCompileOutDirFlag(t *testing.T) {
	t.Parallel()

	gs, _ := newTestState(t, map[string]string{"units.yaml": unitsYAML}, map[string]string{
		"TYPEPROTO_OUT_DIR": "gen",
	})
	require.NoError(t, execute(gs, "compile", "--yaml", "units.yaml", "-o", "flag"))

	exists, err := afero.Exists(gs.fs, "flag/acme/users.proto")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(gs.fs, "flag/request.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing_config", func(t *testing.T) {
		t.Parallel()
		gs, _ := newTestState(t, map[string]string{"units.yaml": unitsYAML}, nil)
		err := execute(gs, "compile", "--yaml", "units.yaml", "--config", "nope.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope.yaml")
	})
	t.Run("args_with_yaml", func(t *testing.T) {
		t.Parallel()
		gs, _ := newTestState(t, map[string]string{"units.yaml": unitsYAML}, nil)
		err := execute(gs, "compile", "--yaml", "units.yaml", "./...")
		assert.EqualError(t, err, "package arguments cannot be combined with --yaml")
	})
	t.Run("bad_env", func(t *testing.T) {
		t.Parallel()
		gs, _ := newTestState(t, map[string]string{"units.yaml": unitsYAML}, map[string]string{
			"TYPEPROTO_PROTO": "sometimes",
		})
		err := execute(gs, "compile", "--yaml", "units.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid environment")
	})
	t.Run("unresolved", func(t *testing.T) {
		t.Parallel()
		gs, stderr := newTestState(t, map[string]string{"units.yaml": `
units:
  - path: types/acme/a.ts
    declarations:
      - kind: interface
        name: A
        members:
          b: acme.Missing
`}, nil)
		err := execute(gs, "compile", "--yaml", "units.yaml")
		assert.EqualError(t, err, "compilation failed")
		assert.Contains(t, stderr.String(), "error: ")
		assert.Contains(t, stderr.String(), "refers to unresolved type acme.Missing")
	})
}

func TestVersion(t *testing.T) {
	t.Parallel()

	gs, _ := newTestState(t, nil, nil)
	require.NoError(t, execute(gs, "version"))
	assert.Contains(t, gs.stdout.(*bytes.Buffer).String(), "typeproto ")
}
