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

// Command typeproto compiles a type graph to protobuf schemas and runs
// protoc plugins over the result.
//
// The type graph is read either from a YAML description of its units
// (--yaml) or from Go packages (--go).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// globalState is what commands may touch of the outside world.
type globalState struct {
	fs             afero.Fs
	stdout, stderr io.Writer
	lookupEnv      func(key string) (string, bool)
	noColor        bool
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "typeproto [command]",
		Short:         "Compile a type graph to protobuf",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)
	root.PersistentFlags().BoolVar(&gs.noColor, "no-color", gs.noColor, "disable colored output")
	root.AddCommand(newCompileCommand(gs), newVersionCommand(gs))
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	gs := &globalState{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
		noColor:   !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
	if err := newRootCommand(gs).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(gs.stderr, err)
		cancel()
		os.Exit(1)
	}
}
