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
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/pluginpb"
)

// Job is a single plugin invocation.
type Job struct {
	// The plugin to run.
	Plugin string
	// The package whose files the request generates, for logging.
	Package string
	Request *pluginpb.CodeGeneratorRequest
	Runner  Runner
}

// Output is what a [Job] produced.
type Output struct {
	Job   Job
	Files []File
}

// GenerateOptions configures [Generate].
type GenerateOptions struct {
	// The maximum number of plugins run at once. Zero or less means no
	// limit.
	Parallelism int
	Logger      logrus.FieldLogger
}

// Generate runs jobs in parallel, returning their outputs in the order of
// jobs.
//
// The first job to fail cancels the others, and its error is returned.
func Generate(ctx context.Context, jobs []Job, opts GenerateOptions) ([]Output, error) {
	logger := opts.Logger
	if logger == nil {
		logger = discard()
	}

	outputs := make([]Output, len(jobs))
	group, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		group.SetLimit(opts.Parallelism)
	}
	for i, job := range jobs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"plugin":  job.Plugin,
				"package": job.Package,
			}).Debug("running plugin")

			req, err := proto.MarshalOptions{Deterministic: true}.Marshal(job.Request)
			if err != nil {
				return fmt.Errorf("[%s] marshaling request: %w", job.Plugin, err)
			}
			resp, err := job.Runner.Run(ctx, job.Plugin, req)
			if err != nil {
				return err
			}
			files, err := DecodeResponse(job.Plugin, resp)
			if err != nil {
				return err
			}
			outputs[i] = Output{Job: job, Files: files}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
