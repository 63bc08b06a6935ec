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

package typeproto_test

import (
	"context"
	"errors"
	"go/constant"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/typeproto"
	"github.com/bufbuild/typeproto/reporter"
	"github.com/bufbuild/typeproto/typegraph"
	"github.com/bufbuild/typeproto/typegraph/memgraph"
)

func TestErrorReporting(t *testing.T) {
	t.Parallel()

	tooManyErrors := errors.New("too many errors")
	limitedErrReporter := func(limit int, count *int) reporter.ErrorReporter {
		return func(reporter.ErrorWithPos) error {
			*count++
			if *count > limit {
				return tooManyErrors
			}
			return nil
		}
	}
	trackingReporter := func(errs *[]reporter.ErrorWithPos, count *int) reporter.ErrorReporter {
		return func(err reporter.ErrorWithPos) error {
			*count++
			*errs = append(*errs, err)
			return nil
		}
	}
	fail := errors.New("failure!")
	failFastReporter := func(count *int) reporter.ErrorReporter {
		return func(reporter.ErrorWithPos) error {
			*count++
			return fail
		}
	}

	// Each unit has an option whose value cannot be encoded.
	g := memgraph.New()
	for _, path := range []string{"a/one.ts", "b/two.ts", "c/three.ts"} {
		u := g.Unit(path).Option("weird", constant.MakeImag(constant.MakeInt64(1)))
		u.Interface("Thing", memgraph.Prop{Name: "x", Type: g.Primitive(typegraph.String)}).At(3, 1)
	}
	units := g.Units()
	expectedErrs := []string{
		"a/one.ts: file option weird has unsupported value (0 + 1i)",
		"b/two.ts: file option weird has unsupported value (0 + 1i)",
		"c/three.ts: file option weird has unsupported value (0 + 1i)",
	}

	compile := func(rep reporter.ErrorReporter) error {
		c := typeproto.Compiler{Provider: g, Reporter: reporter.NewReporter(rep, nil)}
		_, err := c.Compile(context.Background(), units)
		return err
	}

	// Tracking reporter sees every error, and compilation still fails.
	var count int
	var errs []reporter.ErrorWithPos
	err := compile(trackingReporter(&errs, &count))
	require.ErrorIs(t, err, reporter.ErrInvalidSource)
	assert.Equal(t, len(expectedErrs), count)
	var actual []string
	for _, e := range errs {
		actual = append(actual, e.Error())
	}
	assert.Equal(t, expectedErrs, actual)

	for limit := range len(expectedErrs) {
		count = 0
		err := compile(limitedErrReporter(limit, &count))
		require.ErrorIs(t, err, tooManyErrors, "limit %d", limit)
		assert.Equal(t, limit+1, count, "limit %d", limit)
	}

	count = 0
	err = compile(failFastReporter(&count))
	require.ErrorIs(t, err, fail)
	assert.Equal(t, 1, count)
}
