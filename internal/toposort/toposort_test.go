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

package toposort_test

import (
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bufbuild/typeproto/internal/toposort"
)

type dag map[int][]int

func (d dag) children(n int) iter.Seq[int] {
	return slices.Values(d[n])
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dag   dag
		roots []int
		want  []int
	}{
		{
			name: "empty",
		},
		{
			name:  "list",
			dag:   dag{1: {2}, 2: {3}, 3: {4}, 4: {}},
			roots: []int{1},
			want:  []int{4, 3, 2, 1},
		},
		{
			name:  "list",
			dag:   dag{1: {2}, 2: {3}, 3: {4}, 4: {}},
			roots: []int{2, 1},
			want:  []int{4, 3, 2, 1},
		},
		{
			name:  "list",
			dag:   dag{1: {2}, 2: {3}, 3: {4}, 4: {}},
			roots: []int{1, 2},
			want:  []int{4, 3, 2, 1},
		},
		{
			name:  "diamond",
			dag:   dag{1: {2, 3}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{1},
			want:  []int{4, 3, 2, 1},
		},
		{
			name:  "diamond",
			dag:   dag{1: {2, 3}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{2},
			want:  []int{4, 2},
		},
		{
			name:  "diamond",
			dag:   dag{1: {2, 3}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{2, 3, 1},
			want:  []int{4, 2, 3, 1},
		},
		{
			name:  "diamond",
			dag:   dag{1: {3, 2}, 2: {3}, 3: {}},
			roots: []int{1},
			want:  []int{3, 2, 1},
		},
		{
			name:  "y",
			dag:   dag{1: {2}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{1},
			want:  []int{4, 2, 1},
		},
		{
			name:  "y",
			dag:   dag{1: {2}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{1, 3},
			want:  []int{4, 2, 1, 3},
		},
		{
			name:  "y",
			dag:   dag{1: {2}, 2: {4}, 3: {4}, 4: {}},
			roots: []int{3, 1},
			want:  []int{4, 3, 2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := toposort.Sort(tt.roots, func(n int) int { return n }, tt.dag.children)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCycle(t *testing.T) {
	t.Parallel()

	_, err := toposort.Sort(
		[]int{0},
		func(n int) int { return n },
		func(_ int) iter.Seq[int] { return slices.Values([]int{0}) },
	)
	var cycle *toposort.CycleError[int]
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []int{0, 0}, cycle.Cycle)

	d := dag{1: {2, 4}, 2: {3}, 3: {1}, 4: {}}
	_, err = toposort.Sort([]int{1}, func(n int) int { return n }, d.children)
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []int{1, 2, 3, 1}, cycle.Cycle)
	assert.EqualError(t, err, "cycle detected: 1 -> 2 -> 3 -> 1")
}
