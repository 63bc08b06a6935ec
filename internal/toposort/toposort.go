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

// Package toposort provides a generic topological sort implementation.
package toposort

import (
	"fmt"
	"iter"
	"strings"
)

const (
	unsorted byte = iota
	walking
	sorted
)

// CycleError is returned by [Sort] when the graph is not a DAG.
type CycleError[Node any] struct {
	// The nodes on the cycle, starting and ending with the same node.
	Cycle []Node
}

func (e *CycleError[Node]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return "cycle detected: " + strings.Join(parts, " -> ")
}

// Sort sorts a DAG topologically, so that every node appears after all of
// its children.
//
// Roots are the nodes whose dependencies we are querying. key returns a
// comparable key for each node. dag contains the data of the DAG being sorted,
// and returns the children of a node.
func Sort[Node any, Key comparable](
	roots []Node,
	key func(Node) Key,
	dag func(Node) iter.Seq[Node],
) ([]Node, error) {
	s := sorter[Node, Key]{key: key, state: make(map[Key]byte)}

	var out []Node
	for _, root := range roots {
		if err := s.push(root); err != nil {
			return nil, err
		}
		// This algorithm is DFS that has been tail-call-optimized into a loop.
		// Each node is visited twice in the loop: once to add its children to
		// the stack, and once to pop it and add it to the output. The state
		// tracks whether this node has been visited and if its the first
		// or second visit through the loop.
		for len(s.stack) > 0 {
			node := s.stack[len(s.stack)-1]
			k := s.key(node)
			state := s.state[k]

			if state == unsorted {
				s.state[k] = walking
				for child := range dag(node) {
					if err := s.push(child); err != nil {
						return nil, err
					}
				}
				continue
			}

			s.stack = s.stack[:len(s.stack)-1]
			if state != sorted {
				out = append(out, node)
				s.state[k] = sorted
			}
		}
	}
	return out, nil
}

type sorter[Node any, Key comparable] struct {
	key   func(Node) Key
	state map[Key]byte
	stack []Node
}

func (s *sorter[Node, Key]) push(v Node) error {
	k := s.key(v)
	switch s.state[k] {
	case unsorted:
		s.stack = append(s.stack, v)

	case walking:
		// Only nodes that are still being expanded are walking, and they
		// are exactly the ones below the top of the stack that are ancestors
		// of v. The cycle is the suffix starting at the last such copy.
		prev := len(s.stack) - 1
		for prev >= 0 && (s.key(s.stack[prev]) != k || s.state[s.key(s.stack[prev])] != walking) {
			prev--
		}
		var cycle []Node
		for _, n := range s.stack[max(prev, 0):] {
			if s.state[s.key(n)] == walking {
				cycle = append(cycle, n)
			}
		}
		return &CycleError[Node]{Cycle: append(cycle, v)}
	}
	return nil
}
