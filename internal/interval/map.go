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

// Package interval provides an interval map over integer keys, used to track
// which field numbers in a scope have already been claimed.
package interval

import (
	"fmt"
	"iter"

	"github.com/tidwall/btree"
)

// Integer is the set of key types a [Map] can be indexed by.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Map is a collection of disjoint, inclusive intervals, each with an
// associated value.
//
// A zero Map is empty and ready to use.
type Map[K Integer, V any] struct {
	// Keys in this map are the ends of intervals in the map.
	tree btree.Map[K, *entry[K, V]]
}

// Interval is an entry returned by [Map.Insert] and [Map.Get].
type Interval[K Integer, V any] struct {
	// The range for this interval.
	Start, End K

	// The value associated with it.
	Value *V
}

type entry[K Integer, V any] struct {
	start K
	value V
}

// Len returns the number of intervals in the map.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// Get looks up the interval which contains key, if one exists.
//
// If no such interval exists, the Value of the returned [Interval] will be
// nil.
func (m *Map[K, V]) Get(key K) Interval[K, V] {
	iter := m.tree.Iter()
	found := iter.Seek(key)

	if !found || key < iter.Value().start {
		// It is implicit already that key <= end.
		return Interval[K, V]{}
	}

	return Interval[K, V]{
		Start: iter.Value().start,
		End:   iter.Key(),
		Value: &iter.Value().value,
	}
}

// Next returns the least key greater than or equal to from that is not
// contained in any interval.
//
// Adjacent intervals are skipped over as a unit, so repeated calls with an
// advancing lower bound are amortized constant time.
func (m *Map[K, V]) Next(from K) K {
	iter := m.tree.Iter()
	if !iter.Seek(from) {
		return from
	}
	for {
		if from < iter.Value().start {
			return from
		}
		from = iter.Key() + 1
		if !iter.Next() {
			return from
		}
	}
}

// Intervals returns an iterator over the intervals in this map, in ascending
// order.
func (m *Map[K, V]) Intervals() iter.Seq[Interval[K, V]] {
	return func(yield func(Interval[K, V]) bool) {
		iter := m.tree.Iter()
		more := iter.First()
		for more {
			if !yield(Interval[K, V]{
				Start: iter.Value().start,
				End:   iter.Key(),
				Value: &iter.Value().value,
			}) {
				return
			}
			more = iter.Next()
		}
	}
}

// Insert inserts a new interval into this map, with the given associated value.
// Both endpoints are inclusive.
//
// If [start, end] overlaps any interval present in this map, nothing is
// inserted and this function returns the interval with the least start that
// overlaps with it. This case is distinguished by overlap.Value != nil.
func (m *Map[K, V]) Insert(start, end K, value V) (overlap Interval[K, V]) {
	if start > end {
		panic(fmt.Sprintf("interval: start (%#v) > end (%#v)", start, end))
	}

	// Let start and end be a and b, and let [c, d] be an existing interval.
	// An insertion either lands in a gap, or it overlaps some [c, d] in one
	// of four ways: contained in it, straddling its end, straddling its
	// start, or containing it.

	iter := m.tree.Iter()
	if !iter.Seek(start) {
		// Either the map is empty, or d < a for every interval.
		m.tree.Set(end, &entry[K, V]{start: start, value: value})
		return Interval[K, V]{}
	}

	if end < iter.Value().start {
		// a <= b < c <= d, where [c, d] is the least interval with a <= d.
		m.tree.Set(end, &entry[K, V]{start: start, value: value})
		return Interval[K, V]{}
	}

	// Otherwise c <= b and a <= d, so [c, d] overlaps [a, b], and no interval
	// with a lesser start can.
	return m.at(iter)
}

func (m *Map[K, V]) at(iter btree.MapIter[K, *entry[K, V]]) Interval[K, V] {
	return Interval[K, V]{
		Start: iter.Value().start,
		End:   iter.Key(),
		Value: &iter.Value().value,
	}
}

// Format implements [fmt.Formatter].
func (m *Map[K, V]) Format(s fmt.State, v rune) {
	fmt.Fprint(s, "{")
	first := true
	m.tree.Scan(func(end K, entry *entry[K, V]) bool {
		if !first {
			fmt.Fprint(s, ", ")
		}
		first = false

		if entry.start == end {
			fmt.Fprintf(s, "%#v: ", entry.start)
		} else {
			fmt.Fprintf(s, "[%#v, %#v]: ", entry.start, end)
		}
		fmt.Fprintf(s, fmt.FormatString(s, v), entry.value)

		return true
	})
	fmt.Fprint(s, "}")
}
