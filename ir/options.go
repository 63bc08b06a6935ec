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

package ir

import "iter"

// Options is an ordered set of named option values.
//
// Setting a name that is already present overwrites its value without
// changing its position. Options cannot be removed. The zero value is empty
// and ready to use.
type Options struct {
	names  []string
	values map[string]Literal
}

// Set sets the value of the named option.
func (o *Options) Set(name string, value Literal) {
	if o.values == nil {
		o.values = make(map[string]Literal)
	}
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = value
}

// Get returns the value of the named option.
func (o *Options) Get(name string) (Literal, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Has returns whether the named option is set.
func (o *Options) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// Len returns the number of options set.
func (o *Options) Len() int {
	return len(o.names)
}

// All yields every option in the order it was first set.
func (o *Options) All() iter.Seq2[string, Literal] {
	return func(yield func(string, Literal) bool) {
		for _, name := range o.names {
			if !yield(name, o.values[name]) {
				return
			}
		}
	}
}

// Merge sets every option of other on o, in other's order.
func (o *Options) Merge(other *Options) {
	if other == nil {
		return
	}
	for name, value := range other.All() {
		o.Set(name, value)
	}
}

// Clone returns a copy of o that shares no state with it.
func (o *Options) Clone() Options {
	var c Options
	c.Merge(o)
	return c
}

// Without returns a copy of o without the named options.
func (o *Options) Without(names ...string) Options {
	var c Options
outer:
	for name, value := range o.All() {
		for _, skip := range names {
			if name == skip {
				continue outer
			}
		}
		c.Set(name, value)
	}
	return c
}
