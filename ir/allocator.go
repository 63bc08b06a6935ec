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

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/bufbuild/typeproto/internal/interval"
	"github.com/bufbuild/typeproto/reporter"
)

const (
	// MaxFieldNumber is the largest valid field number.
	MaxFieldNumber = 1<<29 - 1

	// FirstReservedNumber and LastReservedNumber bound the field numbers
	// reserved for the protobuf implementation.
	FirstReservedNumber = 19000
	LastReservedNumber  = 19999
)

// ErrIndexTaken is returned when a number is claimed twice in one scope.
var ErrIndexTaken = errors.New("index is already taken")

// Allocator assigns field numbers within one scope.
//
// Numbers are claimed explicitly with [Allocator.Mark], and the remaining
// fields are given the lowest unclaimed numbers by [Allocator.Next]. The zero
// value is ready to use.
type Allocator struct {
	claimed interval.Map[int32, string]
	hint    int32
}

// Mark claims the inclusive range [lo, hi] on behalf of owner, which is used
// in errors. It fails if any number in the range is already claimed.
func (a *Allocator) Mark(lo, hi int32, owner string) error {
	overlap := a.claimed.Insert(lo, hi, owner)
	if overlap.Value == nil {
		return nil
	}
	return fmt.Errorf("%w: %d (claimed by %s, then by %s)",
		ErrIndexTaken, max(lo, overlap.Start), *overlap.Value, owner)
}

// Next claims and returns the lowest unclaimed number at or above every
// number returned so far, skipping the implementation-reserved range.
func (a *Allocator) Next(owner string) int32 {
	n := a.claimed.Next(max(a.hint, 1))
	if n >= FirstReservedNumber && n <= LastReservedNumber {
		n = a.claimed.Next(LastReservedNumber + 1)
	}
	a.claimed.Insert(n, n, owner)
	a.hint = n + 1
	return n
}

// CheckFieldNumber returns an error if n cannot be used as a field number.
func CheckFieldNumber(n int32) error {
	switch {
	case n < 1 || n > MaxFieldNumber:
		return fmt.Errorf("field number %d is out of range [1, %d]", n, MaxFieldNumber)
	case n >= FirstReservedNumber && n <= LastReservedNumber:
		return fmt.Errorf("field number %d is reserved for the protobuf implementation", n)
	}
	return nil
}

// Normalize assigns numbers to the unnumbered fields of a single scope, then
// reorders its body.
//
// In a message, every explicit field number and reserved range is claimed
// first, including those of oneof members. Then each unnumbered field,
// except service methods, receives the next free number in declaration
// order. Finally, the body is reordered so that non-field statements come
// first, in their declared order, followed by the fields sorted by number.
//
// In an enum, the values are sorted by number, and duplicate numbers are
// rejected unless the enum sets allow_alias.
func Normalize(scope Scope) error {
	switch scope := scope.(type) {
	case *Message:
		return normalizeMessage(scope)
	case *Enum:
		return normalizeEnum(scope)
	}
	return nil
}

// NormalizeFile normalizes every scope reachable from f.
func NormalizeFile(f *File) error {
	for def := range Scopes(f) {
		if err := Normalize(def); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMessage(m *Message) error {
	var alloc Allocator
	mark := func(f *Field) error {
		if f.Number == 0 {
			return nil
		}
		if err := CheckFieldNumber(f.Number); err != nil {
			return reporter.Error(f.Pos, fmt.Errorf("field %s.%s: %w", m.Name, f.Name, err))
		}
		if err := alloc.Mark(f.Number, f.Number, f.Name); err != nil {
			return reporter.Error(f.Pos, err)
		}
		return nil
	}

	for _, stmt := range m.body.stmts {
		switch stmt := stmt.(type) {
		case *Field:
			if oneof, ok := stmt.Type.(*Oneof); ok {
				for _, member := range oneof.Fields {
					if err := mark(member); err != nil {
						return err
					}
				}
				continue
			}
			if err := mark(stmt); err != nil {
				return err
			}
		case *Reserved:
			for _, r := range stmt.Ranges {
				if r.Start > r.End {
					return reporter.Errorf(stmt.Pos, "reserved range %d to %d is empty", r.Start, r.End)
				}
				if err := alloc.Mark(r.Start, r.End, "reserved range"); err != nil {
					return reporter.Error(stmt.Pos, err)
				}
			}
		}
	}

	for _, stmt := range m.body.stmts {
		field, ok := stmt.(*Field)
		if !ok {
			continue
		}
		switch typ := field.Type.(type) {
		case *RPC:
		case *Oneof:
			for _, member := range typ.Fields {
				if member.Number == 0 {
					member.Number = alloc.Next(member.Name)
				}
			}
		default:
			if field.Number == 0 {
				field.Number = alloc.Next(field.Name)
			}
		}
	}

	reorder(&m.body)
	return nil
}

func reorder(b *Body) {
	stmts := make([]Statement, 0, len(b.stmts))
	var fields []*Field
	for _, stmt := range b.stmts {
		if f, ok := stmt.(*Field); ok {
			fields = append(fields, f)
			continue
		}
		stmts = append(stmts, stmt)
	}
	slices.SortStableFunc(fields, func(a, b *Field) int {
		return cmp.Compare(sortKey(a), sortKey(b))
	})
	for _, f := range fields {
		stmts = append(stmts, f)
	}
	b.stmts = stmts
}

// sortKey returns the number a field is sorted by. A oneof sorts by its
// lowest member.
func sortKey(f *Field) int32 {
	oneof, ok := f.Type.(*Oneof)
	if !ok || len(oneof.Fields) == 0 {
		return f.Number
	}
	key := oneof.Fields[0].Number
	for _, member := range oneof.Fields[1:] {
		key = min(key, member.Number)
	}
	return key
}

func normalizeEnum(e *Enum) error {
	var values []*EnumValue
	var others []Statement
	for _, stmt := range e.body.stmts {
		if v, ok := stmt.(*EnumValue); ok {
			values = append(values, v)
			continue
		}
		others = append(others, stmt)
	}
	slices.SortStableFunc(values, func(a, b *EnumValue) int {
		return cmp.Compare(a.Number, b.Number)
	})

	alias, _ := e.Options.Get("allow_alias")
	allowAlias, _ := alias.AsBool()
	for i := 1; i < len(values); i++ {
		if values[i].Number == values[i-1].Number && !allowAlias {
			return reporter.Errorf(values[i].Pos, "enum %s: %w: %d (claimed by %s, then by %s)",
				e.Name, ErrIndexTaken, values[i].Number, values[i-1].Name, values[i].Name)
		}
	}

	stmts := others
	for _, v := range values {
		stmts = append(stmts, v)
	}
	e.body.stmts = stmts
	return nil
}
