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

// Slots yields pointers to the type expressions directly inside e, so that
// they can be replaced in place. Definitions and scalars have no slots.
func Slots(e TypeExpr) iter.Seq[*TypeExpr] {
	return func(yield func(*TypeExpr) bool) {
		switch e := e.(type) {
		case *Repeated:
			yield(&e.Elem)
		case *Optional:
			yield(&e.Elem)
		case *Stream:
			yield(&e.Elem)
		case *Map:
			_ = yield(&e.Key) && yield(&e.Value)
		case *RPC:
			_ = yield(&e.Input) && yield(&e.Output)
		case *Oneof:
			for _, f := range e.Fields {
				if !yield(&f.Type) {
					return
				}
			}
		}
	}
}

// Scopes yields every definition reachable from f's body, depth first, in
// body order.
func Scopes(f *File) iter.Seq[TypeDef] {
	return func(yield func(TypeDef) bool) {
		var walk func(Scope) bool
		walk = func(scope Scope) bool {
			for _, def := range scope.Body().Definitions() {
				if !yield(def) || !walk(def) {
					return false
				}
			}
			return true
		}
		walk(f)
	}
}

// TypeSlots yields a pointer to the type of every field reachable from f's
// body, followed by the slots nested within it, together with the field
// statement the slot belongs to.
//
// A slot is visited after it is yielded, so if the caller replaces the
// expression it points to, the replacement's slots are visited instead.
// Definitions are never descended into through a slot; they are reached
// through their scope instead.
func TypeSlots(f *File) iter.Seq2[*TypeExpr, *Field] {
	return func(yield func(*TypeExpr, *Field) bool) {
		var visit func(*TypeExpr, *Field) bool
		visit = func(slot *TypeExpr, owner *Field) bool {
			if !yield(slot, owner) {
				return false
			}
			for inner := range Slots(*slot) {
				if !visit(inner, owner) {
					return false
				}
			}
			return true
		}
		for def := range Scopes(f) {
			for _, stmt := range def.Body().Statements() {
				if field, ok := stmt.(*Field); ok && !visit(&field.Type, field) {
					return
				}
			}
		}
	}
}

// Fields yields the fields of a scope, descending into oneofs. The oneof
// fields themselves are not yielded.
func Fields(scope Scope) iter.Seq[*Field] {
	return func(yield func(*Field) bool) {
		for _, stmt := range scope.Body().Statements() {
			field, ok := stmt.(*Field)
			if !ok {
				continue
			}
			if oneof, ok := field.Type.(*Oneof); ok {
				for _, member := range oneof.Fields {
					if !yield(member) {
						return
					}
				}
				continue
			}
			if !yield(field) {
				return
			}
		}
	}
}
