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

// Package linker resolves the placeholders the mapper leaves behind.
//
// The mapper refers to named types with [ir.Ref] placeholders, because the
// definition of a type may not have been declared yet, and may live in a
// different file. Once every unit is declared, [Relocate] places the
// messages synthesized for method parameters, [CheckRequired] reports named
// types that no file defines, and [Link] replaces each placeholder with the
// definition it refers to, adding imports between files as needed.
//
// # Symbols
//
// This package has a type named Symbols which represents a symbol table of
// fully-qualified names. [Link] builds one to resolve placeholders by name,
// and to detect definitions in different files whose names collide.
package linker
