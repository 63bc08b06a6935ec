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

package reporter

import (
	"errors"
	"fmt"

	"github.com/bufbuild/typeproto/typegraph"
)

// ErrInvalidSource is a sentinel error that is returned by compilation in the
// event that structural errors are encountered, but the configured
// ErrorReporter always returns nil.
var ErrInvalidSource = errors.New("compile failed: invalid type graph")

// ErrorWithPos is an error about a declaration in a compilation unit that
// includes information about the location that caused the error.
//
// The value of Error() will contain both the Location and Underlying error.
// The value of Unwrap() will only be the Underlying error.
type ErrorWithPos interface {
	error
	GetPosition() typegraph.Location
	Unwrap() error
}

// Error creates a new ErrorWithPos from the given error and location.
func Error(pos typegraph.Location, err error) ErrorWithPos {
	return errorWithPos{pos: pos, underlying: err}
}

// Errorf creates a new ErrorWithPos whose underlying error is created using
// the given message format and arguments (via fmt.Errorf).
func Errorf(pos typegraph.Location, format string, args ...any) ErrorWithPos {
	return errorWithPos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

// errorWithPos is the only implementation of ErrorWithPos in this module.
// Callers that examine errors should look for the ErrorWithPos interface.
type errorWithPos struct {
	underlying error
	pos        typegraph.Location
}

func (e errorWithPos) Error() string {
	return fmt.Sprintf("%s: %v", e.pos, e.underlying)
}

// GetPosition implements the ErrorWithPos interface, supplying the location
// that caused the error.
func (e errorWithPos) GetPosition() typegraph.Location {
	return e.pos
}

// Unwrap implements the ErrorWithPos interface, supplying the underlying
// error. This error will not include location information.
func (e errorWithPos) Unwrap() error {
	return e.underlying
}

var _ ErrorWithPos = errorWithPos{}
