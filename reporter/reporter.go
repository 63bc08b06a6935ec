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

// Package reporter contains the types used for reporting errors and
// diagnostics while compiling a type graph.
//
// Structural problems, such as two fields claiming the same number, are
// errors. Problems the compiler can recover from, such as a type that cannot
// be mapped and falls back to google.protobuf.Any, are warnings.
package reporter

import (
	"fmt"
	"sync"

	"github.com/bufbuild/typeproto/typegraph"
)

// ErrorReporter is responsible for reporting the given error. If the reporter
// returns a non-nil error, compilation will abort with that error. If the
// reporter returns nil, compilation will continue, allowing the compiler to
// report as many structural errors as it can find.
type ErrorReporter func(err ErrorWithPos) error

// WarningReporter is responsible for reporting the given warning. This is used
// for diagnostics that do not cause compilation to fail, such as unmapped
// types and unresolved references. Though they are just warnings, the details
// are supplied to the reporter via an error type.
type WarningReporter func(ErrorWithPos)

// Reporter is a type that handles reporting both errors and warnings.
type Reporter interface {
	// Error is called when the given error is encountered and needs to be
	// reported to the calling program. This signature matches ErrorReporter
	// because it has the same semantics. If this function returns non-nil
	// then the operation will abort immediately with the given error.
	Error(ErrorWithPos) error
	// Warning is called when the given warning is encountered and needs to
	// be reported to the calling program.
	Warning(ErrorWithPos)
}

// NewReporter creates a new reporter that invokes the given functions on
// error or warning.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithPos) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithPos) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler is used by compiler passes to report errors and warnings. It
// latches the first error returned by the underlying Reporter, so that once
// a pass decides to abort, every later report returns the same error.
type Handler struct {
	reporter Reporter

	mu           sync.Mutex
	errsReported bool
	err          error
	warnings     []ErrorWithPos
}

// NewHandler creates a new Handler that reports errors and warnings using the
// given reporter. If rep is nil, errors abort immediately and warnings are
// only recorded.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleErrorf handles an error with the given location, creating the error
// using the given message format and arguments.
//
// If the handler has already aborted (by returning a non-nil error from a
// prior call), then the prior error is returned.
func (h *Handler) HandleErrorf(pos typegraph.Location, format string, args ...any) error {
	return h.HandleError(Errorf(pos, format, args...))
}

// HandleError handles the given error. If the given err is an ErrorWithPos, it
// is reported, and this function returns the error returned by the reporter.
// If the given err is NOT an ErrorWithPos, the current operation aborts
// immediately.
//
// If the handler has already aborted (by returning a non-nil error from a
// prior call to HandleError or HandleErrorf), that same error is returned and
// the given error is not reported.
func (h *Handler) HandleError(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	if ewp, ok := err.(ErrorWithPos); ok {
		h.errsReported = true
		err = h.reporter.Error(ewp)
	}
	h.err = err
	return err
}

// HandleWarning handles the given warning. This will delegate to the
// handler's configured reporter, and remember the warning so that it can be
// returned from [Handler.Warnings].
func (h *Handler) HandleWarning(pos typegraph.Location, err error) {
	w := Error(pos, err)
	h.mu.Lock()
	h.warnings = append(h.warnings, w)
	h.mu.Unlock()
	h.reporter.Warning(w)
}

// HandleWarningf is like [Handler.HandleWarning], but creates the warning
// using the given message format and arguments.
func (h *Handler) HandleWarningf(pos typegraph.Location, format string, args ...any) {
	h.HandleWarning(pos, fmt.Errorf(format, args...))
}

// Warnings returns every warning handled so far, in order.
func (h *Handler) Warnings() []ErrorWithPos {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ErrorWithPos(nil), h.warnings...)
}

// Error returns the handler result. If any errors have been reported then this
// returns a non-nil error. If the reporter never returned a non-nil error then
// ErrInvalidSource is returned. Otherwise, this returns the error returned by
// the handler's reporter (the same value returned by ReporterError).
func (h *Handler) Error() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errsReported && h.err == nil {
		return ErrInvalidSource
	}
	return h.err
}

// ReporterError returns the error returned by the handler's reporter. If
// the reporter has either not been invoked (no errors handled) or has not
// returned any non-nil value, then this returns nil.
func (h *Handler) ReporterError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}
