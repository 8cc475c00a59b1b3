/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package promql

import (
	"errors"
	"fmt"
)

var (
	ErrQueryTimeout  = errors.New("query timed out")
	ErrQueryCanceled = errors.New("query canceled")
)

// ErrorKind classifies a QueryError.
type ErrorKind string

const (
	// ErrorBadData is a malformed or ill-typed expression or parameter.
	ErrorBadData ErrorKind = "bad_data"
	// ErrorExecution is a well-formed query that cannot be evaluated, such
	// as one that would load too many samples.
	ErrorExecution ErrorKind = "execution"
)

// QueryError is returned for problems with the query itself. It is
// never retried.
type QueryError struct {
	Kind ErrorKind
	Pos  int // byte offset in the query, -1 when unknown
	Msg  string
}

func (e *QueryError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Msg)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func parseErrorf(pos int, format string, args ...interface{}) *QueryError {
	return &QueryError{Kind: ErrorBadData, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func badDataf(format string, args ...interface{}) *QueryError {
	return &QueryError{Kind: ErrorBadData, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func executionErrorf(format string, args ...interface{}) *QueryError {
	return &QueryError{Kind: ErrorExecution, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// IsQueryError reports whether err is, or wraps, a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError

	return errors.As(err, &qe)
}
