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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mfreeman451/meshradar/pkg/dashboard"
	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
)

type status string

const (
	statusSuccess status = "success"
	statusError   status = "error"
)

type errorType string

const (
	errorTimeout     errorType = "timeout"
	errorCanceled    errorType = "canceled"
	errorExec        errorType = "execution"
	errorBadData     errorType = "bad_data"
	errorInternal    errorType = "internal"
	errorUnavailable errorType = "unavailable"
	errorNotFound    errorType = "not_found"
)

// statusClientClosedRequest is the non-standard code used when the client
// went away before the query finished.
const statusClientClosedRequest = 499

// Response is the envelope of every /api/v1 reply.
type Response struct {
	Status    status      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorType errorType   `json:"errorType,omitempty"`
	Error     string      `json:"error,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// QueryData is the data of a query or query_range reply.
type QueryData struct {
	ResultType promql.ValueType `json:"resultType"`
	Result     promql.Value     `json:"result"`
}

func queryData(v promql.Value) QueryData {
	switch val := v.(type) {
	case promql.Vector:
		if val == nil {
			val = promql.Vector{}
		}

		return QueryData{ResultType: promql.ValueTypeVector, Result: val}
	case promql.Matrix:
		if val == nil {
			val = promql.Matrix{}
		}

		return QueryData{ResultType: promql.ValueTypeMatrix, Result: val}
	case nil:
		return QueryData{ResultType: promql.ValueTypeVector, Result: promql.Vector{}}
	default:
		return QueryData{ResultType: v.Type(), Result: v}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respond(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Status: statusSuccess, Data: data})
}

func respondError(w http.ResponseWriter, err error) {
	code, typ := classify(err)

	if code >= http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}

	writeJSON(w, code, Response{Status: statusError, ErrorType: typ, Error: err.Error()})
}

// classify maps an error onto an HTTP status and a Prometheus error type.
func classify(err error) (int, errorType) {
	var qe *promql.QueryError

	switch {
	case errors.As(err, &qe):
		if qe.Kind == promql.ErrorExecution {
			return http.StatusUnprocessableEntity, errorExec
		}

		return http.StatusBadRequest, errorBadData
	case errors.Is(err, promql.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorTimeout
	case errors.Is(err, promql.ErrQueryCanceled), errors.Is(err, context.Canceled):
		return statusClientClosedRequest, errorCanceled
	case errors.Is(err, tsdb.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorUnavailable
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorUnavailable
	case errors.Is(err, ErrNodeNotFound), errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound, errorNotFound
	case errors.Is(err, ErrBadParam), errors.Is(err, ErrMissingQuery), errors.Is(err, ErrMissingMatch),
		errors.Is(err, ErrNotSelector), errors.Is(err, ErrBadBody), errors.Is(err, dashboard.ErrInvalidTimeRange):
		return http.StatusBadRequest, errorBadData
	default:
		return http.StatusInternalServerError, errorInternal
	}
}
