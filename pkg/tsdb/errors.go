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

package tsdb

import "errors"

var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrOutOfOrder       = errors.New("out of order sample")
	ErrDuplicateSample  = errors.New("duplicate sample for timestamp")
	ErrInvalidName      = errors.New("invalid metric name")
	ErrInvalidLabel     = errors.New("invalid label")
	ErrInvalidRange     = errors.New("invalid time range")

	errSeriesRemoved = errors.New("series removed by retention")
)

// Rejection reasons, used as the reason label of the rejected-samples metric.
const (
	ReasonOutOfOrder   = "out_of_order"
	ReasonDuplicate    = "duplicate"
	ReasonInvalidName  = "invalid_name"
	ReasonInvalidLabel = "invalid_label"
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrOutOfOrder):
		return ReasonOutOfOrder
	case errors.Is(err, ErrDuplicateSample):
		return ReasonDuplicate
	case errors.Is(err, ErrInvalidName):
		return ReasonInvalidName
	default:
		return ReasonInvalidLabel
	}
}
