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

// Package promql pkg/promql/interfaces.go
package promql

import (
	"context"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"
)

//go:generate mockgen -destination=mock_queryable.go -package=promql github.com/mfreeman451/meshradar/pkg/promql Queryable

// Queryable is the read side of a sample store.
type Queryable interface {
	// Select returns the points in [mint, maxt] of every series matching
	// all matchers, sorted by label set.
	Select(ctx context.Context, mint, maxt int64, matchers []*labels.Matcher) ([]models.Series, error)
}
