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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
)

// parseTime accepts unix seconds with an optional fraction or RFC 3339.
func parseTime(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("%w: cannot parse %q to a valid timestamp", ErrBadParam, s)
		}

		sec, frac := math.Modf(f)

		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q to a valid timestamp", ErrBadParam, s)
	}

	return t, nil
}

// parseDuration accepts float seconds or a duration such as 15s or 1m.
func parseDuration(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		d := f * float64(time.Second)
		if math.IsNaN(d) || d >= math.MaxInt64 || d <= math.MinInt64 {
			return 0, fmt.Errorf("%w: cannot parse %q to a valid duration", ErrBadParam, s)
		}

		return time.Duration(d), nil
	}

	d, err := model.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse %q to a valid duration", ErrBadParam, s)
	}

	return time.Duration(d), nil
}

// parseSelector parses a series selector such as node_snr{num="1"}.
func parseSelector(s string) ([]*labels.Matcher, error) {
	expr, err := promql.ParseExpr(s)
	if err != nil {
		return nil, err
	}

	vs, ok := expr.(*promql.VectorSelector)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSelector, s)
	}

	return vs.Matchers, nil
}

// parseNodeNum accepts a decimal node number or the !hex id form.
func parseNodeNum(s string) (uint32, error) {
	base := 10

	if hex, ok := strings.CutPrefix(s, "!"); ok {
		s = hex
		base = 16
	}

	n, err := strconv.ParseUint(s, base, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: node %q", ErrBadParam, s)
	}

	return uint32(n), nil
}
