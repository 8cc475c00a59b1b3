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

package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/model"
)

const (
	defaultFrom = "now-6h"
	defaultTo   = "now"
)

// ParseTime accepts "now", "now-<duration>", unix seconds, unix
// milliseconds (13 digits or more) and RFC 3339 timestamps.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)

	if s == "now" {
		return now, nil
	}

	if rest, ok := strings.CutPrefix(s, "now-"); ok {
		d, err := model.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidTimeRange, err)
		}

		return now.Add(-time.Duration(d)), nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 13 {
		return time.UnixMilli(ms), nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec, frac := math.Modf(f)

		return time.Unix(int64(sec), int64(math.Round(frac*1e9))), nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidTimeRange, s)
	}

	return t, nil
}

// ResolveTimeRange turns from/to strings into an absolute range. Empty
// values fall back to the dashboard's time settings, then to the last six
// hours.
func (d *Dashboard) ResolveTimeRange(from, to string, now time.Time) (TimeRange, error) {
	if from == "" {
		from = defaultFrom
		if d.Time != nil && d.Time.From != "" {
			from = d.Time.From
		}
	}

	if to == "" {
		to = defaultTo
		if d.Time != nil && d.Time.To != "" {
			to = d.Time.To
		}
	}

	f, err := ParseTime(from, now)
	if err != nil {
		return TimeRange{}, err
	}

	t, err := ParseTime(to, now)
	if err != nil {
		return TimeRange{}, err
	}

	if t.Before(f) {
		return TimeRange{}, ErrInvalidTimeRange
	}

	return TimeRange{From: f, To: t}, nil
}
