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

// Package transform turns query results into tables and combines them
// with join, organize and sort steps.
package transform

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/prometheus/prometheus/model/labels"
)

const (
	// FieldTime is the timestamp column, in milliseconds since epoch.
	FieldTime = "Time"

	valuePrefix = "Value"
)

// fieldStamp holds the timestamp of the stored point behind an instant
// row. It is never listed in Fields and never encoded.
const fieldStamp = "\x00stamp"

// Row maps a column name to its cell. A nil cell is null.
type Row map[string]any

// MarshalJSON encodes the visible cells only.
func (r Row) MarshalJSON() ([]byte, error) {
	if _, ok := r[fieldStamp]; !ok {
		return json.Marshal(map[string]any(r))
	}

	out := make(map[string]any, len(r)-1)

	for k, v := range r {
		if k != fieldStamp {
			out[k] = v
		}
	}

	return json.Marshal(out)
}

// rowTime is the point timestamp of a row when known, else its Time cell.
func rowTime(r Row) any {
	if v, ok := r[fieldStamp]; ok {
		return v
	}

	return r[FieldTime]
}

// Table is a named set of rows sharing one column list.
type Table struct {
	Name   string   `json:"name,omitempty"`
	Fields []string `json:"fields"`
	Rows   []Row    `json:"rows"`
}

// HasField reports whether the table declares the column.
func (t *Table) HasField(name string) bool {
	for _, f := range t.Fields {
		if f == name {
			return true
		}
	}

	return false
}

// Column returns the cells of one column in row order.
func (t *Table) Column(name string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}

	return out
}

// ValueField names the value column of a query target.
func ValueField(refID string) string {
	if refID == "" {
		return valuePrefix
	}

	return valuePrefix + " #" + refID
}

// FromValue converts an instant query result into a table. Vectors get a
// column per label, scalars a single row.
func FromValue(refID string, v promql.Value) (Table, error) {
	switch val := v.(type) {
	case promql.Vector:
		return FromVector(refID, val), nil
	case promql.Scalar:
		return Table{
			Name:   refID,
			Fields: []string{FieldTime, ValueField(refID)},
			Rows:   []Row{{FieldTime: val.T, ValueField(refID): numberCell(val.V)}},
		}, nil
	case nil:
		return Table{Name: refID, Fields: []string{FieldTime, ValueField(refID)}}, nil
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Type())
	}
}

// FromVector builds a table with Time, one column per label (sorted by
// name) and the value column.
func FromVector(refID string, vec promql.Vector) Table {
	names := make(map[string]struct{})

	for _, s := range vec {
		s.Metric.Range(func(l labels.Label) {
			names[l.Name] = struct{}{}
		})
	}

	labelFields := make([]string, 0, len(names))
	for n := range names {
		labelFields = append(labelFields, n)
	}

	sort.Strings(labelFields)

	t := Table{
		Name:   refID,
		Fields: append(append([]string{FieldTime}, labelFields...), ValueField(refID)),
		Rows:   make([]Row, 0, len(vec)),
	}

	for _, s := range vec {
		row := Row{FieldTime: s.T, ValueField(refID): numberCell(s.V)}
		if s.Stamp != 0 {
			row[fieldStamp] = s.Stamp
		}

		for _, n := range labelFields {
			if s.Metric.Has(n) {
				row[n] = s.Metric.Get(n)
			} else {
				row[n] = nil
			}
		}

		t.Rows = append(t.Rows, row)
	}

	return t
}

// FromMatrix returns one table per series with Time and value columns.
// The table name is the series label set.
func FromMatrix(refID string, m promql.Matrix) []Table {
	out := make([]Table, 0, len(m))

	for _, s := range m {
		t := Table{
			Name:   s.Metric.String(),
			Fields: []string{FieldTime, ValueField(refID)},
			Rows:   make([]Row, 0, len(s.Points)),
		}

		for _, p := range s.Points {
			t.Rows = append(t.Rows, Row{FieldTime: p.T, ValueField(refID): numberCell(p.V)})
		}

		out = append(out, t)
	}

	return out
}

// numberCell maps NaN to null so tables stay JSON encodable.
func numberCell(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	return v
}

const (
	rankNumber = iota
	rankString
	rankOther
	rankNull
)

func rank(v any) (int, float64) {
	switch n := v.(type) {
	case nil:
		return rankNull, 0
	case float64:
		return rankNumber, n
	case float32:
		return rankNumber, float64(n)
	case int:
		return rankNumber, float64(n)
	case int64:
		return rankNumber, float64(n)
	case int32:
		return rankNumber, float64(n)
	case uint32:
		return rankNumber, float64(n)
	case uint64:
		return rankNumber, float64(n)
	case string:
		return rankString, 0
	default:
		return rankOther, 0
	}
}

// compareCells orders number < string < other < null.
func compareCells(a, b any) int {
	ra, na := rank(a)
	rb, nb := rank(b)

	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNumber:
		return cmp.Compare(na, nb)
	case rankString:
		return cmp.Compare(a.(string), b.(string))
	case rankOther:
		return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
	default:
		return 0
	}
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}
