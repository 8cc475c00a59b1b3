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

package transform

import (
	"fmt"
	"strconv"

	"github.com/chrispappas/golang-generics-set/set"
)

// JoinMode selects which keys survive a join.
type JoinMode string

const (
	// JoinOuter keeps keys present in any input and null-fills the rest.
	JoinOuter JoinMode = "outer"
	// JoinInner keeps keys present in every input.
	JoinInner JoinMode = "inner"
)

type joinInput struct {
	index   int
	keys    []string
	rows    map[string]Row
	members set.Set[string]
	columns []string          // non-key columns in table order
	rename  map[string]string // column -> output name
}

func indexRows(index int, t *Table, field string) *joinInput {
	in := &joinInput{
		index:   index,
		rows:    make(map[string]Row),
		members: set.FromSlice([]string{}),
		rename:  make(map[string]string),
	}

	for _, f := range t.Fields {
		if f != field {
			in.columns = append(in.columns, f)
		}
	}

	for _, r := range t.Rows {
		cell := r[field]
		if cell == nil {
			continue
		}

		key := fmt.Sprint(cell)

		prev, ok := in.rows[key]
		if !ok {
			in.keys = append(in.keys, key)
			in.members.Add(key)
			in.rows[key] = r

			continue
		}

		// last value wins unless the earlier row is newer
		if compareCells(rowTime(r), rowTime(prev)) >= 0 {
			in.rows[key] = r
		}
	}

	return in
}

// JoinByField produces one row per distinct value of field across the
// tables. A table without the field contributes only null columns to an
// outer join and makes an inner join empty. Columns present in more than
// one input are suffixed with the 1-based input position.
func JoinByField(tables []Table, field string, mode JoinMode) (Table, error) {
	if field == "" {
		return Table{}, ErrJoinFieldRequired
	}

	switch mode {
	case "":
		mode = JoinOuter
	case JoinOuter, JoinInner:
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownJoinMode, mode)
	}

	var inputs []*joinInput

	missing := false

	for i := range tables {
		if !tables[i].HasField(field) {
			missing = true
		}

		inputs = append(inputs, indexRows(i, &tables[i], field))
	}

	out := Table{Name: "joinByField", Fields: joinedFields(inputs, field), Rows: []Row{}}

	if len(inputs) == 0 || (mode == JoinInner && missing) {
		return out, nil
	}

	for _, key := range joinedKeys(inputs, mode) {
		row := Row{}

		for _, f := range out.Fields {
			row[f] = nil
		}

		keyed := false

		for _, in := range inputs {
			src, ok := in.rows[key]
			if !ok {
				continue
			}

			if !keyed {
				row[field] = src[field]
				keyed = true
			}

			for _, c := range in.columns {
				row[in.rename[c]] = src[c]
			}
		}

		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

func joinedFields(inputs []*joinInput, field string) []string {
	counts := make(map[string]int)

	for _, in := range inputs {
		for _, c := range in.columns {
			counts[c]++
		}
	}

	fields := []string{field}

	for _, in := range inputs {
		for _, c := range in.columns {
			name := c
			if counts[c] > 1 {
				name = c + " " + strconv.Itoa(in.index+1)
			}

			in.rename[c] = name
			fields = append(fields, name)
		}
	}

	return fields
}

func joinedKeys(inputs []*joinInput, mode JoinMode) []string {
	if mode == JoinInner {
		var keys []string

	next:
		for _, key := range inputs[0].keys {
			for _, in := range inputs[1:] {
				if !in.members.Has(key) {
					continue next
				}
			}

			keys = append(keys, key)
		}

		return keys
	}

	seen := set.FromSlice([]string{})

	var keys []string

	for _, in := range inputs {
		for _, key := range in.keys {
			if seen.Has(key) {
				continue
			}

			seen.Add(key)
			keys = append(keys, key)
		}
	}

	return keys
}
