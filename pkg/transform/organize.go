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
	"math"
	"sort"
)

// OrganizeOptions mirrors the organize transformation options.
type OrganizeOptions struct {
	ExcludeByName map[string]bool   `json:"excludeByName,omitempty"`
	RenameByName  map[string]string `json:"renameByName,omitempty"`
	IndexByName   map[string]int    `json:"indexByName,omitempty"`
}

// Organize drops excluded columns, orders the remaining ones by
// IndexByName (unindexed columns keep their order after indexed ones) and
// applies renames. The input table is not modified.
func Organize(t Table, opts OrganizeOptions) Table {
	fields := make([]string, 0, len(t.Fields))

	for _, f := range t.Fields {
		if !opts.ExcludeByName[f] {
			fields = append(fields, f)
		}
	}

	position := func(f string) int {
		if i, ok := opts.IndexByName[f]; ok {
			return i
		}

		return math.MaxInt
	}

	sort.SliceStable(fields, func(i, j int) bool {
		return position(fields[i]) < position(fields[j])
	})

	name := func(f string) string {
		if r, ok := opts.RenameByName[f]; ok && r != "" {
			return r
		}

		return f
	}

	out := Table{Name: t.Name, Fields: make([]string, len(fields)), Rows: make([]Row, 0, len(t.Rows))}
	for i, f := range fields {
		out.Fields[i] = name(f)
	}

	for _, r := range t.Rows {
		row := make(Row, len(fields))
		for _, f := range fields {
			row[name(f)] = r[f]
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

// SortBy returns the table with rows stably sorted on field. Numbers sort
// before strings and nulls sort last, so a descending sort puts nulls first.
func SortBy(t Table, field string, desc bool) Table {
	rows := make([]Row, len(t.Rows))
	copy(rows, t.Rows)

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareCells(rows[i][field], rows[j][field])
		if desc {
			return c > 0
		}

		return c < 0
	})

	return Table{Name: t.Name, Fields: append([]string(nil), t.Fields...), Rows: rows}
}

// Merge concatenates the rows of all tables. The column list is the union
// of the inputs in first-seen order; missing cells are null.
func Merge(tables []Table) Table {
	out := Table{Name: "merge", Rows: []Row{}}
	seen := make(map[string]bool)

	for _, t := range tables {
		for _, f := range t.Fields {
			if !seen[f] {
				seen[f] = true
				out.Fields = append(out.Fields, f)
			}
		}
	}

	for _, t := range tables {
		for _, r := range t.Rows {
			row := copyRow(r)

			for _, f := range out.Fields {
				if _, ok := row[f]; !ok {
					row[f] = nil
				}
			}

			out.Rows = append(out.Rows, row)
		}
	}

	return out
}
