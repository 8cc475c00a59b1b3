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
	"encoding/json"
	"fmt"
)

// Transformation ids understood by Apply.
const (
	IDJoinByField = "joinByField"
	IDOrganize    = "organize"
	IDSortBy      = "sortBy"
	IDMerge       = "merge"
)

// Transformation is one step of a panel's pipeline. Options are kept raw
// so a dashboard round-trips unchanged.
type Transformation struct {
	ID       string          `json:"id"`
	Options  json.RawMessage `json:"options,omitempty"`
	Disabled bool            `json:"disabled,omitempty"`
}

type joinOptions struct {
	ByField string   `json:"byField"`
	Mode    JoinMode `json:"mode"`
}

type sortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

type sortOptions struct {
	Sort []sortField `json:"sort"`
}

func decodeOptions(tr Transformation, v any) error {
	if len(tr.Options) == 0 {
		return nil
	}

	if err := json.Unmarshal(tr.Options, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidOptions, tr.ID, err)
	}

	return nil
}

// Apply runs the pipeline over the tables in order. joinByField and merge
// collapse their inputs into one table; organize and sortBy apply to each
// table.
func Apply(tables []Table, pipeline []Transformation) ([]Table, error) {
	for _, tr := range pipeline {
		if tr.Disabled {
			continue
		}

		var err error

		tables, err = applyOne(tables, tr)
		if err != nil {
			return nil, err
		}
	}

	return tables, nil
}

func applyOne(tables []Table, tr Transformation) ([]Table, error) {
	switch tr.ID {
	case IDJoinByField:
		opts := joinOptions{Mode: JoinOuter}
		if err := decodeOptions(tr, &opts); err != nil {
			return nil, err
		}

		joined, err := JoinByField(tables, opts.ByField, opts.Mode)
		if err != nil {
			return nil, err
		}

		return []Table{joined}, nil

	case IDOrganize:
		var opts OrganizeOptions
		if err := decodeOptions(tr, &opts); err != nil {
			return nil, err
		}

		out := make([]Table, len(tables))
		for i := range tables {
			out[i] = Organize(tables[i], opts)
		}

		return out, nil

	case IDSortBy:
		var opts sortOptions
		if err := decodeOptions(tr, &opts); err != nil {
			return nil, err
		}

		if len(opts.Sort) == 0 || opts.Sort[0].Field == "" {
			return tables, nil
		}

		out := make([]Table, len(tables))
		for i := range tables {
			out[i] = SortBy(tables[i], opts.Sort[0].Field, opts.Sort[0].Desc)
		}

		return out, nil

	case IDMerge:
		return []Table{Merge(tables)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransformation, tr.ID)
	}
}
