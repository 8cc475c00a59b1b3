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
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
)

func (s *APIServer) query(w http.ResponseWriter, r *http.Request) {
	q := r.FormValue("query")
	if q == "" {
		respondError(w, ErrMissingQuery)
		return
	}

	ts, err := parseTime(r.FormValue("time"), s.now())
	if err != nil {
		respondError(w, err)
		return
	}

	v, err := s.opts.Engine.InstantQuery(r.Context(), q, ts)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, queryData(v))
}

func (s *APIServer) queryRange(w http.ResponseWriter, r *http.Request) {
	q := r.FormValue("query")
	if q == "" {
		respondError(w, ErrMissingQuery)
		return
	}

	start, err := parseTime(r.FormValue("start"), s.now())
	if err != nil {
		respondError(w, fmt.Errorf("start: %w", err))
		return
	}

	end, err := parseTime(r.FormValue("end"), s.now())
	if err != nil {
		respondError(w, fmt.Errorf("end: %w", err))
		return
	}

	rawStep := r.FormValue("step")
	if rawStep == "" {
		respondError(w, fmt.Errorf("%w: step is required", ErrBadParam))
		return
	}

	step, err := parseDuration(rawStep)
	if err != nil {
		respondError(w, fmt.Errorf("step: %w", err))
		return
	}

	v, err := s.opts.Engine.RangeQuery(r.Context(), q, start, end, step)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, queryData(v))
}

func (s *APIServer) series(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, fmt.Errorf("%w: %w", ErrBadParam, err))
		return
	}

	selectors := r.Form["match[]"]
	if len(selectors) == 0 {
		respondError(w, ErrMissingMatch)
		return
	}

	seen := make(map[string]bool)
	out := make([]labels.Labels, 0)

	for _, sel := range selectors {
		matchers, err := parseSelector(sel)
		if err != nil {
			respondError(w, err)
			return
		}

		sets, err := s.opts.Series.Series(r.Context(), matchers)
		if err != nil {
			respondError(w, err)
			return
		}

		for _, lbls := range sets {
			key := lbls.String()
			if seen[key] {
				continue
			}

			seen[key] = true

			out = append(out, lbls)
		}
	}

	sort.Slice(out, func(i, j int) bool { return labels.Compare(out[i], out[j]) < 0 })

	respond(w, out)
}

func (s *APIServer) labelNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.opts.Series.LabelNames(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	if names == nil {
		names = []string{}
	}

	respond(w, names)
}

func (s *APIServer) labelValues(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !model.LabelNameRE.MatchString(name) {
		respondError(w, fmt.Errorf("%w: invalid label name %q", ErrBadParam, name))
		return
	}

	values, err := s.opts.Series.LabelValues(r.Context(), name)
	if err != nil {
		respondError(w, err)
		return
	}

	if values == nil {
		values = []string{}
	}

	respond(w, values)
}

// StatusData summarizes the server for /api/status.
type StatusData struct {
	Series  int         `json:"series"`
	Streams int         `json:"streams"`
	Mesh    interface{} `json:"mesh,omitempty"`
}

func (s *APIServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	st := StatusData{Series: s.opts.Series.SeriesCount()}

	if s.opts.Stream != nil {
		st.Streams = s.opts.Stream.SubCount()
	}

	if s.opts.Mesh != nil {
		st.Mesh = s.opts.Mesh.Status()
	}

	respond(w, st)
}
