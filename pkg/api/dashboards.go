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
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mfreeman451/meshradar/pkg/dashboard"
)

// DashboardSummary is one entry of the dashboard list.
type DashboardSummary struct {
	UID    string   `json:"uid"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags,omitempty"`
	Panels int      `json:"panels"`
}

func (s *APIServer) listDashboards(w http.ResponseWriter, _ *http.Request) {
	list := s.opts.Dashboards.List()
	out := make([]DashboardSummary, 0, len(list))

	for _, d := range list {
		out = append(out, DashboardSummary{UID: d.UID, Title: d.Title, Tags: d.Tags, Panels: len(d.Panels)})
	}

	respond(w, out)
}

func (s *APIServer) lookupDashboard(r *http.Request) (*dashboard.Dashboard, error) {
	uid := mux.Vars(r)["uid"]

	d, ok := s.opts.Dashboards.Get(uid)
	if !ok {
		return nil, fmt.Errorf("dashboard %s: %w", uid, dashboard.ErrNotFound)
	}

	return d, nil
}

func (s *APIServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.lookupDashboard(r)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *APIServer) timeRange(r *http.Request, d *dashboard.Dashboard) (dashboard.TimeRange, error) {
	return d.ResolveTimeRange(r.FormValue("from"), r.FormValue("to"), s.now())
}

func (s *APIServer) runDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.lookupDashboard(r)
	if err != nil {
		respondError(w, err)
		return
	}

	tr, err := s.timeRange(r, d)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, s.opts.Runner.Run(r.Context(), d, tr))
}

func (s *APIServer) runPanel(w http.ResponseWriter, r *http.Request) {
	d, err := s.lookupDashboard(r)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, fmt.Errorf("%w: panel id", ErrBadParam))
		return
	}

	p, ok := d.Panel(id)
	if !ok {
		respondError(w, fmt.Errorf("panel %d: %w", id, dashboard.ErrNotFound))
		return
	}

	tr, err := s.timeRange(r, d)
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := s.opts.Runner.RunPanel(r.Context(), p, tr)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, res)
}
