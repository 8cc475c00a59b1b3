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

// Package dashboard loads persisted dashboard definitions and evaluates
// their panels against the query engine.
package dashboard

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mfreeman451/meshradar/pkg/transform"
)

const (
	// SchemaVersion is the only dashboard schema accepted.
	SchemaVersion = 38
	// FormatVersion is the dashboard format version written by this package.
	FormatVersion = 4

	bundledFile = "mesh.json"
)

//go:embed mesh.json
var bundled embed.FS

// Dashboard is a persisted dashboard document. Layout and styling fields
// are kept as raw JSON and never interpreted.
type Dashboard struct {
	UID           string          `json:"uid"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	SchemaVersion int             `json:"schemaVersion"`
	Version       int             `json:"version"`
	Refresh       string          `json:"refresh,omitempty"`
	Time          *TimeSettings   `json:"time,omitempty"`
	Templating    json.RawMessage `json:"templating,omitempty"`
	Panels        []Panel         `json:"panels"`
}

// TimeSettings is the default relative time range, e.g. now-6h to now.
type TimeSettings struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Datasource references the data source a panel queries.
type Datasource struct {
	Type string `json:"type,omitempty"`
	UID  string `json:"uid,omitempty"`
}

// Panel is one visualization and the queries feeding it.
type Panel struct {
	ID              int                        `json:"id"`
	Title           string                     `json:"title"`
	Type            string                     `json:"type"`
	Description     string                     `json:"description,omitempty"`
	Datasource      *Datasource                `json:"datasource,omitempty"`
	GridPos         json.RawMessage            `json:"gridPos,omitempty"`
	Targets         []Target                   `json:"targets,omitempty"`
	Transformations []transform.Transformation `json:"transformations,omitempty"`
	Options         json.RawMessage            `json:"options,omitempty"`
	FieldConfig     json.RawMessage            `json:"fieldConfig,omitempty"`
}

// Target is a single query of a panel.
type Target struct {
	RefID        string      `json:"refId"`
	Expr         string      `json:"expr"`
	Instant      bool        `json:"instant,omitempty"`
	Range        bool        `json:"range,omitempty"`
	Format       string      `json:"format,omitempty"`
	LegendFormat string      `json:"legendFormat,omitempty"`
	Hide         bool        `json:"hide,omitempty"`
	Datasource   *Datasource `json:"datasource,omitempty"`
}

// IsRange reports whether the target is evaluated as a range query. A
// target that selects neither mode is a range query.
func (t *Target) IsRange() bool {
	return t.Range || !t.Instant
}

// Panel returns the panel with the given id.
func (d *Dashboard) Panel(id int) (*Panel, bool) {
	for i := range d.Panels {
		if d.Panels[i].ID == id {
			return &d.Panels[i], true
		}
	}

	return nil, false
}

// Validate checks the version pins and the uniqueness of panel ids and
// target refIds.
func (d *Dashboard) Validate() error {
	if d.UID == "" {
		return ErrUIDRequired
	}

	if d.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrSchemaVersion, d.SchemaVersion)
	}

	if d.Version == 0 {
		d.Version = FormatVersion
	}

	if d.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrFormatVersion, d.Version)
	}

	ids := make(map[int]bool, len(d.Panels))

	for i := range d.Panels {
		p := &d.Panels[i]

		if p.ID <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidPanelID, p.Title)
		}

		if ids[p.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicatePanelID, p.ID)
		}

		ids[p.ID] = true

		if err := p.validate(); err != nil {
			return fmt.Errorf("panel %d: %w", p.ID, err)
		}
	}

	return nil
}

func (p *Panel) validate() error {
	refs := make(map[string]bool, len(p.Targets))

	for i := range p.Targets {
		t := &p.Targets[i]

		if t.RefID == "" {
			t.RefID = string(rune('A' + i))
		}

		if refs[t.RefID] {
			return fmt.Errorf("%w: %s", ErrDuplicateRefID, t.RefID)
		}

		refs[t.RefID] = true

		if t.Expr == "" && !t.Hide {
			return fmt.Errorf("%w: %s", ErrEmptyExpr, t.RefID)
		}
	}

	return nil
}

// Parse decodes and validates a dashboard document.
func Parse(data []byte) (*Dashboard, error) {
	var d Dashboard

	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dashboard: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Load reads a dashboard document from disk.
func Load(path string) (*Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard file '%s': %w", path, err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return d, nil
}

// Bundled returns the built-in mesh network dashboard.
func Bundled() (*Dashboard, error) {
	data, err := bundled.ReadFile(bundledFile)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Registry holds dashboards by uid.
type Registry struct {
	mu         sync.RWMutex
	dashboards map[string]*Dashboard
}

func NewRegistry() *Registry {
	return &Registry{dashboards: make(map[string]*Dashboard)}
}

// Add registers a validated dashboard.
func (r *Registry) Add(d *Dashboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dashboards[d.UID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUID, d.UID)
	}

	r.dashboards[d.UID] = d

	return nil
}

func (r *Registry) Get(uid string) (*Dashboard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dashboards[uid]

	return d, ok
}

// List returns the dashboards sorted by uid.
func (r *Registry) List() []*Dashboard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Dashboard, 0, len(r.dashboards))
	for _, d := range r.dashboards {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })

	return out
}
