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

package config

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultRetention     = 7 * 24 * time.Hour
	defaultLookback      = 5 * time.Minute
	defaultQueryTimeout  = 30 * time.Second
	defaultMaxSamples    = 5_000_000
	defaultMaxRetries    = 3
	defaultRetryBackoff  = 100 * time.Millisecond
	defaultEmitInterval  = 15 * time.Second
	defaultStaleAfter    = 2 * time.Hour
	defaultPollInterval  = 60 * time.Second
	defaultSourceTimeout = 10 * time.Second
	defaultJob           = "meshtastic"
	defaultMaxConns      = 256
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the top-level meshradar server configuration.
type Config struct {
	ListenAddr string          `json:"listen_addr"`          // e.g., :9090
	GrpcAddr   string          `json:"grpc_addr,omitempty"`  // health endpoint, e.g., :50055
	DBPath     string          `json:"db_path,omitempty"`    // empty disables persistence
	MaxConns   int             `json:"max_conns,omitempty"`  // concurrent HTTP connections
	Logging    LoggingConfig   `json:"logging"`              // log destination
	Storage    StorageConfig   `json:"storage"`              // retention and resolution
	Query      QueryConfig     `json:"query"`                // evaluator limits
	Collector  CollectorConfig `json:"collector"`            // mesh telemetry collection
	Auth       *AuthConfig     `json:"auth,omitempty"`       // protects the write endpoints
	Dashboards []string        `json:"dashboards,omitempty"` // extra dashboard JSON files
}

// LoggingConfig configures the log destination. An empty File logs to stderr.
type LoggingConfig struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// StorageConfig controls how long and how densely samples are kept.
type StorageConfig struct {
	Retention     Duration `json:"retention"`
	Resolution    Duration `json:"resolution,omitempty"`
	LookbackDelta Duration `json:"lookback_delta,omitempty"`
}

// QueryConfig bounds query evaluation.
type QueryConfig struct {
	Timeout      Duration `json:"timeout"`
	MaxSamples   int      `json:"max_samples"`
	MaxRetries   int      `json:"max_retries"`
	RetryBackoff Duration `json:"retry_backoff"`
}

// CollectorConfig configures sample emission for known radios.
type CollectorConfig struct {
	Job          string         `json:"job"`
	Instance     string         `json:"instance"`
	EmitInterval Duration       `json:"emit_interval"`
	StaleAfter   Duration       `json:"stale_after"`
	Sources      []SourceConfig `json:"sources,omitempty"`
}

// Source types.
const (
	SourceHTTP = "http" // poll a JSON node database
	SourceTCP  = "tcp"  // stream packets from a radio's TCP API
)

// SourceConfig is a gateway the collector reads from. HTTP sources poll URL;
// TCP sources hold a connection to Address (host or host:port).
type SourceConfig struct {
	Name     string   `json:"name"`
	Type     string   `json:"type,omitempty"`
	URL      string   `json:"url,omitempty"`
	Address  string   `json:"address,omitempty"`
	Interval Duration `json:"interval"`
	Timeout  Duration `json:"timeout"`
	Retries  int      `json:"retries"`
}

// AuthConfig holds the HS256 secret used to verify bearer tokens.
type AuthConfig struct {
	Secret string `json:"secret"`
}

// Validate implements config.Validator interface and fills defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return ErrListenAddrRequired
	}

	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}

	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := c.Query.validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if err := c.Collector.validate(); err != nil {
		return fmt.Errorf("collector: %w", err)
	}

	return nil
}

func (s *StorageConfig) validate() error {
	if s.Retention == 0 {
		s.Retention = Duration(defaultRetention)
	}

	if s.Retention < 0 {
		return ErrInvalidRetention
	}

	if s.Resolution < 0 {
		return ErrInvalidResolution
	}

	if s.LookbackDelta <= 0 {
		s.LookbackDelta = Duration(defaultLookback)
	}

	return nil
}

func (q *QueryConfig) validate() error {
	if q.Timeout <= 0 {
		q.Timeout = Duration(defaultQueryTimeout)
	}

	if q.MaxSamples < 0 {
		return ErrInvalidMaxSamples
	}

	if q.MaxSamples == 0 {
		q.MaxSamples = defaultMaxSamples
	}

	if q.MaxRetries <= 0 {
		q.MaxRetries = defaultMaxRetries
	}

	if q.RetryBackoff <= 0 {
		q.RetryBackoff = Duration(defaultRetryBackoff)
	}

	return nil
}

func (c *CollectorConfig) validate() error {
	if c.Job == "" {
		c.Job = defaultJob
	}

	if c.EmitInterval < 0 {
		return ErrInvalidInterval
	}

	if c.EmitInterval == 0 {
		c.EmitInterval = Duration(defaultEmitInterval)
	}

	if c.StaleAfter <= 0 {
		c.StaleAfter = Duration(defaultStaleAfter)
	}

	names := make(map[string]bool)

	for i := range c.Sources {
		src := &c.Sources[i]

		if src.Type == "" {
			src.Type = SourceHTTP
			if src.URL == "" && src.Address != "" {
				src.Type = SourceTCP
			}
		}

		switch src.Type {
		case SourceHTTP:
			if src.URL == "" {
				return fmt.Errorf("source %d: %w", i+1, ErrSourceURLRequired)
			}
		case SourceTCP:
			if src.Address == "" {
				return fmt.Errorf("source %d: %w", i+1, ErrSourceAddressRequired)
			}
		default:
			return fmt.Errorf("source %d: %w: %q", i+1, ErrUnknownSourceType, src.Type)
		}

		if src.Name == "" {
			src.Name = fmt.Sprintf("source-%d", i+1)
		}

		if names[src.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name)
		}

		names[src.Name] = true

		if src.Interval <= 0 {
			src.Interval = Duration(defaultPollInterval)
		}

		if src.Timeout <= 0 {
			src.Timeout = Duration(defaultSourceTimeout)
		}
	}

	return nil
}
