// Package db pkg/db/db.go provides SQLite persistence for meshradar samples.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- One row per label set
	CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		labels_json TEXT NOT NULL UNIQUE
	);

	-- Sample values, one per series and millisecond timestamp
	CREATE TABLE IF NOT EXISTS samples (
		series_id INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (series_id, timestamp),
		FOREIGN KEY (series_id) REFERENCES series(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_samples_timestamp
		ON samples(timestamp);

	PRAGMA foreign_keys=ON;
	`

	insertSeriesSQL = `INSERT OR IGNORE INTO series (labels_json) VALUES (?)`
	selectSeriesSQL = `SELECT id FROM series WHERE labels_json = ?`
	insertSampleSQL = `INSERT OR IGNORE INTO samples (series_id, timestamp, value) VALUES (?, ?, ?)`
	loadSamplesSQL  = `
		SELECT s.labels_json, p.timestamp, p.value
		FROM samples p
		JOIN series s ON s.id = p.series_id
		WHERE p.timestamp >= ?
		ORDER BY p.series_id, p.timestamp`
)

var _ Service = (*DB)(nil)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB

	mu       sync.Mutex
	seriesID map[string]int64
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToEnableWAL, err)
	}

	db := wrap(sqlDB)
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

func wrap(sqlDB *sql.DB) *DB {
	return &DB{DB: sqlDB, seriesID: make(map[string]int64)}
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema() error {
	_, err := db.Exec(createTablesSQL)

	return err
}

func rollbackOnError(tx *sql.Tx, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("Error rolling back transaction: %v", rbErr)
		}
	}
}

// StoreSamples writes the batch in one transaction.
func (db *DB) StoreSamples(ctx context.Context, samples []models.Sample) (err error) {
	if len(samples) == 0 {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}

	created := make(map[string]int64)

	defer func() {
		rollbackOnError(tx, err)
	}()

	for i := range samples {
		id, err := db.seriesFor(ctx, tx, samples[i].Labels, created)
		if err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx, insertSampleSQL, id, samples[i].Timestamp, samples[i].Value); err != nil {
			return fmt.Errorf("%w sample: %w", ErrFailedToInsert, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrFailedToInsert, err)
	}

	// ids created in a rolled back transaction must not be cached
	for key, id := range created {
		db.seriesID[key] = id
	}

	return nil
}

func (db *DB) seriesFor(ctx context.Context, tx *sql.Tx, lbls labels.Labels, created map[string]int64) (int64, error) {
	raw, err := json.Marshal(lbls)
	if err != nil {
		return 0, fmt.Errorf("%w series: %w", ErrFailedToInsert, err)
	}

	key := string(raw)

	if id, ok := db.seriesID[key]; ok {
		return id, nil
	}

	if id, ok := created[key]; ok {
		return id, nil
	}

	if _, err := tx.ExecContext(ctx, insertSeriesSQL, key); err != nil {
		return 0, fmt.Errorf("%w series: %w", ErrFailedToInsert, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, selectSeriesSQL, key).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w series id: %w", ErrFailedToQuery, err)
	}

	created[key] = id

	return id, nil
}

// LoadSamples returns every sample at or after since.
func (db *DB) LoadSamples(ctx context.Context, since time.Time) ([]models.Sample, error) {
	rows, err := db.QueryContext(ctx, loadSamplesSQL, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w samples: %w", ErrFailedToQuery, err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}(rows)

	parsed := make(map[string]labels.Labels)

	var samples []models.Sample

	for rows.Next() {
		var (
			raw string
			s   models.Sample
		)

		if err := rows.Scan(&raw, &s.Timestamp, &s.Value); err != nil {
			return nil, fmt.Errorf("%w sample row: %w", ErrFailedToScan, err)
		}

		lbls, ok := parsed[raw]
		if !ok {
			if err := json.Unmarshal([]byte(raw), &lbls); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidLabels, err)
			}

			parsed[raw] = lbls
		}

		s.Labels = lbls
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w samples: %w", ErrFailedToQuery, err)
	}

	return samples, nil
}
