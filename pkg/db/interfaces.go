// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/mfreeman451/meshradar/pkg/db Service

// Service represents all database operations.
type Service interface {
	// StoreSamples writes samples idempotently per series and timestamp.
	StoreSamples(ctx context.Context, samples []models.Sample) error
	// LoadSamples returns samples at or after since, ascending per series.
	LoadSamples(ctx context.Context, since time.Time) ([]models.Sample, error)
	// CleanOldData removes samples older than the retention period and
	// any series left without samples.
	CleanOldData(ctx context.Context, retentionPeriod time.Duration) error
	Close() error
}
