package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	deleteSamplesSQL = `DELETE FROM samples WHERE timestamp < ?`
	deleteSeriesSQL  = `DELETE FROM series WHERE id NOT IN (SELECT DISTINCT series_id FROM samples)`
)

// CleanOldData removes samples older than retentionPeriod and drops series
// left without samples.
func (db *DB) CleanOldData(ctx context.Context, retentionPeriod time.Duration) (err error) {
	cutoff := time.Now().Add(-retentionPeriod).UnixMilli()

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("failed to rollback: %v", rbErr)
			}

			return
		}

		err = tx.Commit()
	}()

	result, err := tx.ExecContext(ctx, deleteSamplesSQL, cutoff)
	if err != nil {
		return fmt.Errorf("%w samples: %w", ErrFailedToClean, err)
	}

	if _, err = tx.ExecContext(ctx, deleteSeriesSQL); err != nil {
		return fmt.Errorf("%w series: %w", ErrFailedToClean, err)
	}

	if n, rerr := result.RowsAffected(); rerr == nil && n > 0 {
		log.Printf("Cleaned %d samples older than %v", n, retentionPeriod)
	}

	// series ids may have been removed
	db.seriesID = make(map[string]int64)

	return nil
}
