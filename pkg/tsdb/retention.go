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

package tsdb

import (
	"context"
	"log"
	"time"
)

const minRetentionInterval = time.Second

// Cleaner removes persisted data older than the retention window.
type Cleaner interface {
	CleanOldData(ctx context.Context, retention time.Duration) error
}

// RunRetention truncates the store every retention/10 until ctx is done.
// When cleaner is non-nil the persisted copy is cleaned on the same tick.
func (s *Store) RunRetention(ctx context.Context, retention time.Duration, cleaner Cleaner) {
	interval := retention / 10
	if interval < minRetentionInterval {
		interval = minRetentionInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.isClosed() {
				return
			}

			s.Truncate(now.Add(-retention))

			if cleaner == nil {
				continue
			}

			if err := cleaner.CleanOldData(ctx, retention); err != nil {
				log.Printf("Failed to clean persisted samples: %v", err)
			}
		}
	}
}
