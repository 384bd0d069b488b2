// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Backoff describes a bounded exponential retry schedule.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the wait after the first failure; it doubles on each retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultBackoff is used for source fetches unless overridden.
var DefaultBackoff = Backoff{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.BaseDelay << (attempt - 1)
	if d <= 0 || (b.MaxDelay > 0 && d > b.MaxDelay) {
		return b.MaxDelay
	}
	return d
}

// Retry runs operation until it succeeds, the attempts run out, or ctx ends.
// It returns the error from the last attempt. Context errors returned by
// operation are not retried.
func (b Backoff) Retry(ctx context.Context, logger *slog.Logger, operation func(ctx context.Context) error) error {
	if b.Attempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		logger.Debug("operation failed", "attempt", attempt, "max_attempts", b.Attempts, "err", lastErr)
		if attempt == b.Attempts {
			break
		}

		timer := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
