// Package services – RetentionSweeper
//
// This file implements the periodic purge of aged question rows. Expiry is
// unconditional: resolved and unresolved rows alike are removed once they
// cross the horizon. Sweep failures are logged and the schedule continues.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/repo"
)

// Retention defaults.
const (
	DefaultCleanupInterval  = 24 * time.Hour
	DefaultRetentionHorizon = 7 * 24 * time.Hour
)

// RetentionSweeper deletes question rows older than the horizon on a fixed
// interval.
type RetentionSweeper struct {
	DB       *gorm.DB
	Interval time.Duration
	Horizon  time.Duration
}

// Run blocks, sweeping every Interval until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

// Sweep removes all question rows older than the horizon relative to now and
// returns the number removed.
func (s *RetentionSweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	horizon := s.Horizon
	if horizon <= 0 {
		horizon = DefaultRetentionHorizon
	}
	n, err := repo.DeleteQuestionsOlderThan(ctx, s.DB, now.Add(-horizon))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		questionsSwept.Add(float64(n))
	}
	log.Info().Int64("removed", n).Msg("retention sweep completed")
	return n, nil
}
