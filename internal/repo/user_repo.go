// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the UserCounter
// model backing the rate limiter.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/question-relay/go-question-relay/internal/domain"
)

// UpsertUserCounter increments the user's rolling question counter, creating
// a fresh counter at 1 for a first-time asker, and returns the new count.
// The increment is a single ON CONFLICT statement so concurrent ingestions
// for different users never interfere; same-user serialization is the
// ingestion handler's job.
func UpsertUserCounter(ctx context.Context, db *gorm.DB, userID int64, now time.Time) (int, error) {
	c := &domain.UserCounter{
		UserID:           userID,
		LastQuestionTime: now.UTC(),
		QuestionCount:    1,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"question_count":     gorm.Expr("question_count + 1"),
			"last_question_time": now.UTC(),
		}),
	}).Create(c).Error
	if err != nil {
		return 0, err
	}
	return GetUserCounter(ctx, db, userID)
}

// GetUserCounter returns the user's current question count, or 0 for a user
// who has never asked.
func GetUserCounter(ctx context.Context, db *gorm.DB, userID int64) (int, error) {
	var c domain.UserCounter
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return c.QuestionCount, nil
}
