// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model.
//
// Feedback is append-only and deliberately not deduplicated: pressing the
// same rating button twice yields two rows. The chat UI's one-shot keyboard
// removal is the only guard.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/domain"
)

// CreateFeedback appends a rating row for the given answer message.
func CreateFeedback(ctx context.Context, db *gorm.DB, messageID, userID int64, value int, questionText string, now time.Time) error {
	fb := &domain.Feedback{
		MessageID:    messageID,
		UserID:       userID,
		Value:        value,
		QuestionText: questionText,
		CreatedAt:    now.UTC(),
	}
	return db.WithContext(ctx).Create(fb).Error
}

// ListFeedback returns all feedback rows ordered by id, for export.
func ListFeedback(ctx context.Context, db *gorm.DB) ([]domain.Feedback, error) {
	var out []domain.Feedback
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}
