// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Question
// model: the single source of truth for the delayed-answer state machine.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving lifecycle rules to the services package.
//
// Error semantics:
//   - InsertQuestion maps a unique violation on message_id to ErrDuplicate.
//   - GetQuestionState maps a missing row to ErrNotFound.
//   - Other DB errors are propagated raw.
//
// MarkPreempted and MarkAnswered are idempotent single-statement updates.
// Their WHERE clauses encode the monotonic-flag invariant: a resolved
// question is never flipped back, and answering never overwrites a
// preemption. Serialization of a concurrent preempt/answer on the same row
// happens here, at the storage layer, not via in-process locks.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/domain"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates a unique-key violation on insert.
var ErrDuplicate = errors.New("duplicate key")

// QuestionState is the subset of a question row the scheduler and the
// moderator-reply detector care about.
type QuestionState struct {
	Text               string
	Answered           bool
	ModeratorPreempted bool
}

// InsertQuestion records a freshly ingested question and returns the
// store-assigned id. Returns ErrDuplicate if an open question already holds
// this message_id.
func InsertQuestion(ctx context.Context, db *gorm.DB, messageID, chatID, userID int64, text string, topicID int64, now time.Time) (uint, error) {
	q := &domain.Question{
		MessageID: messageID,
		ChatID:    chatID,
		UserID:    userID,
		Text:      text,
		TopicID:   topicID,
		CreatedAt: now.UTC(),
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return q.ID, nil
}

// MarkPreempted sets moderator_preempted on an open question. No-op if the
// question is already preempted, already answered, or unknown.
func MarkPreempted(ctx context.Context, db *gorm.DB, messageID int64) error {
	return db.WithContext(ctx).
		Model(&domain.Question{}).
		Where("message_id = ? AND answered = ? AND moderator_preempted = ?", messageID, false, false).
		Update("moderator_preempted", true).Error
}

// MarkAnswered sets answered on a question. No-op if already answered.
func MarkAnswered(ctx context.Context, db *gorm.DB, messageID int64) error {
	return db.WithContext(ctx).
		Model(&domain.Question{}).
		Where("message_id = ? AND answered = ?", messageID, false).
		Update("answered", true).Error
}

// GetQuestionState loads the current flags and text for a message id.
// Returns ErrNotFound if no row exists.
func GetQuestionState(ctx context.Context, db *gorm.DB, messageID int64) (*QuestionState, error) {
	var q domain.Question
	if err := db.WithContext(ctx).Where("message_id = ?", messageID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &QuestionState{
		Text:               q.Text,
		Answered:           q.Answered,
		ModeratorPreempted: q.ModeratorPreempted,
	}, nil
}

// DeleteQuestionsOlderThan bulk-deletes question rows created before cutoff,
// regardless of resolution state, and returns the number removed.
func DeleteQuestionsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&domain.Question{})
	return res.RowsAffected, res.Error
}

// ListQuestions returns all question rows ordered by id, for export.
func ListQuestions(ctx context.Context, db *gorm.DB) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
