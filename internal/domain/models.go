// Package domain defines the persistence models for questions, per-user
// counters, and feedback. These types are mapped with GORM and form the core
// data layer of the relay bot.
package domain

import (
	"time"
)

// Question is one ingested group-chat message that contained a question mark.
// A question is resolved when either Answered or ModeratorPreempted is true;
// both flags are monotonic and never flip back to false.
//
// Fields:
//   - ID: store-assigned, monotonic primary key.
//   - MessageID: external chat message identifier; the join key used by the
//     moderator-reply detector and the delayed scheduler. Unique among open
//     questions (enforced by index; the store is recreated at every start, so
//     a plain unique index is sufficient within the retention horizon).
//   - ChatID / TopicID: origin chat and sub-channel (thread) of the message.
//   - UserID: identifier of the asking user.
//   - Text: question text, stored verbatim.
//   - CreatedAt: ingestion timestamp; basis for retention sweeps.
//   - Answered: set once by the scheduler after a successful automated reply.
//   - ModeratorPreempted: set once by the moderator-reply detector.
type Question struct {
	ID                 uint      `json:"id"                  gorm:"primaryKey;autoIncrement"`
	MessageID          int64     `json:"message_id"          gorm:"not null;uniqueIndex:ux_questions_message"`
	ChatID             int64     `json:"chat_id"             gorm:"not null"`
	UserID             int64     `json:"user_id"             gorm:"not null;index:idx_questions_user"`
	Text               string    `json:"text"                gorm:"type:text;not null"`
	TopicID            int64     `json:"topic_id"`
	CreatedAt          time.Time `json:"created_at"          gorm:"index:idx_questions_created"`
	Answered           bool      `json:"answered"            gorm:"not null;default:false"`
	ModeratorPreempted bool      `json:"moderator_preempted" gorm:"not null;default:false"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Resolved reports whether the question reached a terminal state.
func (q Question) Resolved() bool { return q.Answered || q.ModeratorPreempted }

// UserCounter tracks how many questions a user has asked. The count is a
// rolling counter that is only advanced by ingestion; it never decays on its
// own (a deliberate reproduction of the observed limiter behavior —
// LastQuestionTime is kept so an external reset sweep can be added later).
type UserCounter struct {
	UserID           int64     `json:"user_id"            gorm:"primaryKey"`
	LastQuestionTime time.Time `json:"last_question_time"`
	QuestionCount    int       `json:"question_count"     gorm:"not null;default:0"`
}

// TableName returns the database table name for UserCounter.
func (UserCounter) TableName() string { return "users" }

// Feedback is one like/dislike rating against a delivered answer. It is
// append-only and write-only from the state machine's perspective: ratings
// never affect the question lifecycle. Idempotency is intentionally not
// enforced (the one-shot button removal in the chat UI is the only guard).
//
// Value is +1 (like) or -1 (dislike).
type Feedback struct {
	ID           uint      `json:"id"            gorm:"primaryKey;autoIncrement"`
	MessageID    int64     `json:"message_id"    gorm:"not null;index:idx_feedback_message"`
	UserID       int64     `json:"user_id"       gorm:"not null"`
	Value        int       `json:"value"         gorm:"not null;check:value IN (-1,1)"`
	QuestionText string    `json:"question_text" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
