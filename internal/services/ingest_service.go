// Package services – IngestService
//
// This file implements the ingestion handler: it filters incoming chat
// messages down to questions the bot should handle, enforces the per-user
// rate limit, records the accepted question, and hands it to the delayed
// response scheduler.
//
// The rate limiter reads the persisted per-user counter; the counter is
// advanced only by this handler's own write after acceptance. Check and
// increment therefore run under a per-user lock so two concurrent messages
// from the same user cannot both pass at the limit boundary. The counter
// never decays — a deliberate reproduction of the observed behavior.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/auditlog"
	"github.com/question-relay/go-question-relay/internal/repo"
)

// DefaultMaxQuestionsPerUser caps how many questions a user may ask within
// the rolling window.
const DefaultMaxQuestionsPerUser = 50

// IngestResult classifies the outcome of one ingestion attempt.
type IngestResult int

const (
	// ResultScheduled: the question was recorded and a delayed answer task started.
	ResultScheduled IngestResult = iota
	// ResultIgnoredBot: message from an automated sender, dropped silently.
	ResultIgnoredBot
	// ResultIgnoredNotQuestion: no question mark in the text, dropped silently.
	ResultIgnoredNotQuestion
	// ResultIgnoredWrongChat: outside the allowed chat or topic, dropped silently.
	ResultIgnoredWrongChat
	// ResultRateLimited: the user's counter is at the maximum; the caller
	// must send a user-visible notice.
	ResultRateLimited
)

// String returns the rejection-reason label for metrics and logs.
func (r IngestResult) String() string {
	switch r {
	case ResultScheduled:
		return "scheduled"
	case ResultIgnoredBot:
		return "bot"
	case ResultIgnoredNotQuestion:
		return "not_question"
	case ResultIgnoredWrongChat:
		return "wrong_chat"
	case ResultRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// IncomingQuestion is the transport-agnostic projection of a chat message
// the ingestion handler needs.
type IncomingQuestion struct {
	MessageID int64
	ChatID    int64
	UserID    int64
	TopicID   int64
	Text      string
	FromBot   bool
}

// AnswerScheduler starts a delayed answer task for an accepted question.
type AnswerScheduler interface {
	Schedule(ctx context.Context, chatID, messageID, topicID int64)
}

// IngestService validates and records incoming questions.
type IngestService struct {
	DB        *gorm.DB
	Audit     *auditlog.Log
	Scheduler AnswerScheduler

	AllowedChatID       int64
	AllowedTopicID      int64
	MaxQuestionsPerUser int

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// Ingest runs the acceptance pipeline for one message. Silent rejections are
// not errors; only backend failures produce a non-nil error.
func (s *IngestService) Ingest(ctx context.Context, msg IncomingQuestion, now time.Time) (IngestResult, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.Int64("chat.id", msg.ChatID),
			attribute.Int64("message.id", msg.MessageID),
			attribute.Int64("user.id", msg.UserID),
		),
	)
	defer span.End()

	if msg.FromBot {
		questionsRejected.WithLabelValues(ResultIgnoredBot.String()).Inc()
		return ResultIgnoredBot, nil
	}
	if !strings.Contains(msg.Text, "?") {
		questionsRejected.WithLabelValues(ResultIgnoredNotQuestion.String()).Inc()
		return ResultIgnoredNotQuestion, nil
	}
	if msg.ChatID != s.AllowedChatID || msg.TopicID != s.AllowedTopicID {
		questionsRejected.WithLabelValues(ResultIgnoredWrongChat.String()).Inc()
		return ResultIgnoredWrongChat, nil
	}

	// Limit check and counter increment form one critical section per user.
	unlock := s.lockUser(msg.UserID)
	defer unlock()

	count, err := repo.GetUserCounter(ctx, s.DB, msg.UserID)
	if err != nil {
		return 0, err
	}
	if count >= s.Limit() {
		questionsRejected.WithLabelValues(ResultRateLimited.String()).Inc()
		return ResultRateLimited, nil
	}

	if _, err := repo.InsertQuestion(ctx, s.DB, msg.MessageID, msg.ChatID, msg.UserID, msg.Text, msg.TopicID, now); err != nil {
		if err == repo.ErrDuplicate {
			return 0, ErrDuplicateQuestion
		}
		return 0, err
	}

	// Best-effort audit append; a full disk must not lose the question.
	if s.Audit != nil {
		if err := s.Audit.AppendQuestion(msg.Text); err != nil {
			log.Warn().Err(err).Int64("message_id", msg.MessageID).Msg("question audit append failed")
		}
	}

	if _, err := repo.UpsertUserCounter(ctx, s.DB, msg.UserID, now); err != nil {
		log.Error().Err(err).Int64("user_id", msg.UserID).Msg("counter update failed")
	}

	s.Scheduler.Schedule(ctx, msg.ChatID, msg.MessageID, msg.TopicID)
	questionsIngested.Inc()

	log.Info().
		Int64("message_id", msg.MessageID).
		Int64("user_id", msg.UserID).
		Msg("question scheduled")
	return ResultScheduled, nil
}

// Limit returns the effective per-user question cap.
func (s *IngestService) Limit() int {
	if s.MaxQuestionsPerUser > 0 {
		return s.MaxQuestionsPerUser
	}
	return DefaultMaxQuestionsPerUser
}

// lockUser acquires the per-user ingestion lock, creating it on first use.
// Lock entries are never evicted; like the counters themselves, the map
// grows with the number of distinct askers.
func (s *IngestService) lockUser(userID int64) func() {
	s.mu.Lock()
	if s.userLocks == nil {
		s.userLocks = make(map[int64]*sync.Mutex)
	}
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
