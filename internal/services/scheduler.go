// Package services – ResponseScheduler
//
// This file implements the delayed-answer state machine. Each accepted
// question gets one deferred task: check the stored flags, sleep out the
// grace period, check again, and only then generate and post an answer.
//
// The double check narrows, but cannot close, the window against a moderator
// reply landing at the same instant as the timer's final read — both sides
// are plain store calls, and a same-instant reply is an inherent race with
// no guaranteed winner. That tradeoff is accepted; the moderator's write is
// never lost, only occasionally followed by a redundant automated answer.
//
// Failure semantics are fire-once-or-never: a completion or transport error
// ends the task without marking the question answered and without retry; the
// row ages out through the retention sweeper. A completion failure still
// produces a fallback apology so the asker gets a terminal response.
package services

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/repo"
	"github.com/question-relay/go-question-relay/internal/telegram"
)

// FallbackAnswer is posted when the completion service fails.
const FallbackAnswer = "Не удалось обработать запрос. Попробуйте позже."

// Completer is the external text-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, question string) (string, error)
}

// AnswerSender posts rich-text replies into the chat.
type AnswerSender interface {
	SendReply(ctx context.Context, chatID, topicID, messageID int64, text, parseMode string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
}

// ResponseScheduler runs one deferred answer task per accepted question.
// Tasks are independent and unordered; there is no cancellation path beyond
// the task's own flag checks and context cancellation on shutdown.
type ResponseScheduler struct {
	DB           *gorm.DB
	Completer    Completer
	Sender       AnswerSender
	SystemPrompt string
	Delay        time.Duration

	wg sync.WaitGroup
}

// Schedule starts the deferred task for a question. The task is bound to
// (chatID, messageID, topicID) only; all state lives in the store.
func (s *ResponseScheduler) Schedule(ctx context.Context, chatID, messageID, topicID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, chatID, messageID, topicID)
	}()
}

// Wait blocks until all in-flight tasks have finished. Shutdown does not
// persist timers: a task aborted mid-delay never answers, and its row is
// reclaimed by the retention sweeper.
func (s *ResponseScheduler) Wait() { s.wg.Wait() }

func (s *ResponseScheduler) run(ctx context.Context, chatID, messageID, topicID int64) {
	tr := otel.Tracer("services/ResponseScheduler")
	ctx, span := tr.Start(ctx, "DelayedAnswer",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("message.id", messageID),
		),
	)
	defer span.End()

	// Early check: the question may already be resolved (or gone).
	st, err := repo.GetQuestionState(ctx, s.DB, messageID)
	if err != nil {
		if err != repo.ErrNotFound {
			log.Error().Err(err).Int64("message_id", messageID).Msg("pre-delay state read failed")
		}
		answersSuppressed.WithLabelValues("missing").Inc()
		return
	}
	if st.Answered || st.ModeratorPreempted {
		answersSuppressed.WithLabelValues("resolved_early").Inc()
		return
	}

	select {
	case <-time.After(s.Delay):
	case <-ctx.Done():
		answersSuppressed.WithLabelValues("shutdown").Inc()
		return
	}

	// Final check after the grace period.
	st, err = repo.GetQuestionState(ctx, s.DB, messageID)
	if err != nil {
		if err != repo.ErrNotFound {
			log.Error().Err(err).Int64("message_id", messageID).Msg("post-delay state read failed")
		}
		answersSuppressed.WithLabelValues("missing").Inc()
		return
	}
	if st.ModeratorPreempted {
		log.Info().Int64("message_id", messageID).Msg("moderator replied, suppressing answer")
		answersSuppressed.WithLabelValues("preempted").Inc()
		return
	}
	if st.Answered {
		answersSuppressed.WithLabelValues("already_answered").Inc()
		return
	}

	answer, err := s.Completer.Complete(ctx, s.SystemPrompt, st.Text)
	if err != nil {
		log.Error().Err(err).Int64("message_id", messageID).Msg("completion failed")
		answersSuppressed.WithLabelValues("completion_error").Inc()
		// The asker still gets a terminal response, but the question stays
		// unanswered in the store.
		if _, serr := s.Sender.SendReply(ctx, chatID, topicID, messageID, FallbackAnswer, "", nil); serr != nil {
			log.Error().Err(serr).Int64("message_id", messageID).Msg("fallback send failed")
		}
		return
	}

	text := FormatAnswer(answer)
	if _, err := s.Sender.SendReply(ctx, chatID, topicID, messageID, text, "HTML", FeedbackKeyboard(messageID)); err != nil {
		log.Error().Err(err).Int64("message_id", messageID).Msg("answer send failed")
		answersSuppressed.WithLabelValues("send_error").Inc()
		return
	}

	if err := repo.MarkAnswered(ctx, s.DB, messageID); err != nil {
		log.Error().Err(err).Int64("message_id", messageID).Msg("mark answered failed")
		return
	}
	answersSent.Inc()
	log.Info().Int64("message_id", messageID).Msg("answer sent")
}

// boldRE matches the completion service's **bold** markup.
var boldRE = regexp.MustCompile(`\*\*(.*?)\*\*`)

// FormatAnswer converts the completion service's bold markup into the
// transport's HTML markup.
func FormatAnswer(s string) string {
	return boldRE.ReplaceAllString(s, "<b>$1</b>")
}

// FeedbackKeyboard builds the two-button rating control attached to every
// automated answer. The callback payload carries the question's message id.
func FeedbackKeyboard(messageID int64) *telegram.InlineKeyboardMarkup {
	id := strconv.FormatInt(messageID, 10)
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "👍", CallbackData: "like:" + id},
			{Text: "👎", CallbackData: "dislike:" + id},
		}},
	}
}
