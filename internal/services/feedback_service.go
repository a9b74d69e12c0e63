// Package services – FeedbackService
//
// This file implements rating recording for delivered answers. Ratings are
// append-only and never touch the question state machine. A rater pressing
// the same button twice produces two records; the one-shot keyboard removal
// in the chat UI is the only guard, and it is not atomic with the write.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/auditlog"
	"github.com/question-relay/go-question-relay/internal/repo"
)

// PlaceholderQuestion stands in when the rated question has already been
// swept from the store.
const PlaceholderQuestion = "[вопрос не найден]"

// FeedbackService records like/dislike ratings.
type FeedbackService struct {
	DB    *gorm.DB
	Audit *auditlog.Log
}

// Record stores one rating (value +1 or -1) from raterID against the
// question identified by messageID. The question text is looked up
// best-effort for context.
func (s *FeedbackService) Record(ctx context.Context, messageID, raterID int64, value int) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.Int64("message.id", messageID),
			attribute.Int("value", value),
		),
	)
	defer span.End()

	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	questionText := PlaceholderQuestion
	if st, err := repo.GetQuestionState(ctx, s.DB, messageID); err == nil {
		questionText = st.Text
	} else if err != repo.ErrNotFound {
		log.Warn().Err(err).Int64("message_id", messageID).Msg("question lookup for feedback failed")
	}

	if err := repo.CreateFeedback(ctx, s.DB, messageID, raterID, value, questionText, time.Now()); err != nil {
		return err
	}

	rating := "👍"
	if value < 0 {
		rating = "👎"
	}
	if s.Audit != nil {
		if err := s.Audit.AppendFeedback(questionText, rating, raterID); err != nil {
			log.Warn().Err(err).Int64("message_id", messageID).Msg("feedback audit append failed")
		}
	}

	feedbackRecorded.WithLabelValues(rating).Inc()
	log.Info().Int64("message_id", messageID).Str("rating", rating).Msg("feedback recorded")
	return nil
}
