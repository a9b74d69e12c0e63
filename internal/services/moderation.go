// Package services – ModeratorReplyService
//
// This file implements the moderator-reply detector: the only writer of the
// moderator_preempted flag. Privilege lookups are delegated to the chat
// transport; a failed or timed-out lookup demotes the replier to non-moderator
// and the event is dropped, never surfaced as an error.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/repo"
)

// AdminChecker resolves whether a user currently holds moderator privilege
// in a chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// ModeratorReplyService flags questions a human moderator answered first.
type ModeratorReplyService struct {
	DB     *gorm.DB
	Admins AdminChecker
}

// OnReply handles any reply event in the watched chat. If the replier is a
// moderator, the target question (if open) is preempted and OnReply reports
// true; the caller must not treat the message as a new question. A reply
// from a regular user reports false and is left for normal ingestion.
// Races with the delayed task's own final check are resolved at the storage
// layer; a preemption landing after the answer is a no-op.
func (s *ModeratorReplyService) OnReply(ctx context.Context, chatID, replierID, repliedToMessageID int64) bool {
	isAdmin, err := s.Admins.IsChatAdmin(ctx, chatID, replierID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", replierID).Msg("admin lookup failed, treating as non-moderator")
		return false
	}
	if !isAdmin {
		return false
	}

	if err := repo.MarkPreempted(ctx, s.DB, repliedToMessageID); err != nil {
		log.Error().Err(err).Int64("message_id", repliedToMessageID).Msg("mark preempted failed")
		return true
	}
	log.Info().Int64("message_id", repliedToMessageID).Int64("moderator_id", replierID).Msg("moderator replied")
	return true
}
