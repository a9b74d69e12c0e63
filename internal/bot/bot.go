// Package bot wires the chat transport to the relay services: it long-polls
// the Bot API for updates and routes each one to the moderation, ingestion,
// or feedback path. Every update is handled in isolation; a failure on one
// never stalls the poll loop.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/question-relay/go-question-relay/internal/services"
	"github.com/question-relay/go-question-relay/internal/telegram"
)

// User-facing notices, verbatim.
const (
	rateLimitNoticeFmt   = "🚫 Лимит (%d вопросов/час) исчерпан!"
	feedbackThanksNotice = "Спасибо за вашу оценку!"
	feedbackErrorNotice  = "Ошибка при попытке сохранить оценку."
)

// DefaultPollTimeout is how long one getUpdates call may block server-side.
const DefaultPollTimeout = 30 * time.Second

// pollBackoff spaces retries after a failed getUpdates call.
const pollBackoff = 3 * time.Second

// Transport is the Bot API surface the dispatcher drives.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendReply(ctx context.Context, chatID, topicID, messageID int64, text, parseMode string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	RemoveReplyMarkup(ctx context.Context, chatID, messageID int64) error
}

// Bot routes incoming updates to the relay services.
type Bot struct {
	Transport   Transport
	Ingest      *services.IngestService
	Moderation  *services.ModeratorReplyService
	Feedback    *services.FeedbackService
	PollTimeout time.Duration
}

// Run long-polls for updates until ctx is cancelled. Poll failures are
// logged and retried after a short backoff; the offset only advances past
// updates that have been dispatched.
func (b *Bot) Run(ctx context.Context) {
	timeout := b.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := b.Transport.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("getUpdates failed")
			select {
			case <-time.After(pollBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		for _, upd := range updates {
			b.dispatchSafe(ctx, upd)
			offset = upd.UpdateID + 1
		}
	}
}

// dispatchSafe isolates a panic in one update's handling from the poll loop.
func (b *Bot) dispatchSafe(ctx context.Context, upd telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int64("update_id", upd.UpdateID).Msg("update handling panicked")
		}
	}()
	b.Dispatch(ctx, upd)
}

// Dispatch routes one update. Unroutable updates are dropped.
func (b *Bot) Dispatch(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

// handleMessage runs the moderation path for replies in the watched topic,
// then falls through to question ingestion. A moderator's reply is consumed
// by the moderation path; anyone else's message — reply or not — competes
// for ingestion like any other candidate question.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	if msg.ReplyToMessage != nil &&
		msg.Chat.ID == b.Ingest.AllowedChatID &&
		msg.MessageThreadID == b.Ingest.AllowedTopicID {
		if b.Moderation.OnReply(ctx, msg.Chat.ID, msg.From.ID, msg.ReplyToMessage.MessageID) {
			return
		}
	}

	res, err := b.Ingest.Ingest(ctx, services.IncomingQuestion{
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		TopicID:   msg.MessageThreadID,
		Text:      msg.Text,
		FromBot:   msg.From.IsBot,
	}, time.Now())
	if err != nil {
		log.Error().Err(err).Int64("message_id", msg.MessageID).Msg("ingest failed")
		return
	}

	if res == services.ResultRateLimited {
		notice := fmt.Sprintf(rateLimitNoticeFmt, b.Ingest.Limit())
		if _, err := b.Transport.SendReply(ctx, msg.Chat.ID, msg.MessageThreadID, msg.MessageID, notice, "", nil); err != nil {
			log.Error().Err(err).Int64("message_id", msg.MessageID).Msg("rate limit notice failed")
		}
	}
}

// handleCallback records a rating button press and retires the keyboard.
func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	kind, id, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	var value int
	switch kind {
	case "like":
		value = 1
	case "dislike":
		value = -1
	default:
		return
	}
	messageID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		log.Warn().Str("data", cb.Data).Msg("malformed callback payload")
		return
	}

	if err := b.Feedback.Record(ctx, messageID, cb.From.ID, value); err != nil {
		log.Error().Err(err).Int64("message_id", messageID).Msg("feedback record failed")
		if aerr := b.Transport.AnswerCallback(ctx, cb.ID, feedbackErrorNotice); aerr != nil {
			log.Error().Err(aerr).Msg("callback answer failed")
		}
		return
	}

	if err := b.Transport.AnswerCallback(ctx, cb.ID, feedbackThanksNotice); err != nil {
		log.Error().Err(err).Msg("callback answer failed")
	}
	if cb.Message != nil {
		if err := b.Transport.RemoveReplyMarkup(ctx, cb.Message.Chat.ID, cb.Message.MessageID); err != nil {
			log.Error().Err(err).Int64("message_id", cb.Message.MessageID).Msg("keyboard removal failed")
		}
	}
}
