package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/question-relay/go-question-relay/internal/repo"
	"github.com/question-relay/go-question-relay/internal/telegram"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return db
}

// fakeCompleter returns a canned answer or error and counts invocations.
type fakeCompleter struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	lastSys string
	lastQ   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSys = systemPrompt
	f.lastQ = question
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sentReply struct {
	chatID, topicID, messageID int64
	text, parseMode            string
	markup                     *telegram.InlineKeyboardMarkup
}

// fakeSender records outgoing replies.
type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentReply
}

func (f *fakeSender) SendReply(_ context.Context, chatID, topicID, messageID int64, text, parseMode string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentReply{chatID, topicID, messageID, text, parseMode, markup})
	return &telegram.Message{MessageID: int64(1000 + len(f.sent))}, nil
}

func (f *fakeSender) replies() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentReply, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeAdmins answers privilege lookups from a fixed set.
type fakeAdmins struct {
	admins map[int64]bool
	err    error
}

func (f *fakeAdmins) IsChatAdmin(_ context.Context, _, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.admins[userID], nil
}

// fakeScheduler records scheduled questions without spawning tasks.
type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []int64
}

func (f *fakeScheduler) Schedule(_ context.Context, _, messageID, _ int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, messageID)
}

func (f *fakeScheduler) ids() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.scheduled))
	copy(out, f.scheduled)
	return out
}

var errBackend = errors.New("backend down")
