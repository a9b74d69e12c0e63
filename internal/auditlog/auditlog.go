// Package auditlog provides the two append-only text logs the bot keeps
// alongside the database: one for raw question text and one for feedback
// events. Unlike the question store, these files are never reset at process
// start. Appends are best-effort; callers log failures and move on.
package auditlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Log is a timestamped append-only line log.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns a Log writing to path. The file is created on first append.
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Append writes one "<timestamp> - <line>" entry.
func (l *Log) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s - %s\n", l.now().Format(timeLayout), line)
	return err
}

// AppendQuestion records an ingested question's raw text.
func (l *Log) AppendQuestion(text string) error {
	return l.Append(text)
}

// AppendFeedback records a rating event against an answered question.
func (l *Log) AppendFeedback(questionText, rating string, userID int64) error {
	return l.Append(fmt.Sprintf("Вопрос: %q | Оценка: %s | От пользователя: %d", questionText, rating, userID))
}
