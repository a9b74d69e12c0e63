package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return db
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "no", "such", "dir", "app.db"))
	if err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestOpenSQLite_CreatesFile(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := InsertQuestion(context.Background(), db, 1, 10, 42, "работает?", 2, time.Now()); err != nil {
		t.Fatalf("insert after open: %v", err)
	}
}

// A restart must produce an empty question/user store while preserving
// previously recorded feedback.
func TestInitSchema_ColdStartDropsState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := InsertQuestion(ctx, db, 5, 10, 42, "q?", 2, time.Now()); err != nil {
		t.Fatalf("seed question: %v", err)
	}
	if _, err := UpsertUserCounter(ctx, db, 42, time.Now()); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if err := CreateFeedback(ctx, db, 5, 7, 1, "q?", time.Now()); err != nil {
		t.Fatalf("seed feedback: %v", err)
	}

	if err := InitSchema(db); err != nil {
		t.Fatalf("re-init: %v", err)
	}

	if _, err := GetQuestionState(ctx, db, 5); err != ErrNotFound {
		t.Fatalf("question survived cold start: err=%v", err)
	}
	n, err := GetUserCounter(ctx, db, 42)
	if err != nil || n != 0 {
		t.Fatalf("counter survived cold start: n=%d err=%v", n, err)
	}
	fbs, err := ListFeedback(ctx, db)
	if err != nil || len(fbs) != 1 {
		t.Fatalf("feedback should survive cold start: n=%d err=%v", len(fbs), err)
	}
	if fbs[0].QuestionText != "q?" {
		t.Fatalf("feedback row mangled: %+v", fbs[0])
	}
}
