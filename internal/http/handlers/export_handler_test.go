package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/question-relay/go-question-relay/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

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

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := New(db)

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/admin/export/questions.csv", h.ExportQuestions)
	r.GET("/admin/export/feedback.csv", h.ExportFeedback)
	return r, db
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := get(t, r, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestExportQuestions(t *testing.T) {
	r, db := newTestRouter(t)

	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	if _, err := repo.InsertQuestion(context.Background(), db, 100, -1, 42, "Какие документы нужны?", 2, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.InsertQuestion(context.Background(), db, 101, -1, 43, "Когда дедлайн?", 2, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.MarkAnswered(context.Background(), db, 101); err != nil {
		t.Fatalf("MarkAnswered: %v", err)
	}

	w := get(t, r, "/admin/export/questions.csv")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "questions_export.csv") {
		t.Fatalf("content disposition = %q", cd)
	}

	body := w.Body.Bytes()
	if !bytes.HasPrefix(body, utf8BOM) {
		t.Fatalf("export must start with a UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimSpace(string(body[len(utf8BOM):])), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if lines[0] != "id;message_id;user_id;question;timestamp;answered;moderator_replied" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Какие документы нужны?") || !strings.Contains(lines[1], "2025-03-14 12:00:00") {
		t.Fatalf("row = %q", lines[1])
	}
	if !strings.Contains(lines[2], ";true;false") {
		t.Fatalf("answered flag missing: %q", lines[2])
	}
}

func TestExportFeedback(t *testing.T) {
	r, db := newTestRouter(t)

	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateFeedback(context.Background(), db, 100, 77, 1, "Какие документы нужны?", now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.CreateFeedback(context.Background(), db, 101, 78, -1, "Когда дедлайн?", now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := get(t, r, "/admin/export/feedback.csv")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := w.Body.Bytes()
	if !bytes.HasPrefix(body, utf8BOM) {
		t.Fatalf("export must start with a UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimSpace(string(body[len(utf8BOM):])), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if lines[0] != "id;message_id;question_text;feedback;user_id;timestamp" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "👍") || !strings.Contains(lines[1], ";77;") {
		t.Fatalf("like row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "👎") {
		t.Fatalf("dislike row = %q", lines[2])
	}
}

func TestExportQuestions_Empty(t *testing.T) {
	r, _ := newTestRouter(t)

	w := get(t, r, "/admin/export/questions.csv")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(w.Body.String(), string(utf8BOM))), "\n")
	if len(lines) != 1 {
		t.Fatalf("empty store must export only the header, got %d lines", len(lines))
	}
}
