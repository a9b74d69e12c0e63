// Package handlers – CSV export endpoints.
//
// Exports use a semicolon delimiter and a UTF-8 BOM so the files open
// correctly in spreadsheet tools with Cyrillic content.
package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/question-relay/go-question-relay/internal/repo"
)

// utf8BOM makes Excel detect UTF-8 instead of the local ANSI code page.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const exportTimeLayout = "2006-01-02 15:04:05"

// Handler bundles dependencies for the admin endpoints.
type Handler struct {
	DB *gorm.DB
}

// New constructs a Handler.
func New(db *gorm.DB) *Handler {
	return &Handler{DB: db}
}

// ExportQuestions streams all recorded questions as CSV.
//
// GET /admin/export/questions.csv
func (h *Handler) ExportQuestions(c *gin.Context) {
	questions, err := repo.ListQuestions(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, "questions export failed")
		return
	}

	writeCSVHeader(c, "questions_export.csv")
	w := csv.NewWriter(c.Writer)
	w.Comma = ';'

	_ = w.Write([]string{"id", "message_id", "user_id", "question", "timestamp", "answered", "moderator_replied"})
	for _, q := range questions {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(q.ID), 10),
			strconv.FormatInt(q.MessageID, 10),
			strconv.FormatInt(q.UserID, 10),
			q.Text,
			q.CreatedAt.Format(exportTimeLayout),
			strconv.FormatBool(q.Answered),
			strconv.FormatBool(q.ModeratorPreempted),
		})
	}
	w.Flush()
}

// ExportFeedback streams all recorded ratings as CSV.
//
// GET /admin/export/feedback.csv
func (h *Handler) ExportFeedback(c *gin.Context) {
	rows, err := repo.ListFeedback(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, "feedback export failed")
		return
	}

	writeCSVHeader(c, "feedback_export.csv")
	w := csv.NewWriter(c.Writer)
	w.Comma = ';'

	_ = w.Write([]string{"id", "message_id", "question_text", "feedback", "user_id", "timestamp"})
	for _, f := range rows {
		rating := "👍"
		if f.Value < 0 {
			rating = "👎"
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(f.ID), 10),
			strconv.FormatInt(f.MessageID, 10),
			f.QuestionText,
			rating,
			strconv.FormatInt(f.UserID, 10),
			f.CreatedAt.Format(exportTimeLayout),
		})
	}
	w.Flush()
}

// Health reports process liveness.
//
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// writeCSVHeader sets download headers and emits the UTF-8 BOM.
func writeCSVHeader(c *gin.Context, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(utf8BOM)
}
