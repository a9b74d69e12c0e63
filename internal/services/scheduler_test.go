package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/question-relay/go-question-relay/internal/repo"
)

func seedQuestion(t *testing.T, svc *ResponseScheduler, messageID int64, text string) {
	t.Helper()
	if _, err := repo.InsertQuestion(context.Background(), svc.DB, messageID, -100123, 42, text, 2, time.Now()); err != nil {
		t.Fatalf("seed question: %v", err)
	}
}

func newScheduler(t *testing.T, delay time.Duration) (*ResponseScheduler, *fakeCompleter, *fakeSender) {
	t.Helper()
	comp := &fakeCompleter{answer: "Нужен паспорт и **аттестат**."}
	send := &fakeSender{}
	svc := &ResponseScheduler{
		DB:           newTestDB(t),
		Completer:    comp,
		Sender:       send,
		SystemPrompt: "Ты — представитель приёмной комиссии.",
		Delay:        delay,
	}
	return svc, comp, send
}

func TestScheduler_AnswersAfterDelay(t *testing.T) {
	svc, comp, send := newScheduler(t, 20*time.Millisecond)
	seedQuestion(t, svc, 100, "Какие документы нужны?")

	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()

	if comp.callCount() != 1 {
		t.Fatalf("completer calls = %d, want 1", comp.callCount())
	}
	if comp.lastQ != "Какие документы нужны?" {
		t.Fatalf("completer question = %q", comp.lastQ)
	}
	if comp.lastSys != svc.SystemPrompt {
		t.Fatalf("completer system prompt = %q", comp.lastSys)
	}

	sent := send.replies()
	if len(sent) != 1 {
		t.Fatalf("sent = %d replies, want 1", len(sent))
	}
	r := sent[0]
	if r.chatID != -100123 || r.messageID != 100 || r.topicID != 2 {
		t.Fatalf("reply addressed to %+v", r)
	}
	if r.parseMode != "HTML" {
		t.Fatalf("parse mode = %q, want HTML", r.parseMode)
	}
	if !strings.Contains(r.text, "<b>аттестат</b>") {
		t.Fatalf("bold markup not converted: %q", r.text)
	}
	if r.markup == nil || len(r.markup.InlineKeyboard) != 1 || len(r.markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("feedback keyboard missing: %+v", r.markup)
	}

	st, err := repo.GetQuestionState(context.Background(), svc.DB, 100)
	if err != nil {
		t.Fatalf("GetQuestionState: %v", err)
	}
	if !st.Answered || st.ModeratorPreempted {
		t.Fatalf("state = %+v, want answered", st)
	}
}

func TestScheduler_ModeratorPreemptsDuringDelay(t *testing.T) {
	svc, comp, send := newScheduler(t, 150*time.Millisecond)
	seedQuestion(t, svc, 100, "Когда дедлайн подачи?")

	svc.Schedule(context.Background(), -100123, 100, 2)
	// Moderator reply lands well inside the grace period.
	if err := repo.MarkPreempted(context.Background(), svc.DB, 100); err != nil {
		t.Fatalf("MarkPreempted: %v", err)
	}
	svc.Wait()

	if comp.callCount() != 0 {
		t.Fatalf("completer must not run for preempted question")
	}
	if len(send.replies()) != 0 {
		t.Fatalf("no reply expected, got %v", send.replies())
	}
	st, err := repo.GetQuestionState(context.Background(), svc.DB, 100)
	if err != nil {
		t.Fatalf("GetQuestionState: %v", err)
	}
	if st.Answered {
		t.Fatalf("preempted question must stay unanswered")
	}
}

func TestScheduler_SuppressesWhenAlreadyResolved(t *testing.T) {
	svc, comp, send := newScheduler(t, time.Millisecond)
	seedQuestion(t, svc, 100, "Есть ли общежитие?")
	if err := repo.MarkAnswered(context.Background(), svc.DB, 100); err != nil {
		t.Fatalf("MarkAnswered: %v", err)
	}

	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()

	if comp.callCount() != 0 || len(send.replies()) != 0 {
		t.Fatalf("resolved question must be suppressed before the delay")
	}
}

func TestScheduler_SuppressesWhenQuestionGone(t *testing.T) {
	svc, comp, send := newScheduler(t, time.Millisecond)

	svc.Schedule(context.Background(), -100123, 999, 2)
	svc.Wait()

	if comp.callCount() != 0 || len(send.replies()) != 0 {
		t.Fatalf("missing question must be suppressed")
	}
}

func TestScheduler_CompletionErrorSendsFallback(t *testing.T) {
	svc, comp, send := newScheduler(t, time.Millisecond)
	comp.err = errBackend
	seedQuestion(t, svc, 100, "Сколько бюджетных мест?")

	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()

	sent := send.replies()
	if len(sent) != 1 {
		t.Fatalf("sent = %d replies, want 1 fallback", len(sent))
	}
	if sent[0].text != FallbackAnswer {
		t.Fatalf("text = %q, want fallback apology", sent[0].text)
	}
	if sent[0].parseMode != "" || sent[0].markup != nil {
		t.Fatalf("fallback must be plain text without keyboard: %+v", sent[0])
	}

	st, err := repo.GetQuestionState(context.Background(), svc.DB, 100)
	if err != nil {
		t.Fatalf("GetQuestionState: %v", err)
	}
	if st.Answered {
		t.Fatalf("failed completion must not mark the question answered")
	}
}

func TestScheduler_SendErrorLeavesUnanswered(t *testing.T) {
	svc, _, send := newScheduler(t, time.Millisecond)
	send.err = errBackend
	seedQuestion(t, svc, 100, "Какой проходной балл?")

	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()

	st, err := repo.GetQuestionState(context.Background(), svc.DB, 100)
	if err != nil {
		t.Fatalf("GetQuestionState: %v", err)
	}
	if st.Answered {
		t.Fatalf("undelivered answer must not mark the question answered")
	}
}

func TestScheduler_AnswerFiresAtMostOnce(t *testing.T) {
	svc, comp, send := newScheduler(t, time.Millisecond)
	seedQuestion(t, svc, 100, "Где посмотреть расписание?")

	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()
	// A second task for the same question must find it answered.
	svc.Schedule(context.Background(), -100123, 100, 2)
	svc.Wait()

	if comp.callCount() != 1 {
		t.Fatalf("completer calls = %d, want 1", comp.callCount())
	}
	if len(send.replies()) != 1 {
		t.Fatalf("sent = %d replies, want exactly 1", len(send.replies()))
	}
}

func TestScheduler_ShutdownCancelsPendingTask(t *testing.T) {
	svc, comp, send := newScheduler(t, time.Hour)
	seedQuestion(t, svc, 100, "Можно ли перевестись?")

	ctx, cancel := context.WithCancel(context.Background())
	svc.Schedule(ctx, -100123, 100, 2)
	cancel()
	svc.Wait()

	if comp.callCount() != 0 || len(send.replies()) != 0 {
		t.Fatalf("cancelled task must not answer")
	}
}

func TestFormatAnswer(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"**вся жирная**", "<b>вся жирная</b>"},
		{"a **b** c **d**", "a <b>b</b> c <b>d</b>"},
		{"unmatched ** stays", "unmatched ** stays"},
	}
	for _, tc := range cases {
		if got := FormatAnswer(tc.in); got != tc.want {
			t.Errorf("FormatAnswer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFeedbackKeyboard(t *testing.T) {
	kb := FeedbackKeyboard(12345)
	row := kb.InlineKeyboard[0]
	if row[0].CallbackData != "like:12345" {
		t.Errorf("like payload = %q", row[0].CallbackData)
	}
	if row[1].CallbackData != "dislike:12345" {
		t.Errorf("dislike payload = %q", row[1].CallbackData)
	}
}
