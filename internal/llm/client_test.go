package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ModelURI != "gpt://folder1/yandexgpt" {
			t.Errorf("modelUri = %q", req.ModelURI)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		resp := map[string]any{
			"result": map[string]any{
				"alternatives": []any{
					map[string]any{"message": map[string]any{"role": "assistant", "text": "Экзамены начинаются в июне."}},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, IAMToken: "tok", FolderID: "folder1"})
	got, err := c.Complete(context.Background(), "ты бот", "Когда начинаются экзамены?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Экзамены начинаются в июне." {
		t.Fatalf("answer = %q", got)
	}
}

func TestComplete_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	if _, err := c.Complete(context.Background(), "s", "q?"); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}

func TestComplete_EmptyAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"alternatives":[]}}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	if _, err := c.Complete(context.Background(), "s", "q?"); err == nil {
		t.Fatalf("expected error on empty alternatives")
	}
}

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "system_prompt.txt")
	if err := os.WriteFile(path, []byte("Отвечай кратко.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := LoadSystemPrompt(path); got != "Отвечай кратко." {
		t.Fatalf("prompt = %q", got)
	}

	if got := LoadSystemPrompt(filepath.Join(dir, "missing.txt")); got != DefaultSystemPrompt {
		t.Fatalf("fallback = %q", got)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := LoadSystemPrompt(empty); got != DefaultSystemPrompt {
		t.Fatalf("fallback for empty file = %q", got)
	}
}
