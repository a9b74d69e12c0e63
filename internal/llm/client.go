// Package llm wraps the external text-completion service behind a small
// synchronous client. The service is a black box to the state machine: one
// request carrying a system prompt and the user's question, one generated
// text (or an error) back.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultEndpoint is the completion endpoint used unless overridden.
const DefaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// DefaultSystemPrompt is used when the configured prompt file is unreadable.
const DefaultSystemPrompt = "Ты — представитель приёмной комиссии УрФУ."

// Config carries the completion-service settings.
type Config struct {
	Endpoint    string
	IAMToken    string
	FolderID    string
	Model       string // model name within the folder, e.g. "yandexgpt"
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client is a synchronous completion client. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New returns a Client with defaults applied.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "yandexgpt"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Complete sends the system prompt and question to the completion service and
// returns the generated answer text.
func (c *Client) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	reqBody := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", c.cfg.FolderID, c.cfg.Model),
		CompletionOptions: completionOptions{
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		},
		Messages: []message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: question},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.IAMToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion service: status %d: %s", resp.StatusCode, body)
	}

	var result completionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("completion response: %w", err)
	}
	if len(result.Result.Alternatives) == 0 {
		return "", fmt.Errorf("completion service: empty response")
	}
	return result.Result.Alternatives[0].Message.Text, nil
}

// LoadSystemPrompt reads the prompt file, falling back to
// DefaultSystemPrompt when the file is missing or unreadable.
func LoadSystemPrompt(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return DefaultSystemPrompt
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return DefaultSystemPrompt
	}
	return s
}
