package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIBase is the Bot API host used unless overridden (tests point
// this at an httptest server).
const DefaultAPIBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API. All outgoing calls are paced by a
// token bucket so a burst of answers cannot trip the platform's flood
// limits. Safe for concurrent use.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config carries Bot API client settings.
type Config struct {
	Token     string
	APIBase   string
	Timeout   time.Duration
	SendRPS   float64
	SendBurst int
}

// NewClient returns a Client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout == 0 {
		// Long polls hold the connection for up to the poll timeout; leave headroom.
		cfg.Timeout = 90 * time.Second
	}
	if cfg.SendRPS == 0 {
		cfg.SendRPS = 20
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 5
	}
	return &Client{
		apiBase:    cfg.APIBase,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// call POSTs a JSON payload to one Bot API method and decodes the result.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("%s: api error %d: %s", method, api.ErrorCode, api.Description)
	}
	if out != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// SendReply posts text as a reply to messageID in the given chat/topic.
// parseMode may be empty for plain text or "HTML" for rich text. A non-nil
// markup attaches an inline keyboard.
func (c *Client) SendReply(ctx context.Context, chatID, topicID, messageID int64, text, parseMode string, markup *InlineKeyboardMarkup) (*Message, error) {
	payload := map[string]any{
		"chat_id":             chatID,
		"text":                text,
		"reply_to_message_id": messageID,
	}
	if topicID != 0 {
		payload["message_thread_id"] = topicID
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// IsChatAdmin reports whether userID currently holds administrator (or
// creator) rights in chatID.
func (c *Client) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	var members []ChatMember
	payload := map[string]any{"chat_id": chatID}
	if err := c.call(ctx, "getChatAdministrators", payload, &members); err != nil {
		return false, err
	}
	for _, m := range members {
		if m.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

// AnswerCallback acknowledges a button press with a short notice.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// RemoveReplyMarkup strips the inline keyboard from a sent message, making
// the rating buttons one-shot.
func (c *Client) RemoveReplyMarkup(ctx context.Context, chatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}},
	}
	return c.call(ctx, "editMessageReplyMarkup", payload, nil)
}

// GetChat fetches chat metadata; used at startup to verify the allowed chat.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": chatID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetUpdates long-polls for updates after offset, waiting up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
