// Package telegram implements the chat-transport collaborator: a minimal
// Telegram Bot API client covering exactly the surface the relay needs —
// long-polled updates, replies with inline keyboards, administrator lookups,
// and callback acknowledgements.
package telegram

// Update is one long-poll result from getUpdates.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an incoming or sent chat message.
type Message struct {
	MessageID       int64    `json:"message_id"`
	From            *User    `json:"from,omitempty"`
	Chat            Chat     `json:"chat"`
	Text            string   `json:"text,omitempty"`
	MessageThreadID int64    `json:"message_thread_id,omitempty"`
	ReplyToMessage  *Message `json:"reply_to_message,omitempty"`
}

// User is a Telegram account, human or bot.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

// Chat is a conversation the bot participates in.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// CallbackQuery is a press of an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// ChatMember describes a member's standing in a chat.
type ChatMember struct {
	User   User   `json:"user"`
	Status string `json:"status"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}
