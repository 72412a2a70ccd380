package telegram

import "strings"

// ParseMode selects how Telegram interprets message text.
type ParseMode string

const (
	ParsePlain ParseMode = ""
	ParseHTML  ParseMode = "HTML"
)

// Update is the subset of the Bot API update object the bot reacts to.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Command returns the command name without the leading slash or @botname suffix,
// or "" when the message is not a command.
func (m *Message) Command() string {
	if m == nil || !strings.HasPrefix(m.Text, "/") {
		return ""
	}
	cmd := strings.Fields(m.Text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// SenderID returns the id of the user who sent the message, or 0 when unknown.
func (m *Message) SenderID() int64 {
	if m == nil || m.From == nil {
		return 0
	}
	return m.From.ID
}
