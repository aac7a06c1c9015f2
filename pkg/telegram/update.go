// Package telegram handles Telegram Bot API updates and webhook
// registration.
package telegram

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidUpdate is returned for payloads that carry no usable message.
var ErrInvalidUpdate = eris.New("telegram: invalid update")

// Update is an incoming webhook update. Only message updates are used.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message is a Telegram chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User is a message sender.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// ParseUpdate decodes raw and returns the update with its effective
// message: message, or edited_message when message is absent.
func ParseUpdate(raw []byte) (*Update, *Message, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, eris.Wrap(ErrInvalidUpdate, err.Error())
	}
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.MessageID == 0 {
		return nil, nil, ErrInvalidUpdate
	}
	return &u, msg, nil
}

// ExternalID is the message id as stored.
func (m *Message) ExternalID() string {
	return strconv.FormatInt(m.MessageID, 10)
}

// SenderID is the sender's user id, or "unknown" for anonymous posts.
func (m *Message) SenderID() string {
	if m.From == nil || m.From.ID == 0 {
		return "unknown"
	}
	return strconv.FormatInt(m.From.ID, 10)
}

// SenderName is the sender's username, falling back to their first and last
// name.
func (m *Message) SenderName() string {
	if m.From == nil {
		return ""
	}
	if m.From.Username != "" {
		return "@" + m.From.Username
	}
	name := m.From.FirstName
	if m.From.LastName != "" {
		name += " " + m.From.LastName
	}
	return name
}

// ChatID is the chat id, or "" when absent.
func (m *Message) ChatID() string {
	if m.Chat == nil {
		return ""
	}
	return strconv.FormatInt(m.Chat.ID, 10)
}

// Time converts the unix date. A zero date yields now.
func (m *Message) Time(now time.Time) time.Time {
	if m.Date <= 0 {
		return now
	}
	return time.Unix(m.Date, 0).UTC()
}
