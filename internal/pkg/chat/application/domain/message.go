package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength caps the text of a single message, in runes.
const MaxMessageLength = 1000

// Message is an immutable log entry in a room
type Message struct {
	ID        int64     `db:"id"`
	RoomID    int64     `db:"room_id"`
	SenderID  int64     `db:"sender_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

func NewMessage(m Message) (*Message, error) {
	if m.RoomID == 0 || m.SenderID == 0 {
		return nil, ErrInvalidMessage
	}

	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(m.Text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}
