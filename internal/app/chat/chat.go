// Package chat shapes outgoing and incoming chat messages.
package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/google/uuid"
)

const DefaultMaxLen = 2000

type Config struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	MaxLen       int           `mapstructure:"max_len"`
}

// Normalize trims text and enforces maxLen in runes. maxLen <= 0 means DefaultMaxLen.
func Normalize(text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrChatEmpty
	}
	if utf8.RuneCountInString(text) > maxLen {
		return "", domain.ErrChatTooLong
	}
	return text, nil
}

// NewLocal builds the history entry for a message this session sends.
func NewLocal(sender, text string, at time.Time) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         uuid.NewString(),
		SenderName: sender,
		Text:       text,
		Timestamp:  at,
		IsLocal:    true,
	}
}

// Outbound encodes msg as a chatMessage envelope for room.
func Outbound(room domain.RoomID, msg domain.ChatMessage) (protocol.Envelope, error) {
	return protocol.Chat(room, msg.SenderName, protocol.ChatPayload{Text: msg.Text, Timestamp: msg.Timestamp})
}

// FromEnvelope builds a remote history entry. The timestamp is the sender's;
// a missing one is replaced by receipt time.
func FromEnvelope(env protocol.Envelope, received time.Time) (domain.ChatMessage, error) {
	p, err := env.Chat()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	sender := env.SenderName
	if sender == "" {
		sender = env.UserName
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = received
	}
	return domain.ChatMessage{
		ID:         uuid.NewString(),
		SenderName: sender,
		Text:       p.Text,
		Timestamp:  ts,
	}, nil
}

// History keeps messages in receipt order. Not synchronized.
type History struct {
	msgs []domain.ChatMessage
}

func (h *History) Append(m domain.ChatMessage) { h.msgs = append(h.msgs, m) }

func (h *History) Len() int { return len(h.msgs) }

// Messages returns a copy.
func (h *History) Messages() []domain.ChatMessage {
	return append([]domain.ChatMessage(nil), h.msgs...)
}

func (h *History) Reset() { h.msgs = nil }
