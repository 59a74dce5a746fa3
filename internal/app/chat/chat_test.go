package chat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		max     int
		want    string
		wantErr error
	}{
		{"trims", "  hello \n", 0, "hello", nil},
		{"empty", " \t ", 0, "", domain.ErrChatEmpty},
		{"at limit in runes", "héllo", 5, "héllo", nil},
		{"over limit", "hello!", 5, "", domain.ErrChatTooLong},
		{"default limit", strings.Repeat("a", DefaultMaxLen+1), 0, "", domain.ErrChatTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, tt.max)
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Fatalf("Normalize = %q, %v", got, err)
			}
		})
	}
}

func TestOutboundAndBack(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	local := NewLocal("Alice", "hello", at)
	if !local.IsLocal || local.ID == "" {
		t.Fatalf("local message: %+v", local)
	}
	env, err := Outbound("room-abc", local)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != protocol.TypeChatMessage || env.Room != "room-abc" || env.UserName != "Alice" {
		t.Fatalf("envelope: %+v", env)
	}

	got, err := FromEnvelope(env, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got.IsLocal || got.SenderName != "Alice" || got.Text != "hello" || !got.Timestamp.Equal(at) {
		t.Fatalf("received: %+v", got)
	}
}

func TestFromEnvelopePrefersSenderName(t *testing.T) {
	env := protocol.Envelope{
		Type:       protocol.TypeChatMessage,
		SenderName: "Bob",
		UserName:   "bob-login",
		Payload:    []byte(`{"text":"hi"}`),
	}
	received := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := FromEnvelope(env, received)
	if err != nil {
		t.Fatal(err)
	}
	if got.SenderName != "Bob" || !got.Timestamp.Equal(received) {
		t.Fatalf("got %+v", got)
	}
	if _, err := FromEnvelope(protocol.Envelope{Type: protocol.TypeChatMessage}, received); err == nil {
		t.Fatal("missing payload accepted")
	}
}

func TestHistoryKeepsReceiptOrder(t *testing.T) {
	var h History
	late := time.Unix(200, 0)
	early := time.Unix(100, 0)
	h.Append(domain.ChatMessage{Text: "first", Timestamp: late})
	h.Append(domain.ChatMessage{Text: "second", Timestamp: early})
	msgs := h.Messages()
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("order: %+v", msgs)
	}
	msgs[0].Text = "mutated"
	if h.Messages()[0].Text != "first" {
		t.Fatal("Messages leaked internal slice")
	}
	h.Reset()
	if h.Len() != 0 {
		t.Fatal("Reset left messages")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two sends refused")
	}
	if rl.Allow() {
		t.Fatal("third send inside the window allowed")
	}
	now = now.Add(1100 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("send after the window refused")
	}

	off := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !off.Allow() {
			t.Fatal("disabled limiter refused")
		}
	}
}
