package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
)

type fakeController struct {
	joinErr  error
	chatErr  error
	joined   joinRequest
	sent     []string
	audio    bool
	hungUp   int
	inCall   bool
	messages []domain.ChatMessage
}

func (f *fakeController) Join(_ context.Context, room, userName string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = joinRequest{Room: room, UserName: userName}
	f.inCall = true
	return nil
}

func (f *fakeController) HangUp() error { f.hungUp++; f.inCall = false; return nil }

func (f *fakeController) ToggleAudio() (bool, error) {
	if !f.inCall {
		return false, domain.ErrNotInCall
	}
	f.audio = !f.audio
	return f.audio, nil
}

func (f *fakeController) ToggleVideo() (bool, error) { return false, domain.ErrNotInCall }

func (f *fakeController) SendChat(text string) (domain.ChatMessage, error) {
	if f.chatErr != nil {
		return domain.ChatMessage{}, f.chatErr
	}
	f.sent = append(f.sent, text)
	m := domain.ChatMessage{ID: "m1", SenderName: "Alice", Text: text, IsLocal: true}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeController) CopyRoomLink() (string, error) {
	if !f.inCall {
		return "", domain.ErrNotInCall
	}
	return "http://localhost:3000/?roomId=" + f.joined.Room, nil
}

func (f *fakeController) Session() orch.SessionView {
	return orch.SessionView{RoomID: domain.RoomID(f.joined.Room), UserName: f.joined.UserName, InCall: f.inCall}
}

func (f *fakeController) Participants() []app.ParticipantView {
	return []app.ParticipantView{{Participant: domain.NewParticipant("B1", "Bob"), Phase: "connected"}}
}

func (f *fakeController) Chat() []domain.ChatMessage { return f.messages }

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJoinChatHangUp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctl := &fakeController{}
	r := SetupRouter("test", ctl)

	w := do(t, r, http.MethodPost, "/api/join", `{"room":"room-abc","userName":"Alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("join: %d %s", w.Code, w.Body)
	}
	var sess orch.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil || !sess.InCall || sess.RoomID != "room-abc" {
		t.Fatalf("join response: %s", w.Body)
	}

	w = do(t, r, http.MethodPost, "/api/chat", `{"text":"hello"}`)
	if w.Code != http.StatusOK || len(ctl.sent) != 1 {
		t.Fatalf("chat: %d %s", w.Code, w.Body)
	}
	w = do(t, r, http.MethodGet, "/api/chat", "")
	var history struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil || len(history.Messages) != 1 || !history.Messages[0].IsLocal {
		t.Fatalf("history: %s", w.Body)
	}

	w = do(t, r, http.MethodGet, "/api/room-link", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "roomId=room-abc") {
		t.Fatalf("room link: %d %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodPost, "/api/audio/toggle", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"audioEnabled":true`) {
		t.Fatalf("toggle: %d %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodPost, "/api/hangup", "")
	if w.Code != http.StatusNoContent || ctl.hungUp != 1 {
		t.Fatalf("hangup: %d", w.Code)
	}
}

func TestParticipants(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := do(t, SetupRouter("test", &fakeController{}), http.MethodGet, "/api/participants", "")
	var body struct {
		Participants []app.ParticipantView `json:"participants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Participants) != 1 || body.Participants[0].ID != "B1" || body.Participants[0].DisplayName != "Bob" {
		t.Fatalf("participants: %s", w.Body)
	}
}

func TestErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		ctl    *fakeController
		method string
		path   string
		body   string
		want   int
	}{
		{"bad body", &fakeController{}, http.MethodPost, "/api/join", `{`, http.StatusBadRequest},
		{"invalid name", &fakeController{joinErr: domain.ErrUsernameEmpty}, http.MethodPost, "/api/join", `{}`, http.StatusBadRequest},
		{"media denied", &fakeController{joinErr: &domain.MediaAcquisitionError{Err: errors.New("denied")}}, http.MethodPost, "/api/join", `{}`, http.StatusServiceUnavailable},
		{"server down", &fakeController{joinErr: &domain.SignalingChannelError{Op: "dial", Err: errors.New("refused")}}, http.MethodPost, "/api/join", `{}`, http.StatusBadGateway},
		{"already in call", &fakeController{joinErr: domain.ErrAlreadyInCall}, http.MethodPost, "/api/join", `{}`, http.StatusConflict},
		{"rate limited", &fakeController{chatErr: domain.ErrChatRateLimited}, http.MethodPost, "/api/chat", `{"text":"x"}`, http.StatusTooManyRequests},
		{"toggle idle", &fakeController{}, http.MethodPost, "/api/video/toggle", "", http.StatusConflict},
		{"link idle", &fakeController{}, http.MethodGet, "/api/room-link", "", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, SetupRouter("test", tt.ctl), tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}
