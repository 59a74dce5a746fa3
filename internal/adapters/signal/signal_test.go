package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer echoes text frames until the client goes away. When hangUp is
// set it closes the connection after the first frame instead.
func echoServer(t *testing.T, hangUp bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if hangUp {
				return
			}
			if err := ws.WriteMessage(kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) core.SignalChannel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, err := NewDialer(Config{URL: url, PingPeriod: 50 * time.Millisecond, PongWait: time.Second}).Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(ch.Close)
	return ch
}

func recv(t *testing.T, ch core.SignalChannel) (core.Frame, bool) {
	t.Helper()
	select {
	case f, ok := <-ch.Incoming():
		return f, ok
	case <-time.After(2 * time.Second):
		t.Fatal("nothing received")
	}
	return nil, false
}

func TestRoundTrip(t *testing.T) {
	ch := dial(t, wsURL(echoServer(t, false)))
	for _, msg := range []string{`{"type":"join"}`, `{"type":"chatMessage"}`} {
		if err := ch.TrySend(core.Frame(msg)); err != nil {
			t.Fatalf("send: %v", err)
		}
		f, ok := recv(t, ch)
		if !ok || string(f) != msg {
			t.Fatalf("got %q, %v", f, ok)
		}
	}
	// Outlive a few ping periods.
	time.Sleep(200 * time.Millisecond)
	if err := ch.TrySend(core.Frame(`{"type":"ping"}`)); err != nil {
		t.Fatalf("send after pings: %v", err)
	}
	if f, ok := recv(t, ch); !ok || string(f) != `{"type":"ping"}` {
		t.Fatalf("got %q, %v", f, ok)
	}
}

func TestRemoteCloseReportsError(t *testing.T) {
	ch := dial(t, wsURL(echoServer(t, true)))
	if err := ch.TrySend(core.Frame(`{"type":"join"}`)); err != nil {
		t.Fatal(err)
	}
	if _, ok := recv(t, ch); ok {
		t.Fatal("frame received from a server that hung up")
	}
	if ch.Err() == nil {
		t.Fatal("remote close without error")
	}
	if err := ch.TrySend(core.Frame(`{}`)); !errors.Is(err, domain.ErrSignalingClosed) {
		t.Fatalf("send after loss: %v", err)
	}
}

func TestLocalCloseIsClean(t *testing.T) {
	ch := dial(t, wsURL(echoServer(t, false)))
	ch.Close()
	ch.Close()
	if _, ok := recv(t, ch); ok {
		t.Fatal("incoming still open")
	}
	if err := ch.Err(); err != nil {
		t.Fatalf("local close recorded %v", err)
	}
	if err := ch.TrySend(core.Frame(`{}`)); !errors.Is(err, domain.ErrSignalingClosed) {
		t.Fatalf("send after close: %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewDialer(Config{URL: wsURL(srv)}).Dial(context.Background())
	var serr *domain.SignalingChannelError
	if !errors.As(err, &serr) || serr.Op != "dial" {
		t.Fatalf("want dial SignalingChannelError, got %v", err)
	}
}

func TestBackpressure(t *testing.T) {
	c := newWSChannel(nil, Config{SendBuffer: 1}.withDefaults())
	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.TrySend(core.Frame("b")); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("want ErrBackpressure, got %v", err)
	}
}
