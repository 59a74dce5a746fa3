package main

import (
	"context"
	"strings"
	"testing"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core/coretest"
	"github.com/dkeye/Meet/internal/protocol"
)

func TestCommands(t *testing.T) {
	dialer := &coretest.Dialer{}
	o := orch.New(orch.Deps{Dialer: dialer, Media: &coretest.Provider{}, Transports: coretest.NewFactory()}, orch.Options{RoomLinkBase: "http://localhost:3000/"})
	defer o.Close()
	if err := o.Join(context.Background(), "room-abc", "Alice"); err != nil {
		t.Fatal(err)
	}

	if command(o, "/mute") || command(o, "/video") || command(o, "/who") || command(o, "/link") || command(o, "/nope") {
		t.Fatal("non-quit command quit")
	}
	if command(o, "hello there") {
		t.Fatal("chat line quit")
	}
	if s := o.Session(); s.AudioEnabled || s.VideoEnabled {
		t.Fatalf("toggles not applied: %+v", s)
	}
	msgs := o.Chat()
	if len(msgs) != 1 || msgs[0].Text != "hello there" {
		t.Fatalf("chat: %+v", msgs)
	}
	if sent := dialer.Last().SentOfType(protocol.TypeChatMessage); len(sent) != 1 {
		t.Fatalf("%d chat envelopes", len(sent))
	}

	if !command(o, "/quit") {
		t.Fatal("/quit did not quit")
	}
	if o.Session().InCall {
		t.Fatal("still in call after /quit")
	}
}

func TestReadLines(t *testing.T) {
	out := make(chan string)
	go readLines(strings.NewReader("a\nb\n"), out)
	var got []string
	for l := range out {
		got = append(got, l)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("lines: %v", got)
	}
}
