package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/peer"
	"github.com/dkeye/Meet/internal/core/coretest"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

func TestRosterUpsertAndRemove(t *testing.T) {
	r := NewRoster()
	if !r.Upsert(domain.NewParticipant("B1", "Bob")) {
		t.Fatal("first upsert should report new")
	}
	if r.Upsert(domain.NewParticipant("B1", "Robert")) {
		t.Fatal("second upsert should not report new")
	}
	if p, _ := r.Get("B1"); p.DisplayName != "Robert" {
		t.Fatalf("rename lost: %q", p.DisplayName)
	}
	r.Upsert(domain.NewParticipant("B1", ""))
	if p, _ := r.Get("B1"); p.DisplayName != "Robert" {
		t.Fatalf("empty name overwrote: %q", p.DisplayName)
	}

	tr := &coretest.Transport{ID: "B1"}
	c, err := peer.New("B1", tr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !r.SetConn("B1", c) {
		t.Fatal("SetConn on known id failed")
	}
	if r.SetConn("nobody", c) {
		t.Fatal("SetConn on unknown id succeeded")
	}
	r.BufferEarly("B1", webrtc.ICECandidateInit{Candidate: "c1"})

	conn, _, ok := r.Remove("B1")
	if !ok || conn != c {
		t.Fatal("Remove did not return the connection")
	}
	if r.Has("B1") || len(r.TakeEarly("B1")) != 0 {
		t.Fatal("Remove left state behind")
	}
	if _, _, ok := r.Remove("B1"); ok {
		t.Fatal("second Remove reported ok")
	}
}

func TestRosterEarlyCandidatesBounded(t *testing.T) {
	r := NewRoster()
	for i := 0; i < MaxEarlyCandidates; i++ {
		if !r.BufferEarly("X", webrtc.ICECandidateInit{Candidate: fmt.Sprint(i)}) {
			t.Fatalf("candidate %d rejected", i)
		}
	}
	if r.BufferEarly("X", webrtc.ICECandidateInit{Candidate: "overflow"}) {
		t.Fatal("buffer not bounded")
	}
	got := r.TakeEarly("X")
	if len(got) != MaxEarlyCandidates || got[0].Candidate != "0" || got[len(got)-1].Candidate != fmt.Sprint(MaxEarlyCandidates-1) {
		t.Fatalf("order not preserved: %d candidates", len(got))
	}
	if r.TakeEarly("X") != nil {
		t.Fatal("TakeEarly did not forget")
	}
}

func TestRosterSnapshotAndReset(t *testing.T) {
	r := NewRoster()
	r.Upsert(domain.NewParticipant("C3", "Carol"))
	r.Upsert(domain.NewParticipant("B1", "Bob"))
	r.SetMediaState("B1", true, false)
	c, _ := peer.New("B1", &coretest.Transport{ID: "B1"}, nil)
	r.SetConn("B1", c)
	r.SetStream("B1", media.NewRemoteStream("B1", nil))

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "B1" || snap[1].ID != "C3" {
		t.Fatalf("snapshot order: %+v", snap)
	}
	if !snap[0].AudioMuted || snap[0].Phase != "negotiating" || snap[0].Stream == nil || snap[0].HasStream {
		t.Fatalf("B1 view: %+v", snap[0])
	}
	if snap[1].Phase != "" || snap[1].Stream != nil {
		t.Fatalf("C3 view: %+v", snap[1])
	}

	conns, streams := r.Reset()
	if len(conns) != 1 || len(streams) != 1 || r.Len() != 0 {
		t.Fatalf("reset: %d conns, %d streams, %d left", len(conns), len(streams), r.Len())
	}
}

func TestGlarePolicies(t *testing.T) {
	tests := []struct {
		name         string
		policy       string
		self, remote domain.ParticipantID
		want         GlareAction
	}{
		{"accept keeps original behaviour", "accept", "A1", "B1", AcceptOnExisting},
		{"lower id is polite", "polite", "A1", "B1", YieldToRemote},
		{"higher id keeps its offer", "polite", "B1", "A1", KeepLocal},
		{"default is polite", "", "A1", "B1", YieldToRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyByName(tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			if got := p.OnGlare(tt.self, tt.remote); got != tt.want {
				t.Fatalf("OnGlare = %s, want %s", got, tt.want)
			}
		})
	}
	if _, err := PolicyByName("rude"); !errors.Is(err, domain.ErrUnknownGlareMode) {
		t.Fatalf("want ErrUnknownGlareMode, got %v", err)
	}
}
