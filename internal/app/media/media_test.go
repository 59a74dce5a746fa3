package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dkeye/Meet/internal/core/coretest"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

func TestTrackEnableToggle(t *testing.T) {
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "s")
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTrack(local)
	if !tr.Enabled() {
		t.Fatal("new track should be enabled")
	}
	tr.SetEnabled(!tr.Enabled())
	if tr.Enabled() || tr.GetState() != TrackStateMuted {
		t.Fatalf("state = %s, want muted", tr.GetState())
	}
	tr.SetEnabled(!tr.Enabled())
	if !tr.Enabled() {
		t.Fatal("second toggle should restore the track")
	}
	tr.Stop()
	tr.SetEnabled(true)
	if tr.GetState() != TrackStateStopped {
		t.Fatalf("stopped track revived: %s", tr.GetState())
	}
}

func TestSilenceProvider(t *testing.T) {
	src, err := NewFileProvider(Config{Silence: true}).Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer src.Stop()
	tracks := src.Tracks()
	if len(tracks) != 1 || tracks[0].Kind() != webrtc.RTPCodecTypeAudio {
		t.Fatalf("unexpected tracks: %v", tracks)
	}
	src.Stop()
	if tracks[0].Enabled() {
		t.Fatal("track enabled after stop")
	}
}

func TestAcquireFailures(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.ivf")
	if err := os.WriteFile(junk, []byte("definitely not ivf"), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"nothing configured", Config{}},
		{"missing audio file", Config{AudioFile: filepath.Join(dir, "nope.ogg")}},
		{"bad video file", Config{Silence: true, VideoFile: junk}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileProvider(tt.cfg).Acquire(context.Background())
			var merr *domain.MediaAcquisitionError
			if !errors.As(err, &merr) {
				t.Fatalf("want MediaAcquisitionError, got %v", err)
			}
		})
	}
	_, err := NewFileProvider(Config{}).Acquire(context.Background())
	if !errors.Is(err, domain.ErrNoCaptureSource) {
		t.Fatalf("want ErrNoCaptureSource, got %v", err)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	seqs []uint16
}

func (s *recordingSink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, p.SequenceNumber)
	return nil
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seqs)
}

func TestRemoteStreamDrainsIntoSink(t *testing.T) {
	sink := &recordingSink{}
	rs := NewRemoteStream("B1", sink)
	defer rs.Close()

	track := coretest.NewRemoteTrack("b-audio", webrtc.RTPCodecTypeAudio)
	if !rs.Attach(track) {
		t.Fatal("attach refused")
	}
	if rs.Attach(track) {
		t.Fatal("same track attached twice")
	}
	for i := 0; i < 3; i++ {
		track.Push(&rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}, Payload: []byte{1, 2}})
	}
	coretest.Eventually(t, func() bool { return sink.len() == 3 }, "sink received packets")
	track.Close()
	coretest.Eventually(t, func() bool {
		st := rs.Stats()
		return len(st.Tracks) == 1 && st.Tracks[0].Ended
	}, "track ended")

	st := rs.Stats()
	if st.StreamID != "stream-b-audio" || st.Tracks[0].Packets != 3 || st.Tracks[0].Bytes != 6 || st.Tracks[0].Kind != "audio" {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
