package coretest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/webrtc/v4"
)

// Track is a LocalTrack without a pion track behind it.
type Track struct {
	TrackID string
	Type    webrtc.RTPCodecType

	enabled atomic.Bool
	stopped atomic.Bool
}

func NewTrack(id string, kind webrtc.RTPCodecType) *Track {
	t := &Track{TrackID: id, Type: kind}
	t.enabled.Store(true)
	return t
}

func (t *Track) ID() string                { return t.TrackID }
func (t *Track) Kind() webrtc.RTPCodecType { return t.Type }
func (t *Track) Enabled() bool             { return t.enabled.Load() }
func (t *Track) SetEnabled(v bool)         { t.enabled.Store(v) }
func (t *Track) Stop()                     { t.stopped.Store(true) }
func (t *Track) Stopped() bool             { return t.stopped.Load() }
func (t *Track) Local() webrtc.TrackLocal  { return nil }

// Source is a MediaSource over fixed tracks.
type Source struct {
	tracks  []core.LocalTrack
	stopped atomic.Bool
}

func (s *Source) Tracks() []core.LocalTrack { return append([]core.LocalTrack(nil), s.tracks...) }
func (s *Source) Stop() {
	s.stopped.Store(true)
	for _, t := range s.tracks {
		t.Stop()
	}
}
func (s *Source) Stopped() bool { return s.stopped.Load() }

// Provider returns a fresh Source with one audio and one video track per
// Acquire, or Err when set. AudioOnly leaves out the video track.
type Provider struct {
	Err       error
	AudioOnly bool

	mu      sync.Mutex
	sources []*Source
}

func (p *Provider) Acquire(context.Context) (core.MediaSource, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	s := &Source{tracks: []core.LocalTrack{NewTrack("audio-0", webrtc.RTPCodecTypeAudio)}}
	if !p.AudioOnly {
		s.tracks = append(s.tracks, NewTrack("video-0", webrtc.RTPCodecTypeVideo))
	}
	p.mu.Lock()
	p.sources = append(p.sources, s)
	p.mu.Unlock()
	return s, nil
}

// Last returns the most recently acquired source, or nil.
func (p *Provider) Last() *Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sources) == 0 {
		return nil
	}
	return p.sources[len(p.sources)-1]
}
