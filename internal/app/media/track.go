package media

import (
	"context"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateStopped
)

func (s TrackState) String() string {
	switch s {
	case TrackStateOk:
		return "ok"
	case TrackStateMuted:
		return "muted"
	case TrackStateStopped:
		return "stopped"
	}
	return "unknown"
}

// Track is a local outbound track fed by a sample pump. Every connection
// holds the same Track, so muting is seen by all of them at once.
type Track struct {
	local  *webrtc.TrackLocalStaticSample
	state  atomic.Int32 // Zero by default (TrackStateOk)
	cancel context.CancelFunc
}

func NewTrack(local *webrtc.TrackLocalStaticSample) *Track {
	return &Track{local: local}
}

func (t *Track) ID() string                { return t.local.ID() }
func (t *Track) Kind() webrtc.RTPCodecType { return t.local.Kind() }
func (t *Track) Local() webrtc.TrackLocal  { return t.local }

func (t *Track) GetState() TrackState {
	return TrackState(t.state.Load())
}

func (t *Track) Enabled() bool { return t.GetState() == TrackStateOk }

// SetEnabled toggles between ok and muted. A stopped track stays stopped.
func (t *Track) SetEnabled(v bool) {
	from, to := TrackStateMuted, TrackStateOk
	if !v {
		from, to = TrackStateOk, TrackStateMuted
	}
	t.state.CompareAndSwap(int32(from), int32(to))
}

// Stop ends the pump feeding this track.
func (t *Track) Stop() {
	t.state.Store(int32(TrackStateStopped))
	if t.cancel != nil {
		t.cancel()
	}
}
