package rtc

import (
	"errors"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errNoLocalTrack = errors.New("track has no pion local track")

// Transport wraps one pion PeerConnection. Callbacks may be set at any time;
// events fired before a callback is set are dropped.
type Transport struct {
	pc     *webrtc.PeerConnection
	id     domain.ParticipantID
	logger zerolog.Logger
	once   sync.Once

	mu      sync.RWMutex
	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
	onState func(core.TransportState)
}

func newTransport(pc *webrtc.PeerConnection, id domain.ParticipantID) *Transport {
	t := &Transport{
		pc:     pc,
		id:     id,
		logger: log.With().Str("module", "rtc").Str("participant", string(id)).Logger(),
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		t.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		t.mu.RLock()
		fn := t.onState
		t.mu.RUnlock()
		if fn != nil {
			fn(mapState(s))
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			t.logger.Debug().Msg("ICE gathering complete")
			return
		}
		t.mu.RLock()
		fn := t.onICE
		t.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		t.mu.RLock()
		fn := t.onTrack
		t.mu.RUnlock()
		if fn != nil {
			fn(track)
		}
	})
	return t
}

func mapState(s webrtc.PeerConnectionState) core.TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return core.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.TransportFailed
	case webrtc.PeerConnectionStateClosed:
		return core.TransportClosed
	}
	return core.TransportNew
}

func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription starts trickle ICE gathering; candidates arrive on OnICECandidate.
func (t *Transport) SetLocalDescription(sd webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sd)
}

func (t *Transport) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sd)
}

func (t *Transport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(ci)
}

// AddTrack attaches tr and drains RTCP for it so the interceptors see
// receiver reports.
func (t *Transport) AddTrack(tr core.LocalTrack) error {
	local := tr.Local()
	if local == nil {
		return errNoLocalTrack
	}
	sender, err := t.pc.AddTrack(local)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	t.logger.Debug().Str("track", tr.ID()).Str("kind", tr.Kind().String()).Msg("local track added")
	return nil
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onICE = fn
	t.mu.Unlock()
}

func (t *Transport) OnTrack(fn func(core.RemoteTrack)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

func (t *Transport) OnStateChange(fn func(core.TransportState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		if err = t.pc.Close(); err != nil {
			t.logger.Error().Err(err).Msg("close error")
		} else {
			t.logger.Info().Msg("closed")
		}
	})
	return err
}
