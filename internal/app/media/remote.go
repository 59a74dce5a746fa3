package media

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TrackStats counts what arrived on one remote track.
type TrackStats struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Ended   bool   `json:"ended"`
}

// Stats is a copy of a remote stream's counters.
type Stats struct {
	StreamID string       `json:"streamId,omitempty"`
	Tracks   []TrackStats `json:"tracks"`
}

// RemoteStream collects the inbound tracks of one participant. Each track is
// drained on its own goroutine and forwarded to the sink, if any.
type RemoteStream struct {
	participant domain.ParticipantID
	sink        core.RTPSink

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	streamID string
	tracks   map[string]*TrackStats
}

func NewRemoteStream(participant domain.ParticipantID, sink core.RTPSink) *RemoteStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteStream{
		participant: participant,
		sink:        sink,
		ctx:         ctx,
		cancel:      cancel,
		tracks:      make(map[string]*TrackStats),
	}
}

// Attach starts draining track. A track id seen before is ignored.
func (s *RemoteStream) Attach(track core.RemoteTrack) bool {
	s.mu.Lock()
	if _, ok := s.tracks[track.ID()]; ok {
		s.mu.Unlock()
		return false
	}
	st := &TrackStats{ID: track.ID(), Kind: track.Kind().String()}
	s.tracks[track.ID()] = st
	if s.streamID == "" {
		s.streamID = track.StreamID()
	}
	s.mu.Unlock()

	logger := log.With().
		Str("module", "media").
		Str("participant", string(s.participant)).
		Str("track", track.ID()).
		Str("kind", st.Kind).
		Logger()
	logger.Info().Msg("remote track attached")
	go s.drain(track, st, &logger)
	return true
}

// drain reads RTP packets from the remote track until it ends or the
// stream is closed.
func (s *RemoteStream) drain(track core.RemoteTrack, st *TrackStats, logger *zerolog.Logger) {
	defer func() {
		s.mu.Lock()
		st.Ended = true
		s.mu.Unlock()
	}()
	sink := s.sink
	for {
		select {
		case <-s.ctx.Done():
			logger.Info().Msg("remote stream closed")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("remote track ended")
			return
		}
		s.count(st, pkt)
		if sink == nil {
			continue
		}
		if err := sink.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Msg("sink write RTP error, detaching sink")
			sink = nil
		}
	}
}

func (s *RemoteStream) count(st *TrackStats, pkt *rtp.Packet) {
	s.mu.Lock()
	st.Packets++
	st.Bytes += uint64(len(pkt.Payload))
	s.mu.Unlock()
}

func (s *RemoteStream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{StreamID: s.streamID, Tracks: make([]TrackStats, 0, len(s.tracks))}
	for _, st := range s.tracks {
		out.Tracks = append(out.Tracks, *st)
	}
	sort.Slice(out.Tracks, func(i, j int) bool { return out.Tracks[i].ID < out.Tracks[j].ID })
	return out
}

// Close stops every drain. Reads blocked on a live transport return once
// the transport is closed.
func (s *RemoteStream) Close() { s.cancel() }
