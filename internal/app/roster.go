package app

import (
	"sort"

	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/peer"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// MaxEarlyCandidates bounds candidates held for a participant with no connection.
const MaxEarlyCandidates = 64

type rosterEntry struct {
	participant domain.Participant
	conn        *peer.Connection
	stream      *media.RemoteStream
}

// Roster maps participant ids to their meta, connection and remote stream.
// It is not synchronized: the session loop is its only user.
type Roster struct {
	entries map[domain.ParticipantID]*rosterEntry
	early   map[domain.ParticipantID][]webrtc.ICECandidateInit
}

func NewRoster() *Roster {
	return &Roster{
		entries: make(map[domain.ParticipantID]*rosterEntry),
		early:   make(map[domain.ParticipantID][]webrtc.ICECandidateInit),
	}
}

// Upsert adds p, or refreshes the display name of a known participant.
// It reports whether p was new.
func (r *Roster) Upsert(p domain.Participant) bool {
	if e, ok := r.entries[p.ID]; ok {
		if p.DisplayName != "" && p.DisplayName != e.participant.DisplayName {
			e.participant.DisplayName = p.DisplayName
			log.Debug().Str("module", "app.roster").Str("participant", string(p.ID)).Str("name", p.DisplayName).Msg("renamed")
		}
		return false
	}
	r.entries[p.ID] = &rosterEntry{participant: p}
	log.Info().Str("module", "app.roster").Str("participant", string(p.ID)).Str("name", p.DisplayName).Msg("participant added")
	return true
}

func (r *Roster) Get(id domain.ParticipantID) (domain.Participant, bool) {
	e, ok := r.entries[id]
	if !ok {
		return domain.Participant{}, false
	}
	return e.participant, true
}

func (r *Roster) Has(id domain.ParticipantID) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Roster) Len() int { return len(r.entries) }

// Remove drops id with its early candidates and returns what the caller must close.
func (r *Roster) Remove(id domain.ParticipantID) (*peer.Connection, *media.RemoteStream, bool) {
	delete(r.early, id)
	e, ok := r.entries[id]
	if !ok {
		return nil, nil, false
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.roster").Str("participant", string(id)).Msg("participant removed")
	return e.conn, e.stream, true
}

func (r *Roster) Conn(id domain.ParticipantID) (*peer.Connection, bool) {
	e, ok := r.entries[id]
	if !ok || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// SetConn binds c to a known participant. It reports false for unknown ids.
func (r *Roster) SetConn(id domain.ParticipantID, c *peer.Connection) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.conn = c
	return true
}

func (r *Roster) Stream(id domain.ParticipantID) (*media.RemoteStream, bool) {
	e, ok := r.entries[id]
	if !ok || e.stream == nil {
		return nil, false
	}
	return e.stream, true
}

// SetStream replaces the remote stream of id and returns the previous one.
func (r *Roster) SetStream(id domain.ParticipantID, s *media.RemoteStream) (*media.RemoteStream, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	old := e.stream
	e.stream = s
	return old, true
}

func (r *Roster) SetMediaState(id domain.ParticipantID, audioMuted, videoOff bool) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.participant.AudioMuted = audioMuted
	e.participant.VideoOff = videoOff
	return true
}

// BufferEarly holds a candidate that arrived before any connection for id.
func (r *Roster) BufferEarly(id domain.ParticipantID, c webrtc.ICECandidateInit) bool {
	if len(r.early[id]) >= MaxEarlyCandidates {
		return false
	}
	r.early[id] = append(r.early[id], c)
	return true
}

// TakeEarly returns and forgets the early candidates of id.
func (r *Roster) TakeEarly(id domain.ParticipantID) []webrtc.ICECandidateInit {
	c := r.early[id]
	delete(r.early, id)
	return c
}

// IDs returns participant ids in sorted order.
func (r *Roster) IDs() []domain.ParticipantID {
	out := make([]domain.ParticipantID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset empties the roster and returns every connection and stream it held.
func (r *Roster) Reset() ([]*peer.Connection, []*media.RemoteStream) {
	var conns []*peer.Connection
	var streams []*media.RemoteStream
	for _, e := range r.entries {
		if e.conn != nil {
			conns = append(conns, e.conn)
		}
		if e.stream != nil {
			streams = append(streams, e.stream)
		}
	}
	r.entries = make(map[domain.ParticipantID]*rosterEntry)
	r.early = make(map[domain.ParticipantID][]webrtc.ICECandidateInit)
	log.Info().Str("module", "app.roster").Int("connections", len(conns)).Msg("roster reset")
	return conns, streams
}

// ParticipantView is a read-only copy for rendering layers.
type ParticipantView struct {
	domain.Participant
	Phase     string       `json:"phase,omitempty"`
	HasStream bool         `json:"hasStream"`
	Stream    *media.Stats `json:"stream,omitempty"`
}

// Snapshot copies every participant in id order.
func (r *Roster) Snapshot() []ParticipantView {
	out := make([]ParticipantView, 0, len(r.entries))
	for _, id := range r.IDs() {
		e := r.entries[id]
		v := ParticipantView{Participant: e.participant}
		if e.conn != nil {
			v.Phase = e.conn.Phase().String()
		}
		if e.stream != nil {
			st := e.stream.Stats()
			v.HasStream = len(st.Tracks) > 0
			v.Stream = &st
		}
		out = append(out, v)
	}
	return out
}
