package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/peer"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

var errTransportFailed = errors.New("transport failed")

// current reports whether conn is still the live connection of id. Results
// for anything else are stale and dropped.
func (o *Orchestrator) current(id domain.ParticipantID, conn *peer.Connection) bool {
	c, ok := o.roster.Conn(id)
	return ok && c == conn && !conn.Closed()
}

// ensureConn returns the connection of id, creating it if needed.
func (o *Orchestrator) ensureConn(id domain.ParticipantID) (*peer.Connection, bool, error) {
	if c, ok := o.roster.Conn(id); ok {
		return c, false, nil
	}
	c, err := o.newConn(id)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// newConn builds a connection for a known participant, binds its transport
// callbacks and hands over any early candidates.
func (o *Orchestrator) newConn(id domain.ParticipantID) (*peer.Connection, error) {
	if o.sess.source == nil {
		return nil, domain.ErrNotInCall
	}
	if !o.roster.Has(id) {
		return nil, fmt.Errorf("participant %s not in roster", id)
	}
	t, err := o.deps.Transports.NewTransport(id)
	if err != nil {
		return nil, &domain.NegotiationError{Participant: id, Step: "new transport", Err: err}
	}
	conn, err := peer.New(id, t, o.sess.source.Tracks())
	if err != nil {
		return nil, err
	}
	o.bind(id, conn, t)
	o.roster.SetConn(id, conn)
	early := o.roster.TakeEarly(id)
	for _, ci := range early {
		conn.AddCandidate(ci)
	}
	o.logger.Debug().Str("participant", string(id)).Int("early", len(early)).Msg("connection created")
	o.emitPhase(id, conn.Phase())
	return conn, nil
}

func (o *Orchestrator) bind(id domain.ParticipantID, conn *peer.Connection, t core.PeerTransport) {
	t.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		o.post(func() {
			if o.current(id, conn) && !conn.HoldLocal(ci) {
				o.sendCandidate(ci)
			}
		})
	})
	t.OnTrack(func(track core.RemoteTrack) {
		o.post(func() {
			if o.current(id, conn) {
				o.onRemoteTrack(id, conn, track)
			}
		})
	})
	t.OnStateChange(func(s core.TransportState) {
		o.post(func() {
			if o.current(id, conn) {
				o.onTransportState(id, conn, s)
			}
		})
	})
}

// dropConn closes the connection and remote stream of id but keeps the
// participant. With carry, remote candidates the connection had not applied
// yet go back to the early buffer for the next connection.
func (o *Orchestrator) dropConn(id domain.ParticipantID, carry bool) {
	if c, ok := o.roster.Conn(id); ok {
		if carry {
			for _, ci := range c.TakePending() {
				if !o.roster.BufferEarly(id, ci) {
					o.logger.Warn().Str("participant", string(id)).Msg("early candidate buffer full")
					break
				}
			}
		}
		c.Close()
		o.roster.SetConn(id, nil)
		o.emitPhase(id, c.Phase())
	}
	if old, _ := o.roster.SetStream(id, nil); old != nil {
		old.Close()
	}
}

func (o *Orchestrator) reportCreateFailure(id domain.ParticipantID, err error) {
	o.logger.Error().Err(err).Str("participant", string(id)).Msg("connection not created")
	o.emit(Event{Kind: EventNegotiationFailed, Participant: id, Err: err})
}

// connect starts an offer towards id unless one is already in flight.
func (o *Orchestrator) connect(id domain.ParticipantID) {
	conn, created, err := o.ensureConn(id)
	if err != nil {
		o.reportCreateFailure(id, err)
		return
	}
	if !created && (conn.AwaitingAnswer() || conn.Phase() != peer.PhaseNegotiating) {
		return
	}
	o.offer(id, conn)
}

func (o *Orchestrator) offer(id domain.ParticipantID, conn *peer.Connection) {
	conn.Offer(func(sd webrtc.SessionDescription, err error) {
		o.post(func() {
			if !o.current(id, conn) {
				return
			}
			if err != nil {
				o.fail(id, conn, err)
				return
			}
			env, err := protocol.Offer(o.sess.roomID, o.sess.selfID, o.sess.userName, sd)
			if err != nil {
				o.fail(id, conn, err)
				return
			}
			_ = o.send(env)
			o.flushLocal(conn)
		})
	})
}

func (o *Orchestrator) answer(id domain.ParticipantID, conn *peer.Connection, offer webrtc.SessionDescription) {
	conn.AcceptOffer(offer, func(sd webrtc.SessionDescription, err error) {
		o.post(func() {
			if !o.current(id, conn) {
				return
			}
			if err != nil {
				o.fail(id, conn, err)
				return
			}
			env, err := protocol.Answer(o.sess.roomID, o.sess.selfID, o.sess.userName, sd)
			if err != nil {
				o.fail(id, conn, err)
				return
			}
			_ = o.send(env)
			o.flushLocal(conn)
		})
	})
}

// flushLocal signals the candidates held back while the local description
// was not out yet.
func (o *Orchestrator) flushLocal(conn *peer.Connection) {
	for _, ci := range conn.ReleaseLocal() {
		o.sendCandidate(ci)
	}
}

func (o *Orchestrator) sendCandidate(ci webrtc.ICECandidateInit) {
	env, err := protocol.Candidate(o.sess.roomID, o.sess.selfID, ci)
	if err != nil {
		o.logger.Error().Err(err).Msg("encode candidate")
		return
	}
	_ = o.send(env)
}

// onRemoteTrack routes inbound media and marks the connection connected.
func (o *Orchestrator) onRemoteTrack(id domain.ParticipantID, conn *peer.Connection, track core.RemoteTrack) {
	stream, ok := o.roster.Stream(id)
	if !ok {
		stream = media.NewRemoteStream(id, o.deps.Sink)
		o.roster.SetStream(id, stream)
	}
	stream.Attach(track)
	if conn.SetPhase(peer.PhaseConnected) {
		o.emitPhase(id, peer.PhaseConnected)
		o.emit(Event{Kind: EventParticipantsChanged, Participant: id})
	}
}

func (o *Orchestrator) onTransportState(id domain.ParticipantID, conn *peer.Connection, s core.TransportState) {
	o.logger.Debug().Str("participant", string(id)).Str("state", s.String()).Msg("transport state")
	if s == core.TransportFailed {
		o.fail(id, conn, &domain.NegotiationError{Participant: id, Step: "transport", Err: errTransportFailed})
	}
}

// fail moves conn to Failed, reports it and retries with a fresh offer
// while this side is the offerer and retries remain.
func (o *Orchestrator) fail(id domain.ParticipantID, conn *peer.Connection, err error) {
	if !conn.SetPhase(peer.PhaseFailed) {
		return
	}
	var nerr *domain.NegotiationError
	if !errors.As(err, &nerr) {
		err = &domain.NegotiationError{Participant: id, Step: "signal", Err: err}
	}
	o.logger.Warn().Err(err).Str("participant", string(id)).Int("attempt", conn.Attempt()).Msg("negotiation failed")
	o.emitPhase(id, peer.PhaseFailed)
	o.emit(Event{Kind: EventNegotiationFailed, Participant: id, Err: err})

	if conn.Role() != peer.RoleOfferer || conn.Attempt() >= o.opts.NegotiationRetries {
		return
	}
	attempt := conn.Attempt() + 1
	o.dropConn(id, false)
	fresh, cerr := o.newConn(id)
	if cerr != nil {
		o.reportCreateFailure(id, cerr)
		return
	}
	fresh.SetAttempt(attempt)
	o.logger.Info().Str("participant", string(id)).Int("attempt", attempt).Msg("retrying offer")
	o.offer(id, fresh)
}
