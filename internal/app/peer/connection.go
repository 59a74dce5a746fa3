// Package peer holds the negotiation state machine for one remote participant.
package peer

import (
	"fmt"
	"sync/atomic"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Connection owns the PeerTransport of one participant.
//
// phase, role, attempt, awaitingAnswer and the local candidate queue belong
// to the owner (the session loop) and are not synchronized. remoteSet and pending are confined to the
// executor goroutine. Transport calls only ever run on the executor.
type Connection struct {
	id        domain.ParticipantID
	transport core.PeerTransport
	exec      *executor
	logger    zerolog.Logger
	closed    atomic.Bool

	phase          Phase
	role           Role
	attempt        int
	awaitingAnswer bool
	localSent      bool
	localQueue     []webrtc.ICECandidateInit

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// New wraps transport and attaches every local track. Tracks added to the
// source later are not propagated.
func New(id domain.ParticipantID, transport core.PeerTransport, tracks []core.LocalTrack) (*Connection, error) {
	c := &Connection{
		id:        id,
		transport: transport,
		logger:    log.With().Str("module", "peer").Str("participant", string(id)).Logger(),
		phase:     PhaseNegotiating,
	}
	for _, t := range tracks {
		if err := transport.AddTrack(t); err != nil {
			_ = transport.Close()
			return nil, &domain.NegotiationError{Participant: id, Step: "add track", Err: err}
		}
	}
	c.exec = newExecutor()
	c.logger.Debug().Int("tracks", len(tracks)).Msg("connection created")
	return c, nil
}

func (c *Connection) ID() domain.ParticipantID { return c.id }
func (c *Connection) Phase() Phase             { return c.phase }
func (c *Connection) Role() Role               { return c.role }
func (c *Connection) Attempt() int             { return c.attempt }
func (c *Connection) SetAttempt(n int)         { c.attempt = n }

// AwaitingAnswer reports whether a local offer is outstanding.
func (c *Connection) AwaitingAnswer() bool { return c.awaitingAnswer }

// SetPhase applies a transition and reports whether the phase changed.
func (c *Connection) SetPhase(p Phase) bool {
	if !canMove(c.phase, p) {
		return false
	}
	c.logger.Info().Str("from", c.phase.String()).Str("to", p.String()).Msg("phase")
	c.phase = p
	return true
}

// Offer creates and applies a local offer. done runs on the executor.
func (c *Connection) Offer(done func(webrtc.SessionDescription, error)) {
	c.role = RoleOfferer
	c.awaitingAnswer = true
	c.exec.run(func() {
		offer, err := c.transport.CreateOffer()
		if err != nil {
			c.finish(func() { done(webrtc.SessionDescription{}, c.fail("create offer", err)) })
			return
		}
		if err := c.transport.SetLocalDescription(offer); err != nil {
			c.finish(func() { done(webrtc.SessionDescription{}, c.fail("set local description", err)) })
			return
		}
		c.finish(func() { done(offer, nil) })
	})
}

// AcceptOffer applies a remote offer, flushes buffered candidates and
// produces an answer. done runs on the executor.
func (c *Connection) AcceptOffer(offer webrtc.SessionDescription, done func(webrtc.SessionDescription, error)) {
	c.awaitingAnswer = false
	c.exec.run(func() {
		if err := c.applyRemote(offer); err != nil {
			c.finish(func() { done(webrtc.SessionDescription{}, err) })
			return
		}
		answer, err := c.transport.CreateAnswer()
		if err != nil {
			c.finish(func() { done(webrtc.SessionDescription{}, c.fail("create answer", err)) })
			return
		}
		if err := c.transport.SetLocalDescription(answer); err != nil {
			c.finish(func() { done(webrtc.SessionDescription{}, c.fail("set local description", err)) })
			return
		}
		c.finish(func() { done(answer, nil) })
	})
}

// AcceptAnswer applies the remote answer to our offer. done runs on the executor.
func (c *Connection) AcceptAnswer(answer webrtc.SessionDescription, done func(error)) {
	c.awaitingAnswer = false
	c.exec.run(func() {
		err := c.applyRemote(answer)
		c.finish(func() { done(err) })
	})
}

// AddCandidate applies a remote candidate, or buffers it until a remote
// description exists. Order of arrival is preserved either way.
func (c *Connection) AddCandidate(ci webrtc.ICECandidateInit) {
	c.exec.run(func() {
		if !c.remoteSet {
			c.pending = append(c.pending, ci)
			c.logger.Debug().Int("buffered", len(c.pending)).Msg("candidate buffered")
			return
		}
		c.applyCandidate(ci)
	})
}

// TakePending returns and forgets the remote candidates still waiting for a
// remote description. It waits for queued transport calls to finish.
func (c *Connection) TakePending() []webrtc.ICECandidateInit {
	out := make(chan []webrtc.ICECandidateInit, 1)
	if !c.exec.run(func() {
		p := c.pending
		c.pending = nil
		out <- p
	}) {
		return nil
	}
	select {
	case p := <-out:
		return p
	case <-c.exec.done:
		select {
		case p := <-out:
			return p
		default:
			return nil
		}
	}
}

// HoldLocal queues a local candidate until the local description has been
// signaled and reports whether it was queued.
func (c *Connection) HoldLocal(ci webrtc.ICECandidateInit) bool {
	if c.localSent {
		return false
	}
	c.localQueue = append(c.localQueue, ci)
	return true
}

// ReleaseLocal marks the local description as signaled and returns the
// candidates held until now, in production order.
func (c *Connection) ReleaseLocal() []webrtc.ICECandidateInit {
	c.localSent = true
	q := c.localQueue
	c.localQueue = nil
	return q
}

// Close stops the executor and closes the transport. Safe to call twice.
func (c *Connection) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.SetPhase(PhaseClosed)
	c.exec.stop()
	if err := c.transport.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
	} else {
		c.logger.Info().Msg("closed")
	}
}

func (c *Connection) Closed() bool { return c.closed.Load() }

func (c *Connection) applyRemote(sd webrtc.SessionDescription) error {
	if err := c.transport.SetRemoteDescription(sd); err != nil {
		return c.fail(fmt.Sprintf("set remote %s", sd.Type), err)
	}
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	for _, ci := range pending {
		c.applyCandidate(ci)
	}
	if len(pending) > 0 {
		c.logger.Debug().Int("applied", len(pending)).Msg("buffered candidates flushed")
	}
	return nil
}

func (c *Connection) applyCandidate(ci webrtc.ICECandidateInit) {
	if err := c.transport.AddICECandidate(ci); err != nil {
		c.logger.Warn().Err(err).Str("candidate", ci.Candidate).Msg("add ice candidate")
	}
}

func (c *Connection) fail(step string, err error) error {
	return &domain.NegotiationError{Participant: c.id, Step: step, Err: err}
}

// finish drops results of a connection closed while the op was running.
func (c *Connection) finish(report func()) {
	if c.closed.Load() {
		return
	}
	report()
}
