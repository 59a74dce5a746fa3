package orch

import (
	"fmt"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/chat"
	"github.com/dkeye/Meet/internal/app/peer"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// readSignals forwards frames of one call to the loop until the channel
// closes. Frames of an older call are dropped on the loop.
func (o *Orchestrator) readSignals(gen uint64, ch core.SignalChannel) {
	for f := range ch.Incoming() {
		frame := f
		if !o.post(func() {
			if o.gen == gen {
				o.dispatch(frame)
			}
		}) {
			return
		}
	}
	err := ch.Err()
	o.post(func() {
		if o.gen == gen {
			o.onSignalingLost(err)
		}
	})
}

func (o *Orchestrator) onSignalingLost(err error) {
	if o.sess.signalLost {
		return
	}
	if err == nil {
		err = domain.ErrSignalingClosed
	}
	o.sess.signalLost = true
	serr := &domain.SignalingChannelError{Op: "read", Err: err}
	o.logger.Warn().Err(serr).Int("participants", o.roster.Len()).Msg("signaling lost, call degraded")
	o.emit(Event{Kind: EventSignalingLost, Err: serr})
}

// dispatch applies one inbound envelope. It runs on the loop.
func (o *Orchestrator) dispatch(frame core.Frame) {
	env, err := protocol.Decode(frame)
	if err != nil {
		o.logger.Warn().Err(err).Int("size", len(frame)).Msg("bad envelope")
		return
	}
	if err := checkIDs(env); err != nil {
		o.logger.Warn().Err(err).Str("type", env.Type).Msg("envelope dropped")
		return
	}
	if o.sess.selfID != "" && env.SenderID == o.sess.selfID {
		o.logger.Trace().Str("type", env.Type).Msg("own envelope echoed")
		return
	}

	switch env.Type {
	case protocol.TypeJoined:
		o.onJoined(env)
	case protocol.TypeParticipantJoined:
		o.onParticipantJoined(env)
	case protocol.TypeParticipantLeft:
		o.onParticipantLeft(env)
	case protocol.TypeOffer:
		o.onOffer(env)
	case protocol.TypeAnswer:
		o.onAnswer(env)
	case protocol.TypeICECandidate:
		o.onCandidate(env)
	case protocol.TypeChatMessage:
		o.onChat(env)
	case protocol.TypeMediaState:
		o.onMediaState(env)
	default:
		o.logger.Debug().Str("type", env.Type).Msg("unknown envelope type ignored")
	}
}

// checkIDs validates every participant id the envelope carries.
func checkIDs(env protocol.Envelope) error {
	ids := []domain.ParticipantID{env.SenderID, env.SelfID}
	if env.Participant != nil {
		ids = append(ids, env.Participant.ID)
	}
	for _, p := range env.Peers {
		ids = append(ids, p.ID)
	}
	for _, id := range ids {
		if err := domain.CheckParticipantID(id); err != nil {
			return fmt.Errorf("%w: %.16s...", err, id)
		}
	}
	return nil
}

func (o *Orchestrator) onJoined(env protocol.Envelope) {
	if env.SelfID == "" {
		o.logger.Warn().Msg("joined without selfId")
		return
	}
	if o.sess.selfID != "" {
		o.logger.Warn().Str("self", string(o.sess.selfID)).Str("got", string(env.SelfID)).Msg("second joined ignored")
		return
	}
	o.sess.selfID = env.SelfID
	o.logger.Info().Str("self", string(env.SelfID)).Int("peers", len(env.Peers)).Msg("joined")

	changed := false
	for _, p := range env.Peers {
		if p.ID == "" || p.ID == o.sess.selfID {
			continue
		}
		if o.roster.Upsert(domain.NewParticipant(p.ID, p.UserName)) {
			changed = true
		}
		o.connect(p.ID)
	}
	if changed {
		o.emit(Event{Kind: EventParticipantsChanged})
	}
}

// onParticipantJoined only records the newcomer: it got the roster in its
// own joined and offers to us.
func (o *Orchestrator) onParticipantJoined(env protocol.Envelope) {
	if env.Participant == nil || env.Participant.ID == "" {
		o.logger.Warn().Msg("participantJoined without participant")
		return
	}
	p := env.Participant
	if p.ID == o.sess.selfID {
		return
	}
	if o.roster.Upsert(domain.NewParticipant(p.ID, p.UserName)) {
		o.emit(Event{Kind: EventParticipantsChanged, Participant: p.ID})
	}
}

func (o *Orchestrator) onParticipantLeft(env protocol.Envelope) {
	if env.Participant == nil || env.Participant.ID == "" {
		o.logger.Warn().Msg("participantLeft without participant")
		return
	}
	id := env.Participant.ID
	conn, stream, ok := o.roster.Remove(id)
	if conn != nil {
		conn.Close()
		o.emitPhase(id, conn.Phase())
	}
	if stream != nil {
		stream.Close()
	}
	if ok {
		o.emit(Event{Kind: EventParticipantsChanged, Participant: id})
	}
}

func (o *Orchestrator) onOffer(env protocol.Envelope) {
	id := env.SenderID
	if id == "" {
		o.logger.Warn().Msg("offer without senderId")
		return
	}
	sd, err := env.Description()
	if err != nil {
		o.logger.Warn().Err(err).Str("participant", string(id)).Msg("bad offer")
		return
	}
	if o.roster.Upsert(domain.NewParticipant(id, env.SenderName)) {
		o.emit(Event{Kind: EventParticipantsChanged, Participant: id})
	}

	conn, ok := o.roster.Conn(id)
	if ok && conn.Phase() == peer.PhaseFailed {
		o.dropConn(id, true)
		ok = false
	}
	if ok && conn.AwaitingAnswer() {
		action := o.deps.Policy.OnGlare(o.sess.selfID, id)
		o.logger.Info().Str("participant", string(id)).Str("action", action.String()).Msg("glare")
		switch action {
		case app.KeepLocal:
			return
		case app.YieldToRemote:
			o.dropConn(id, true)
			ok = false
		case app.AcceptOnExisting:
		}
	}
	if !ok {
		if conn, err = o.newConn(id); err != nil {
			o.reportCreateFailure(id, err)
			return
		}
	}
	o.answer(id, conn, sd)
}

func (o *Orchestrator) onAnswer(env protocol.Envelope) {
	id := env.SenderID
	conn, ok := o.roster.Conn(id)
	if !ok {
		o.logger.Debug().Str("participant", string(id)).Msg("answer without connection ignored")
		return
	}
	if conn.Phase() != peer.PhaseNegotiating || !conn.AwaitingAnswer() {
		o.logger.Debug().Str("participant", string(id)).Str("phase", conn.Phase().String()).Msg("unexpected answer ignored")
		return
	}
	sd, err := env.Description()
	if err != nil {
		o.logger.Warn().Err(err).Str("participant", string(id)).Msg("bad answer")
		return
	}
	conn.AcceptAnswer(sd, func(err error) {
		if err == nil {
			return
		}
		o.post(func() {
			if o.current(id, conn) {
				o.fail(id, conn, err)
			}
		})
	})
}

func (o *Orchestrator) onCandidate(env protocol.Envelope) {
	id := env.SenderID
	if id == "" {
		return
	}
	ci, err := env.Candidate()
	if err != nil {
		o.logger.Warn().Err(err).Str("participant", string(id)).Msg("bad candidate")
		return
	}
	if conn, ok := o.roster.Conn(id); ok {
		conn.AddCandidate(ci)
		return
	}
	if !o.roster.Has(id) {
		o.logger.Debug().Str("participant", string(id)).Msg("candidate from unknown participant ignored")
		return
	}
	if !o.roster.BufferEarly(id, ci) {
		o.logger.Warn().Str("participant", string(id)).Msg("early candidate buffer full")
	}
}

func (o *Orchestrator) onChat(env protocol.Envelope) {
	msg, err := chat.FromEnvelope(env, o.now())
	if err != nil {
		o.logger.Warn().Err(err).Msg("bad chat message")
		return
	}
	o.history.Append(msg)
	o.emit(Event{Kind: EventChatReceived, Participant: env.SenderID, Message: &msg})
}

func (o *Orchestrator) onMediaState(env protocol.Envelope) {
	p, err := env.MediaState()
	if err != nil {
		o.logger.Warn().Err(err).Msg("bad media state")
		return
	}
	if o.roster.SetMediaState(env.SenderID, !p.Audio, !p.Video) {
		o.emit(Event{Kind: EventParticipantsChanged, Participant: env.SenderID})
	}
}
