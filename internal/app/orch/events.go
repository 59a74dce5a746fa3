package orch

import (
	"github.com/dkeye/Meet/internal/app/peer"
	"github.com/dkeye/Meet/internal/domain"
)

type EventKind int

const (
	EventParticipantsChanged EventKind = iota
	EventConnectionPhase
	EventChatReceived
	EventNegotiationFailed
	EventSignalingLost
	EventCallEnded
)

func (k EventKind) String() string {
	switch k {
	case EventParticipantsChanged:
		return "participants-changed"
	case EventConnectionPhase:
		return "connection-phase"
	case EventChatReceived:
		return "chat-received"
	case EventNegotiationFailed:
		return "negotiation-failed"
	case EventSignalingLost:
		return "signaling-lost"
	case EventCallEnded:
		return "call-ended"
	}
	return "unknown"
}

// Event is a notification for rendering layers. Only the fields that apply
// to Kind are set.
type Event struct {
	Kind        EventKind
	Participant domain.ParticipantID
	Phase       peer.Phase
	Message     *domain.ChatMessage
	Err         error
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Debug().Str("event", ev.Kind.String()).Msg("event dropped, consumer lagging")
	}
}

func (o *Orchestrator) emitPhase(id domain.ParticipantID, p peer.Phase) {
	o.emit(Event{Kind: EventConnectionPhase, Participant: id, Phase: p})
}
