// Package protocol defines the signaling envelope exchanged with the rendezvous server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

const (
	TypeJoin              = "join"
	TypeJoined            = "joined"
	TypeParticipantJoined = "participantJoined"
	TypeParticipantLeft   = "participantLeft"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeICECandidate      = "ice-candidate"
	TypeChatMessage       = "chatMessage"
	TypeMediaState        = "mediaState"
)

var (
	ErrMissingType    = errors.New("envelope without type")
	ErrMissingPayload = errors.New("envelope without payload")
)

// PeerInfo is a participant as announced by the server.
type PeerInfo struct {
	ID       domain.ParticipantID `json:"id"`
	UserName string               `json:"userName,omitempty"`
}

// Envelope is the single message shape in both directions. Unused fields are omitted.
type Envelope struct {
	Type        string               `json:"type"`
	Room        domain.RoomID        `json:"room,omitempty"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
	SenderID    domain.ParticipantID `json:"senderId,omitempty"`
	SenderName  string               `json:"senderName,omitempty"`
	UserName    string               `json:"userName,omitempty"`
	Peers       []PeerInfo           `json:"peers,omitempty"`
	Participant *PeerInfo            `json:"participant,omitempty"`
	SelfID      domain.ParticipantID `json:"selfId,omitempty"`
}

func Decode(f core.Frame) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

func Encode(env Envelope) (core.Frame, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.Type, err)
	}
	return b, nil
}

func (e Envelope) withPayload(v any) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", e.Type, err)
	}
	e.Payload = b
	return e, nil
}

func (e Envelope) decodePayload(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return ErrMissingPayload
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
