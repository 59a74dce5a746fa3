package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUsernameEmpty    = errors.New("username empty")
	ErrUsernameTooLong  = errors.New("username too long")
	ErrRoomEmpty        = errors.New("room id empty")
	ErrRoomTooLong      = errors.New("room id too long")
	ErrAlreadyInCall    = errors.New("already in a call")
	ErrNotInCall        = errors.New("not in a call")
	ErrJoinCancelled    = errors.New("join cancelled by hang up")
	ErrClosed           = errors.New("orchestrator closed")
	ErrChatEmpty        = errors.New("chat message empty")
	ErrChatTooLong      = errors.New("chat message too long")
	ErrChatRateLimited  = errors.New("chat rate limited")
	ErrNoCaptureSource  = errors.New("no capture source configured")
	ErrTransportClosed  = errors.New("transport closed")
	ErrSignalingClosed  = errors.New("signaling channel closed")
	ErrUnknownGlareMode = errors.New("unknown glare policy")

	ErrParticipantIDTooLong = errors.New("participant id too long")
)

// MediaAcquisitionError means the local media source is unavailable or was denied.
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// SignalingChannelError means the rendezvous channel could not be opened or was lost.
type SignalingChannelError struct {
	Op  string
	Err error
}

func (e *SignalingChannelError) Error() string {
	return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
}

func (e *SignalingChannelError) Unwrap() error { return e.Err }

// NegotiationError is a failed peer transport step for one participant.
type NegotiationError struct {
	Participant ParticipantID
	Step        string
	Err         error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s: %s: %v", e.Participant, e.Step, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
