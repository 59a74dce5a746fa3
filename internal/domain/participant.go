// Package domain contains entity without logic, just meta-data
package domain

import "strings"

const (
	MaxParticipantIDLen = 64
	MaxUsernameLen      = 36
)

// ParticipantID is assigned by the signaling server and unique within a room.
type ParticipantID string

// Participant is one remote room member as seen by the local session.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"userName"`
	// AudioMuted and VideoOff are only known when the remote side sends mediaState.
	AudioMuted bool `json:"audioMuted"`
	VideoOff   bool `json:"videoOff"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in handlers.
func NewParticipant(id ParticipantID, name string) Participant {
	return Participant{ID: id, DisplayName: name}
}

// CheckParticipantID rejects ids longer than MaxParticipantIDLen. An empty id
// is left to the caller since some envelopes carry none.
func CheckParticipantID(id ParticipantID) error {
	if len(id) > MaxParticipantIDLen {
		return ErrParticipantIDTooLong
	}
	return nil
}

// ValidateUsername trims name and checks its length.
func ValidateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}
