package core

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	}
	return "unknown"
}

// PeerTransport performs offer/answer negotiation and ICE exchange with one
// remote participant. Calls may block; callbacks fire on transport goroutines.
type PeerTransport interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddTrack attaches a local outbound track.
	AddTrack(LocalTrack) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a remote media track arrives.
	OnTrack(func(RemoteTrack))
	OnStateChange(func(TransportState))
	// Close should stop all underlying media resources. Safe to call twice.
	Close() error
}

type TransportFactory interface {
	NewTransport(id domain.ParticipantID) (PeerTransport, error)
}
