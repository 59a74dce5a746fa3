package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is one outbound audio or video track of the local media source.
// Every Connection references the same LocalTrack, so enablement is shared.
type LocalTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Enabled() bool
	SetEnabled(bool)
	// Stop ends the track permanently.
	Stop()
	// Local is the pion track handed to PeerTransport.AddTrack.
	Local() webrtc.TrackLocal
}

// MediaSource provides zero or more local tracks.
type MediaSource interface {
	Tracks() []LocalTrack
	Stop()
}

// MediaProvider acquires the local media source. Failure is reported as
// *domain.MediaAcquisitionError.
type MediaProvider interface {
	Acquire(ctx context.Context) (MediaSource, error)
}

// RemoteTrack is an inbound track delivered by a PeerTransport.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RTPSink receives packets from remote tracks, e.g. a renderer.
// *webrtc.TrackLocalStaticRTP satisfies it.
type RTPSink interface {
	WriteRTP(*rtp.Packet) error
}
