// Package rtc implements core.PeerTransport with pion/webrtc.
package rtc

import (
	"fmt"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultICEServers are the public STUN servers used when none are configured.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Factory creates peer connections sharing one API (codecs and interceptors).
type Factory struct {
	api  *webrtc.API
	conf webrtc.Configuration
}

// NewFactory registers the default codecs and interceptors (NACK, RTCP
// reports, TWCC). A nil iceServers means DefaultICEServers.
func NewFactory(iceServers []string) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	if iceServers == nil {
		iceServers = DefaultICEServers
	}
	conf := webrtc.Configuration{}
	for _, u := range iceServers {
		conf.ICEServers = append(conf.ICEServers, webrtc.ICEServer{URLs: []string{u}})
	}
	log.Info().Str("module", "rtc").Strs("ice_servers", iceServers).Msg("webrtc api ready")
	return &Factory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)),
		conf: conf,
	}, nil
}

func (f *Factory) NewTransport(id domain.ParticipantID) (core.PeerTransport, error) {
	pc, err := f.api.NewPeerConnection(f.conf)
	if err != nil {
		return nil, err
	}
	return newTransport(pc, id), nil
}
