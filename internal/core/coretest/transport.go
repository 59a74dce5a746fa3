// Package coretest provides in-memory implementations of the core contracts
// for tests.
package coretest

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Transport records every call made on it.
type Transport struct {
	ID domain.ParticipantID

	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	gates   map[string]chan struct{}
	closed  bool
	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
	onState func(core.TransportState)
}

// FailOn makes the named call return err. Names match Calls entries
// without their ":" suffix, e.g. "create-offer" or "set-remote".
func (t *Transport) FailOn(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail == nil {
		t.fail = make(map[string]error)
	}
	t.fail[name] = err
}

// GateOn makes the named call block until the returned channel is closed.
func (t *Transport) GateOn(name string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gates == nil {
		t.gates = make(map[string]chan struct{})
	}
	g := make(chan struct{})
	t.gates[name] = g
	return g
}

func (t *Transport) record(name, arg string) error {
	t.mu.Lock()
	entry := name
	if arg != "" {
		entry = name + ":" + arg
	}
	t.calls = append(t.calls, entry)
	gate := t.gates[name]
	var err error
	if t.closed && name != "close" {
		err = domain.ErrTransportClosed
	} else {
		err = t.fail[name]
	}
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	if err := t.record("create-offer", ""); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + string(t.ID)}, nil
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	if err := t.record("create-answer", ""); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-for-" + string(t.ID)}, nil
}

func (t *Transport) SetLocalDescription(sd webrtc.SessionDescription) error {
	return t.record("set-local", sd.Type.String())
}

func (t *Transport) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return t.record("set-remote", sd.Type.String())
}

func (t *Transport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return t.record("add-candidate", ci.Candidate)
}

func (t *Transport) AddTrack(tr core.LocalTrack) error {
	return t.record("add-track", tr.ID())
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onICE = fn
	t.mu.Unlock()
}

func (t *Transport) OnTrack(fn func(core.RemoteTrack)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

func (t *Transport) OnStateChange(fn func(core.TransportState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if !already {
		_ = t.record("close", "")
	}
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Calls returns a copy of the call log.
func (t *Transport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// Count returns how many calls start with entry.
func (t *Transport) Count(entry string) int {
	n := 0
	for _, c := range t.Calls() {
		if c == entry || len(c) > len(entry) && c[:len(entry)+1] == entry+":" {
			n++
		}
	}
	return n
}

// EmitCandidate fires the local ICE candidate callback.
func (t *Transport) EmitCandidate(ci webrtc.ICECandidateInit) {
	t.mu.Lock()
	fn := t.onICE
	t.mu.Unlock()
	if fn != nil {
		fn(ci)
	}
}

// EmitTrack fires the remote track callback.
func (t *Transport) EmitTrack(tr core.RemoteTrack) {
	t.mu.Lock()
	fn := t.onTrack
	t.mu.Unlock()
	if fn != nil {
		fn(tr)
	}
}

// EmitState fires the state callback.
func (t *Transport) EmitState(s core.TransportState) {
	t.mu.Lock()
	fn := t.onState
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Factory hands out Transports and remembers them per participant.
type Factory struct {
	mu      sync.Mutex
	byID    map[domain.ParticipantID][]*Transport
	FailNew error
	// OnNew, when set, runs on every new Transport before it is returned.
	OnNew func(*Transport)
}

func NewFactory() *Factory {
	return &Factory{byID: make(map[domain.ParticipantID][]*Transport)}
}

func (f *Factory) NewTransport(id domain.ParticipantID) (core.PeerTransport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNew != nil {
		return nil, f.FailNew
	}
	t := &Transport{ID: id}
	if f.OnNew != nil {
		f.OnNew(t)
	}
	f.byID[id] = append(f.byID[id], t)
	return t, nil
}

// For returns every transport created for id, oldest first.
func (f *Factory) For(id domain.ParticipantID) []*Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Transport(nil), f.byID[id]...)
}

// Last returns the newest transport for id, or nil.
func (f *Factory) Last(id domain.ParticipantID) *Transport {
	ts := f.For(id)
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

// All returns every transport created so far.
func (f *Factory) All() []*Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Transport
	for _, ts := range f.byID {
		out = append(out, ts...)
	}
	return out
}

// RemoteTrack serves packets pushed with Push until Close.
type RemoteTrack struct {
	TrackID string
	Stream  string
	Type    webrtc.RTPCodecType

	packets chan *rtp.Packet
	once    sync.Once
}

func NewRemoteTrack(id string, kind webrtc.RTPCodecType) *RemoteTrack {
	return &RemoteTrack{TrackID: id, Stream: "stream-" + id, Type: kind, packets: make(chan *rtp.Packet, 16)}
}

func (r *RemoteTrack) ID() string                { return r.TrackID }
func (r *RemoteTrack) StreamID() string          { return r.Stream }
func (r *RemoteTrack) Kind() webrtc.RTPCodecType { return r.Type }

func (r *RemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-r.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}

func (r *RemoteTrack) Push(p *rtp.Packet) { r.packets <- p }

func (r *RemoteTrack) Close() { r.once.Do(func() { close(r.packets) }) }

// Eventually fails the test if cond does not hold within two seconds.
func Eventually(t testing.TB, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", fmt.Sprintf(format, args...))
}
