package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// ChatPayload is the body of a chatMessage envelope.
type ChatPayload struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts an RFC 3339 string or unix milliseconds for timestamp.
func (p *ChatPayload) UnmarshalJSON(b []byte) error {
	var raw struct {
		Text      string          `json:"text"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Text = raw.Text
	p.Timestamp = time.Time{}
	if len(raw.Timestamp) == 0 || string(raw.Timestamp) == "null" {
		return nil
	}
	if raw.Timestamp[0] == '"' {
		return json.Unmarshal(raw.Timestamp, &p.Timestamp)
	}
	var ms int64
	if err := json.Unmarshal(raw.Timestamp, &ms); err != nil {
		return fmt.Errorf("chat timestamp: %w", err)
	}
	p.Timestamp = time.UnixMilli(ms).UTC()
	return nil
}

// MediaStatePayload announces local track enablement.
type MediaStatePayload struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

func Join(room domain.RoomID, userName string) Envelope {
	return Envelope{Type: TypeJoin, Room: room, UserName: userName}
}

func Offer(room domain.RoomID, self domain.ParticipantID, name string, sdp webrtc.SessionDescription) (Envelope, error) {
	return Envelope{Type: TypeOffer, Room: room, SenderID: self, SenderName: name}.withPayload(sdp)
}

func Answer(room domain.RoomID, self domain.ParticipantID, name string, sdp webrtc.SessionDescription) (Envelope, error) {
	return Envelope{Type: TypeAnswer, Room: room, SenderID: self, SenderName: name}.withPayload(sdp)
}

func Candidate(room domain.RoomID, self domain.ParticipantID, c webrtc.ICECandidateInit) (Envelope, error) {
	return Envelope{Type: TypeICECandidate, Room: room, SenderID: self}.withPayload(c)
}

func Chat(room domain.RoomID, userName string, p ChatPayload) (Envelope, error) {
	return Envelope{Type: TypeChatMessage, Room: room, UserName: userName}.withPayload(p)
}

func MediaState(room domain.RoomID, self domain.ParticipantID, p MediaStatePayload) (Envelope, error) {
	return Envelope{Type: TypeMediaState, Room: room, SenderID: self}.withPayload(p)
}

// Description decodes an offer or answer payload. The SDP type must match the envelope type.
func (e Envelope) Description() (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := e.decodePayload(&sd); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if sd.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%s payload: empty sdp", e.Type)
	}
	want := webrtc.NewSDPType(e.Type)
	if sd.Type != want {
		return webrtc.SessionDescription{}, fmt.Errorf("%s payload: sdp type %s", e.Type, sd.Type)
	}
	return sd, nil
}

func (e Envelope) Candidate() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := e.decodePayload(&c); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	return c, nil
}

func (e Envelope) Chat() (ChatPayload, error) {
	var p ChatPayload
	if err := e.decodePayload(&p); err != nil {
		return ChatPayload{}, err
	}
	return p, nil
}

func (e Envelope) MediaState() (MediaStatePayload, error) {
	var p MediaStatePayload
	if err := e.decodePayload(&p); err != nil {
		return MediaStatePayload{}, err
	}
	return p, nil
}
