package orch

import (
	"context"
	"errors"
	"net/url"

	"github.com/dkeye/Meet/internal/app/chat"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// Join acquires local media, opens the signaling channel and announces
// this session in room. HangUp during Join makes it return ErrJoinCancelled.
func (o *Orchestrator) Join(ctx context.Context, room, userName string) error {
	roomID, err := domain.ValidateRoomID(room)
	if err != nil {
		return err
	}
	name, err := domain.ValidateUsername(userName)
	if err != nil {
		return err
	}

	var (
		gen  uint64
		jctx context.Context
		busy bool
	)
	if err := o.do(func() {
		if o.sess.inCall || o.joining {
			busy = true
			return
		}
		o.gen++
		gen = o.gen
		o.joining = true
		jctx, o.cancelJoin = context.WithCancel(ctx)
	}); err != nil {
		return err
	}
	if busy {
		return domain.ErrAlreadyInCall
	}
	logger := o.logger.With().Str("room", string(roomID)).Str("user", name).Logger()
	logger.Info().Msg("joining")

	src, err := o.deps.Media.Acquire(jctx)
	if err != nil {
		var merr *domain.MediaAcquisitionError
		if !errors.As(err, &merr) {
			err = &domain.MediaAcquisitionError{Err: err}
		}
		logger.Error().Err(err).Msg("join aborted")
		return o.abortJoin(gen, err)
	}

	ch, err := o.deps.Dialer.Dial(jctx)
	if err != nil {
		src.Stop()
		var serr *domain.SignalingChannelError
		if !errors.As(err, &serr) {
			err = &domain.SignalingChannelError{Op: "dial", Err: err}
		}
		logger.Error().Err(err).Msg("join aborted")
		return o.abortJoin(gen, err)
	}

	var joinErr error
	if err := o.do(func() {
		if o.gen != gen {
			joinErr = domain.ErrJoinCancelled
			return
		}
		o.joining = false
		o.cancelJoin()
		o.cancelJoin = nil

		frame, err := protocol.Encode(protocol.Join(roomID, name))
		if err == nil {
			err = ch.TrySend(frame)
		}
		if err != nil {
			joinErr = &domain.SignalingChannelError{Op: "send join", Err: err}
			return
		}
		o.sess = session{
			roomID:       roomID,
			userName:     name,
			inCall:       true,
			audioEnabled: hasEnabled(src, webrtc.RTPCodecTypeAudio),
			videoEnabled: hasEnabled(src, webrtc.RTPCodecTypeVideo),
			source:       src,
			channel:      ch,
		}
		o.limiter.Reset()
		go o.readSignals(gen, ch)
		logger.Info().Int("tracks", len(src.Tracks())).Msg("in call")
	}); err != nil {
		joinErr = err
	}
	if joinErr != nil {
		src.Stop()
		ch.Close()
		logger.Warn().Err(joinErr).Msg("join aborted")
		return joinErr
	}
	return nil
}

// abortJoin clears the joining flag unless a hang up already did, in which
// case the join reports cancellation instead of err.
func (o *Orchestrator) abortJoin(gen uint64, err error) error {
	cancelled := false
	if derr := o.do(func() {
		if o.gen != gen {
			cancelled = true
			return
		}
		o.joining = false
		o.cancelJoin()
		o.cancelJoin = nil
	}); derr != nil {
		return derr
	}
	if cancelled {
		return domain.ErrJoinCancelled
	}
	return err
}

func hasEnabled(src core.MediaSource, kind webrtc.RTPCodecType) bool {
	for _, t := range src.Tracks() {
		if t.Kind() == kind && t.Enabled() {
			return true
		}
	}
	return false
}

// HangUp tears the call down. Safe to call repeatedly, concurrently, and
// when not in a call.
func (o *Orchestrator) HangUp() error {
	return o.do(func() { o.hangUp("user") })
}

func (o *Orchestrator) hangUp(reason string) {
	o.gen++
	if o.cancelJoin != nil {
		o.cancelJoin()
		o.cancelJoin = nil
	}
	wasJoining := o.joining
	o.joining = false

	conns, streams := o.roster.Reset()
	for _, c := range conns {
		c.Close()
	}
	for _, s := range streams {
		s.Close()
	}
	if o.sess.source != nil {
		o.sess.source.Stop()
	}
	if o.sess.channel != nil {
		o.sess.channel.Close()
	}
	o.history.Reset()
	o.limiter.Reset()

	wasInCall := o.sess.inCall
	o.sess = session{}
	if wasInCall || wasJoining {
		o.logger.Info().Str("reason", reason).Int("connections", len(conns)).Msg("hung up")
	}
	if wasInCall {
		o.emit(Event{Kind: EventCallEnded})
	}
}

// ToggleAudio flips every local audio track and returns the new session flag.
func (o *Orchestrator) ToggleAudio() (bool, error) {
	return o.toggle(webrtc.RTPCodecTypeAudio)
}

// ToggleVideo flips every local video track and returns the new session flag.
func (o *Orchestrator) ToggleVideo() (bool, error) {
	return o.toggle(webrtc.RTPCodecTypeVideo)
}

// toggle leaves the session flag alone when the source has no track of kind.
func (o *Orchestrator) toggle(kind webrtc.RTPCodecType) (enabled bool, err error) {
	if derr := o.do(func() {
		if !o.sess.inCall {
			err = domain.ErrNotInCall
			return
		}
		flag := &o.sess.audioEnabled
		if kind == webrtc.RTPCodecTypeVideo {
			flag = &o.sess.videoEnabled
		}
		n := 0
		for _, t := range o.sess.source.Tracks() {
			if t.Kind() == kind {
				t.SetEnabled(!t.Enabled())
				n++
			}
		}
		if n == 0 {
			enabled = *flag
			o.logger.Debug().Str("kind", kind.String()).Msg("no local track to toggle")
			return
		}
		*flag = !*flag
		enabled = *flag
		o.logger.Info().Str("kind", kind.String()).Bool("enabled", enabled).Int("tracks", n).Msg("toggled")
		if o.opts.SignalMediaState {
			o.sendMediaState()
		}
	}); derr != nil {
		return false, derr
	}
	return enabled, err
}

func (o *Orchestrator) sendMediaState() {
	env, err := protocol.MediaState(o.sess.roomID, o.sess.selfID, protocol.MediaStatePayload{
		Audio: o.sess.audioEnabled,
		Video: o.sess.videoEnabled,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("encode media state")
		return
	}
	_ = o.send(env)
}

// SendChat appends a local message and relays it, best effort. The message
// is kept even when the channel refuses it.
func (o *Orchestrator) SendChat(text string) (domain.ChatMessage, error) {
	var (
		msg domain.ChatMessage
		err error
	)
	if derr := o.do(func() {
		if !o.sess.inCall {
			err = domain.ErrNotInCall
			return
		}
		var clean string
		if clean, err = chat.Normalize(text, o.opts.Chat.MaxLen); err != nil {
			return
		}
		if !o.limiter.Allow() {
			err = domain.ErrChatRateLimited
			return
		}
		msg = chat.NewLocal(o.sess.userName, clean, o.now())
		o.history.Append(msg)
		env, eerr := chat.Outbound(o.sess.roomID, msg)
		if eerr != nil {
			o.logger.Error().Err(eerr).Msg("encode chat")
			return
		}
		_ = o.send(env)
	}); derr != nil {
		return domain.ChatMessage{}, derr
	}
	return msg, err
}

// CopyRoomLink returns the shareable link of the current room.
func (o *Orchestrator) CopyRoomLink() (string, error) {
	var (
		room domain.RoomID
		err  error
	)
	if derr := o.do(func() {
		if !o.sess.inCall {
			err = domain.ErrNotInCall
			return
		}
		room = o.sess.roomID
	}); derr != nil {
		return "", derr
	}
	if err != nil {
		return "", err
	}
	return RoomLink(o.opts.RoomLinkBase, room)
}

// RoomLink sets the roomId query parameter on base.
func RoomLink(base string, room domain.RoomID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("roomId", string(room))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// send writes env to the signaling channel. Failures are logged and
// returned, never retried.
func (o *Orchestrator) send(env protocol.Envelope) error {
	ch := o.sess.channel
	if ch == nil {
		return domain.ErrNotInCall
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		o.logger.Error().Err(err).Str("type", env.Type).Msg("encode envelope")
		return err
	}
	if err := ch.TrySend(frame); err != nil {
		o.logger.Warn().Err(err).Str("type", env.Type).Msg("signaling send failed")
		return &domain.SignalingChannelError{Op: "send " + env.Type, Err: err}
	}
	return nil
}
