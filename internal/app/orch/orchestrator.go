// Package orch is the session orchestrator: the single writer of session,
// roster, chat and connection state.
package orch

import (
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/chat"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultEventBuffer = 64

// Deps are the external collaborators. Sink may be nil.
type Deps struct {
	Dialer     core.SignalDialer
	Media      core.MediaProvider
	Transports core.TransportFactory
	Policy     app.GlarePolicy
	Sink       core.RTPSink
}

type Options struct {
	RoomLinkBase string
	// NegotiationRetries bounds fresh offers after a failed one. Zero disables retries.
	NegotiationRetries int
	SignalMediaState   bool
	Chat               chat.Config
	EventBuffer        int
}

// session is the per-call state. Zero value means idle.
type session struct {
	roomID       domain.RoomID
	userName     string
	selfID       domain.ParticipantID
	inCall       bool
	audioEnabled bool
	videoEnabled bool
	signalLost   bool
	source       core.MediaSource
	channel      core.SignalChannel
}

// SessionView is a copy of the session for rendering layers.
type SessionView struct {
	RoomID       domain.RoomID        `json:"roomId,omitempty"`
	UserName     string               `json:"userName,omitempty"`
	SelfID       domain.ParticipantID `json:"selfId,omitempty"`
	InCall       bool                 `json:"inCall"`
	Joining      bool                 `json:"joining"`
	AudioEnabled bool                 `json:"audioEnabled"`
	VideoEnabled bool                 `json:"videoEnabled"`
	SignalLost   bool                 `json:"signalLost"`
}

type Orchestrator struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	inbox     inbox
	done      chan struct{}
	events    chan Event
	closeOnce sync.Once

	// Everything below is owned by the loop goroutine.
	sess       session
	roster     *app.Roster
	history    chat.History
	limiter    *chat.RateLimiter
	gen        uint64
	joining    bool
	cancelJoin func()
	stopped    bool
}

// New starts the loop. Call Close to hang up and stop it.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Policy == nil {
		deps.Policy = app.PolitePolicy{}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	o := &Orchestrator{
		deps:    deps,
		opts:    opts,
		logger:  log.With().Str("module", "orch").Logger(),
		now:     time.Now,
		inbox:   inbox{wake: make(chan struct{}, 1)},
		done:    make(chan struct{}),
		events:  make(chan Event, opts.EventBuffer),
		roster:  app.NewRoster(),
		limiter: chat.NewRateLimiter(opts.Chat.RateLimit, opts.Chat.RateInterval),
	}
	go o.run()
	return o
}

func (o *Orchestrator) run() {
	defer func() {
		close(o.done)
		close(o.events)
		o.logger.Info().Msg("loop stopped")
	}()
	for range o.inbox.wake {
		for op := o.inbox.pop(); op != nil; op = o.inbox.pop() {
			op()
			if o.stopped {
				return
			}
		}
	}
}

// post queues fn for the loop without waiting. It reports false once the
// loop has stopped.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	o.inbox.push(fn)
	return true
}

// do runs fn on the loop and waits for it.
func (o *Orchestrator) do(fn func()) error {
	ran := make(chan struct{})
	if !o.post(func() { fn(); close(ran) }) {
		return domain.ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-o.done:
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrClosed
		}
	}
}

// Close hangs up and stops the loop. Safe to call more than once and
// concurrently with HangUp.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		_ = o.do(func() {
			o.hangUp("close")
			o.stopped = true
		})
		<-o.done
	})
}

// Events delivers notifications until Close. Events are dropped when the
// consumer lags behind.
func (o *Orchestrator) Events() <-chan Event { return o.events }

func (o *Orchestrator) Session() SessionView {
	var v SessionView
	_ = o.do(func() {
		v = SessionView{
			RoomID:       o.sess.roomID,
			UserName:     o.sess.userName,
			SelfID:       o.sess.selfID,
			InCall:       o.sess.inCall,
			Joining:      o.joining,
			AudioEnabled: o.sess.audioEnabled,
			VideoEnabled: o.sess.videoEnabled,
			SignalLost:   o.sess.signalLost,
		}
	})
	return v
}

func (o *Orchestrator) Participants() []app.ParticipantView {
	var out []app.ParticipantView
	_ = o.do(func() { out = o.roster.Snapshot() })
	return out
}

func (o *Orchestrator) Chat() []domain.ChatMessage {
	var out []domain.ChatMessage
	_ = o.do(func() { out = o.history.Messages() })
	return out
}

// inbox is an unbounded FIFO so transport callbacks never block on the loop.
type inbox struct {
	mu   sync.Mutex
	ops  []func()
	wake chan struct{}
}

func (q *inbox) push(op func()) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *inbox) pop() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return nil
	}
	op := q.ops[0]
	q.ops[0] = nil
	q.ops = q.ops[1:]
	return op
}
