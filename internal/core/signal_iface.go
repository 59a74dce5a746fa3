package core

import "context"

// Frame is one text-encoded signaling envelope.
type Frame []byte

// SignalChannel abstracts an ordered, bidirectional messaging transport to the
// rendezvous server. Owned by the session; the session must Close() it.
type SignalChannel interface {
	TrySend(Frame) error
	// Incoming delivers frames in arrival order and is closed when reading stops.
	Incoming() <-chan Frame
	// Err reports why Incoming was closed. Nil after a local Close.
	Err() error
	Close()
}

// SignalDialer opens a SignalChannel. A nil error is the "opened" event.
type SignalDialer interface {
	Dial(ctx context.Context) (SignalChannel, error)
}
