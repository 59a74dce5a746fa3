package app

import (
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
)

// GlareAction says what to do with a remote offer that arrives while our own
// offer to the same participant is still unanswered.
type GlareAction int

const (
	// AcceptOnExisting applies the remote offer to the existing connection.
	AcceptOnExisting GlareAction = iota
	// YieldToRemote drops our offer and answers theirs on a fresh connection.
	YieldToRemote
	// KeepLocal ignores the remote offer and waits for our answer.
	KeepLocal
)

func (a GlareAction) String() string {
	switch a {
	case AcceptOnExisting:
		return "accept"
	case YieldToRemote:
		return "yield"
	case KeepLocal:
		return "keep"
	}
	return "unknown"
}

type GlarePolicy interface {
	OnGlare(self, remote domain.ParticipantID) GlareAction
}

// AcceptPolicy keeps the plain behaviour: no tie-break.
type AcceptPolicy struct{}

func (AcceptPolicy) OnGlare(_, _ domain.ParticipantID) GlareAction {
	return AcceptOnExisting
}

// PolitePolicy makes the side with the lower id polite. Both sides compute
// the same ordering, so exactly one of them yields.
type PolitePolicy struct{}

func (PolitePolicy) OnGlare(self, remote domain.ParticipantID) GlareAction {
	if self < remote {
		return YieldToRemote
	}
	return KeepLocal
}

// PolicyByName maps the glare_policy config value.
func PolicyByName(name string) (GlarePolicy, error) {
	switch name {
	case "", "polite":
		return PolitePolicy{}, nil
	case "accept":
		return AcceptPolicy{}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGlareMode, name)
}
