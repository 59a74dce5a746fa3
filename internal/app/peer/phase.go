package peer

type Phase int

const (
	// PhaseNegotiating is the initial phase: offer or answer in flight.
	PhaseNegotiating Phase = iota
	// PhaseConnected means a remote description is set and media arrived.
	PhaseConnected
	// PhaseFailed means a negotiation step or the transport failed.
	PhaseFailed
	// PhaseClosed is terminal.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNegotiating:
		return "negotiating"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// canMove reports whether from -> to is a legal transition.
func canMove(from, to Phase) bool {
	switch from {
	case PhaseNegotiating:
		return to != PhaseNegotiating
	case PhaseConnected:
		return to == PhaseFailed || to == PhaseClosed
	case PhaseFailed:
		return to == PhaseClosed
	}
	return false
}

type Role int

const (
	RoleAnswerer Role = iota
	RoleOfferer
)

func (r Role) String() string {
	if r == RoleOfferer {
		return "offerer"
	}
	return "answerer"
}
