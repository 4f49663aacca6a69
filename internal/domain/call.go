package domain

type CallRole int

const (
	RoleNone CallRole = iota
	RoleCaller
	RoleCallee
)

func (r CallRole) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return ""
	}
}

// NegotiationState tracks where the offer/answer exchange stands for the
// current call. Teardown lands in StateEnded; a rejected or aborted start
// returns to StateIdle. Both settle the machine for the next call.
type NegotiationState int

const (
	StateIdle NegotiationState = iota
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateAnswerReceived
	StateConnected
	StateEnded
)

func (s NegotiationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateAnswerReceived:
		return "answer-received"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Settled reports whether a new outgoing call may be started.
func (s NegotiationState) Settled() bool {
	return s == StateIdle || s == StateEnded
}
