package app

import "encoding/json"

// Bus event names shared with the relay server.
const (
	EventCallSignal = "call_signal"
	EventCallEnd    = "call_end"
	EventCallFailed = "call_failed"
)

// signal_type values carried inside a call_signal event.
const (
	SignalOffer  = "offer"
	SignalAnswer = "answer"
	SignalICE    = "ice"
)

// ReasonUserOffline is the only call_failed reason the relay emits today.
const ReasonUserOffline = "user_offline"

// CallSignalMessage carries one negotiation step. SignalData is an opaque
// blob: an SDP description for offer/answer, a candidate for ice.
// The relay rewrites to_public_id into from_public_id on delivery.
type CallSignalMessage struct {
	ConversationID string          `json:"conversation_id"`
	ToPublicID     string          `json:"to_public_id,omitempty"`
	FromPublicID   string          `json:"from_public_id,omitempty"`
	SignalType     string          `json:"signal_type"`
	SignalData     json.RawMessage `json:"signal_data"`
	FromName       string          `json:"from_name,omitempty"`
	AvatarURL      string          `json:"avatar_url,omitempty"`
}

type CallEndMessage struct {
	ConversationID string `json:"conversation_id"`
	TargetPublicID string `json:"target_public_id,omitempty"`
	FromPublicID   string `json:"from_public_id,omitempty"`
}

type CallFailedMessage struct {
	Reason         string `json:"reason"`
	TargetName     string `json:"target_name"`
	ConversationID string `json:"conversation_id"`
}
