package domain

type (
	ConversationID   string
	ConversationKind string
)

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation is the messaging thread a call is associated with.
// Peer is only meaningful for direct conversations.
type Conversation struct {
	ID   ConversationID
	Kind ConversationKind
	Peer PublicID
}

// Direct reports whether this is a one-to-one conversation.
func (c Conversation) Direct() bool { return c.Kind == KindDirect }

// ParseKind normalizes the kind strings the host page uses.
// "dm" is a legacy alias for direct.
func ParseKind(s string) ConversationKind {
	switch s {
	case "dm", "direct":
		return KindDirect
	default:
		return KindGroup
	}
}
