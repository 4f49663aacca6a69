package core

import "encoding/json"

// EventHandler consumes the payload of one inbound bus event.
type EventHandler func(data json.RawMessage)

// SignalTransport abstracts the bidirectional event bus relaying signaling
// between two participants. Owned by the adapter; the adapter must Close() it.
type SignalTransport interface {
	Send(event string, payload any) error
	On(event string, h EventHandler)
	Close()
}
