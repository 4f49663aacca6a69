package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// HasRemoteDescription reports whether the remote SDP has been applied.
	// Candidates must be buffered until it returns true.
	HasRemoteDescription() bool
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	ApplyOffer(webrtc.SessionDescription) error
	CreateAndSetAnswer() (*webrtc.SessionDescription, error)
	ApplyAnswer(webrtc.SessionDescription) error
	// AddLocalTrack attaches a local track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(track *webrtc.TrackRemote))
	// OnClosed sets a callback for cleanup when the connection reaches a terminal state.
	OnClosed(func())
}

// LocalMedia is the acquired microphone stream. It is page-lifetime state
// shared across call attempts and stopped only on explicit call end.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	SetEnabled(bool)
	Stop()
}

// MediaSource lazily acquires the local audio input device.
// Acquire is idempotent: it returns the existing stream while one is live,
// and retries acquisition after a failure or a Stop.
type MediaSource interface {
	Acquire() (LocalMedia, error)
}

// AudioSink renders one remote audio track at a time.
// Each Play replaces whatever was playing before.
type AudioSink interface {
	Play(track *webrtc.TrackRemote)
}
