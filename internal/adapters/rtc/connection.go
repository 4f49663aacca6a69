// Package rtc wraps pion/webrtc peer connections for one-to-one audio calls.
package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/domain"
)

// Config builds a STUN-only ICE configuration. Calls that would need a
// relay simply fail to connect.
func Config(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
	servers := make([]webrtc.ICEServer, 0, len(stunURLs))
	for _, u := range stunURLs {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// NewAPI builds the shared webrtc API. populate registers the codecs the
// capture pipeline encodes; with none given the pion defaults apply.
func NewAPI(populate func(*webrtc.MediaEngine)) (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if populate != nil {
		populate(me)
	} else if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithInterceptorRegistry(ir)), nil
}

// Connection owns one PeerConnection to a single remote participant.
type Connection struct {
	pc     *webrtc.PeerConnection
	peer   domain.PublicID
	cancel context.CancelFunc
	closed atomic.Bool

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(track *webrtc.TrackRemote)
	onClosed func()
}

func NewConnection(api *webrtc.API, cfg webrtc.Configuration, peer domain.PublicID) (*Connection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{pc: pc, peer: peer}, nil
}

func (c *Connection) OnICECandidate(h func(webrtc.ICECandidateInit)) { c.onICE = h }

func (c *Connection) OnTrack(h func(track *webrtc.TrackRemote)) { c.onTrack = h }

func (c *Connection) OnClosed(h func()) { c.onClosed = h }

// Start wires the pion callbacks. The handlers must be set before Start;
// pion invokes them from its own goroutines.
func (c *Connection) Start(ctx context.Context) error {
	_, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(c.peer)).
			Str("ice_state", s.String()).Msg("ICE connection state changed")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(c.peer)).
			Str("state", s.String()).Msg("peer connection state changed")
		switch s {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			cancel()
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering, nothing to transmit for it.
		if cand == nil || c.onICE == nil {
			return
		}
		c.onICE(cand.ToJSON())
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("module", "rtc").Str("peer", string(c.peer)).
			Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
		if c.onTrack != nil {
			c.onTrack(track)
		}
	})

	return nil
}

// CreateAndSetOffer produces the local offer. Gathering is not awaited:
// candidates trickle out through OnICECandidate as they are discovered.
func (c *Connection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyOffer(offer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(offer)
}

func (c *Connection) CreateAndSetAnswer() (*webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *Connection) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *Connection) AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

// Close is idempotent. It never invokes the OnClosed handler itself; that
// only fires from a terminal transport state change.
func (c *Connection) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.peer)).Msg("close peer connection")
		return
	}
	log.Info().Str("module", "rtc").Str("peer", string(c.peer)).Msg("peer connection closed")
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}
