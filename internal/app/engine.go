package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

var (
	ErrGroupCallUnsupported = errors.New("group calls are not supported")
	ErrCallInProgress       = errors.New("another call is in progress")
	ErrNoCallTarget         = errors.New("conversation has no call target")
)

// ConnFactory builds a media connection for one remote participant.
type ConnFactory func(remote domain.PublicID) (core.MediaConnection, error)

// Deps are the collaborators the engine drives. All of them are interfaces;
// the engine owns no transport or device resources directly.
type Deps struct {
	Self      domain.Participant
	Transport core.SignalTransport
	Media     core.MediaSource
	Sink      core.AudioSink
	UI        core.CallUI
	Ringer    core.Ringer
	Notifier  core.Notifier
	NewConn   ConnFactory
	Policy    Policy
}

// Engine is the call signaling state machine. It exclusively owns the peer
// session registry; every transition runs under one mutex, so independent
// asynchronous chains (pion callbacks, bus events, UI affordances) are
// serialized instead of racing on the session maps.
type Engine struct {
	deps Deps

	mu    sync.Mutex
	reg   *Registry
	local core.LocalMedia
	muted bool
	state domain.NegotiationState
	role  domain.CallRole
	conv  domain.ConversationID
}

func NewEngine(deps Deps) *Engine {
	deps.Policy = deps.Policy.withDefaults()
	return &Engine{deps: deps, reg: NewRegistry()}
}

// Bind subscribes the engine to the signaling events it interprets.
func (e *Engine) Bind() {
	e.deps.Transport.On(EventCallSignal, e.onCallSignal)
	e.deps.Transport.On(EventCallEnd, e.onCallEnd)
	e.deps.Transport.On(EventCallFailed, e.onCallFailed)
}

// StartCall begins an outgoing call on a direct conversation. It rejects
// group conversations and refuses to start while another call is live.
// Nothing is transmitted and no media is acquired on a rejected start.
func (e *Engine) StartCall(conv domain.Conversation, peerName, peerAvatar string) error {
	if conv.ID == "" || conv.Peer == "" {
		return ErrNoCallTarget
	}
	if !conv.Direct() {
		e.deps.Notifier.Notify("Group calls are not supported yet")
		return ErrGroupCallUnsupported
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Settled() || e.reg.Target() != "" {
		return ErrCallInProgress
	}

	if err := e.acquireLocked(); err != nil {
		return err
	}

	e.reg.SetTarget(conv.Peer)
	e.conv = conv.ID
	e.deps.UI.ShowOutgoing(peerName, peerAvatar)

	conn, err := e.connFor(conv.Peer, conv.ID)
	if err != nil {
		e.abortLocked(conv.Peer)
		return err
	}

	offer, err := conn.CreateAndSetOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("peer", string(conv.Peer)).Msg("create offer")
		e.abortLocked(conv.Peer)
		return fmt.Errorf("create offer: %w", err)
	}

	if err := e.sendSignal(conv.Peer, conv.ID, SignalOffer, offer); err != nil {
		e.abortLocked(conv.Peer)
		return err
	}

	e.state = domain.StateOfferSent
	e.role = domain.RoleCaller
	return nil
}

// Accept answers the pending offer from the given sender. If the caller
// hung up before we got here there is no offer left; the UI is restored
// without error. The pending offer is consumed either way.
func (e *Engine) Accept(from domain.PublicID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.deps.Ringer.Stop()

	po, ok := e.reg.TakeOffer(from)
	if !ok {
		log.Warn().Str("module", "app.engine").Str("peer", string(from)).Msg("accept: no pending offer")
		e.deps.UI.ShowActive()
		return nil
	}

	e.deps.UI.ShowActive()

	if err := e.acquireLocked(); err != nil {
		e.abortLocked(from)
		return err
	}

	conn, err := e.connFor(from, po.ConversationID)
	if err != nil {
		e.abortLocked(from)
		return err
	}

	e.conv = po.ConversationID

	if err := conn.ApplyOffer(po.Offer); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("peer", string(from)).Msg("set remote offer")
		e.abortLocked(from)
		return fmt.Errorf("set remote offer: %w", err)
	}

	e.drainLocked(from, conn)

	answer, err := conn.CreateAndSetAnswer()
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("peer", string(from)).Msg("create answer")
		e.abortLocked(from)
		return fmt.Errorf("create answer: %w", err)
	}

	if err := e.sendSignal(from, po.ConversationID, SignalAnswer, answer); err != nil {
		e.abortLocked(from)
		return err
	}

	e.state = domain.StateAnswerSent
	e.role = domain.RoleCallee
	return nil
}

// Reject declines the pending offer from the given sender. No connection
// was ever created for a rejected call, so only the signal and the pending
// state need cleaning up.
func (e *Engine) Reject(from domain.PublicID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.deps.Ringer.Stop()

	conv := e.conv
	if po, ok := e.reg.TakeOffer(from); ok {
		conv = po.ConversationID
	}
	if err := e.deps.Transport.Send(EventCallEnd, CallEndMessage{
		ConversationID: string(conv),
		TargetPublicID: string(from),
	}); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("send call_end")
	}
	e.deps.UI.HideAll()
	e.reg.ClearTarget()
	e.state = domain.StateIdle
	e.role = domain.RoleNone
	e.conv = ""
}

// EndCall tears down the session with target and notifies the remote side.
func (e *Engine) EndCall(target domain.PublicID, conv domain.ConversationID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked(target, conv, true)
}

// HangUp ends whatever call is currently tracked.
func (e *Engine) HangUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.reg.Target(); t != "" {
		e.teardownLocked(t, e.conv, true)
	}
}

// ToggleMute flips the local track enabled flag. Returns the new muted
// state. A no-op before the microphone is acquired.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.local == nil {
		return false
	}
	e.muted = !e.muted
	e.local.SetEnabled(!e.muted)
	log.Info().Str("module", "app.engine").Bool("muted", e.muted).Msg("mute toggled")
	return e.muted
}

// Close ends any active call and releases the microphone.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.reg.Target(); t != "" {
		e.teardownLocked(t, e.conv, true)
		return
	}
	if e.local != nil {
		e.local.Stop()
		e.local = nil
	}
}

// CallState is the derived display state the control surface reads.
type CallState struct {
	Target         string `json:"target,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Role           string `json:"role,omitempty"`
	Negotiation    string `json:"negotiation"`
	Ringing        bool   `json:"ringing"`
	Muted          bool   `json:"muted"`
}

func (e *Engine) State() CallState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CallState{
		Target:         string(e.reg.Target()),
		ConversationID: string(e.conv),
		Role:           e.role.String(),
		Negotiation:    e.state.String(),
		Ringing:        e.state == domain.StateOfferReceived,
		Muted:          e.muted,
	}
}

// acquireLocked obtains the shared microphone stream if not already held.
// The source reports acquisition failures to the user itself; the attempt
// aborts here and the next call retries.
func (e *Engine) acquireLocked() error {
	if e.local != nil {
		return nil
	}
	lm, err := e.deps.Media.Acquire()
	if err != nil {
		return fmt.Errorf("acquire local audio: %w", err)
	}
	e.local = lm
	e.muted = false
	return nil
}

// connFor returns the live connection for peer, creating and wiring one if
// none exists. Already-acquired local tracks are attached to a new
// connection before it is registered.
func (e *Engine) connFor(peer domain.PublicID, conv domain.ConversationID) (core.MediaConnection, error) {
	if conn, ok := e.reg.Conn(peer); ok {
		return conn, nil
	}

	conn, err := e.deps.NewConn(peer)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("peer", string(peer)).Msg("new peer connection")
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	// Candidates are transmitted eagerly, one per discovery event.
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if err := e.sendSignal(peer, conv, SignalICE, ci); err != nil {
			log.Error().Err(err).Str("module", "app.engine").Str("peer", string(peer)).Msg("send candidate")
		}
	})
	conn.OnTrack(func(track *webrtc.TrackRemote) {
		e.deps.Sink.Play(track)
	})
	conn.OnClosed(func() { e.onPeerClosed(peer) })

	if err := conn.Start(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start peer connection: %w", err)
	}

	if e.local != nil {
		for _, t := range e.local.Tracks() {
			if _, err := conn.AddLocalTrack(t); err != nil {
				log.Warn().Err(err).Str("module", "app.engine").Str("peer", string(peer)).Msg("add local track")
			}
		}
	}

	e.reg.BindConn(peer, conn)
	return conn, nil
}

func (e *Engine) sendSignal(to domain.PublicID, conv domain.ConversationID, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	msg := CallSignalMessage{
		ConversationID: string(conv),
		ToPublicID:     string(to),
		SignalType:     typ,
		SignalData:     data,
		FromName:       e.deps.Self.Name,
		AvatarURL:      e.deps.Self.AvatarURL,
	}
	if err := e.deps.Transport.Send(EventCallSignal, msg); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// abortLocked reverts a failed negotiation to idle without transmitting.
func (e *Engine) abortLocked(peer domain.PublicID) {
	if conn, ok := e.reg.RemoveConn(peer); ok {
		conn.Close()
	}
	e.reg.ClearCandidates(peer)
	e.reg.ClearTarget()
	e.deps.UI.HideAll()
	e.state = domain.StateIdle
	e.role = domain.RoleNone
	e.conv = ""
}

// teardownLocked is the shared end-of-call path. Remote-initiated ends pass
// notify=false so a call_end is never echoed back.
func (e *Engine) teardownLocked(target domain.PublicID, conv domain.ConversationID, notify bool) {
	if conn, ok := e.reg.RemoveConn(target); ok {
		conn.Close()
	}
	// The microphone stream is page-lifetime state shared across attempts;
	// ending any call releases it.
	if e.local != nil {
		e.local.Stop()
		e.local = nil
		e.muted = false
	}
	e.deps.Ringer.Stop()
	e.deps.UI.HideAll()
	e.reg.DeleteOffer(target)
	e.reg.ClearCandidates(target)
	e.reg.ClearTarget()
	e.state = domain.StateEnded
	e.role = domain.RoleNone
	e.conv = ""

	if notify {
		if err := e.deps.Transport.Send(EventCallEnd, CallEndMessage{
			ConversationID: string(conv),
			TargetPublicID: string(target),
		}); err != nil {
			log.Error().Err(err).Str("module", "app.engine").Msg("send call_end")
		}
	}
	log.Info().Str("module", "app.engine").Str("peer", string(target)).Bool("notified", notify).Msg("call ended")
}

// onPeerClosed runs when a connection reaches a terminal transport state on
// its own (disconnected, failed, closed). An explicit end has already
// removed the connection, making this a no-op.
func (e *Engine) onPeerClosed(peer domain.PublicID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conn, ok := e.reg.RemoveConn(peer)
	if !ok {
		return
	}
	conn.Close()
	e.reg.ClearCandidates(peer)
	e.reg.DeleteOffer(peer)
	e.deps.UI.HideAll()
	e.reg.ClearTarget()
	e.state = domain.StateEnded
	e.role = domain.RoleNone
	e.conv = ""
	log.Info().Str("module", "app.engine").Str("peer", string(peer)).Msg("peer connection lost")
}
