package app

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

// PendingOffer is a received offer not yet accepted by the local user.
// At most one per remote participant; a newer offer overwrites it.
type PendingOffer struct {
	Offer          webrtc.SessionDescription
	ConversationID domain.ConversationID
	FromName       string
	AvatarURL      string
}

// BufferedCandidate is a remote candidate waiting until the connection and
// its remote description exist.
type BufferedCandidate struct {
	Cand     webrtc.ICECandidateInit
	Attempts int
}

// Registry owns the live peer connections and their pending negotiation
// state, keyed by remote participant. It is only ever touched through the
// engine's transition methods.
type Registry struct {
	mu      sync.RWMutex
	conns   map[domain.PublicID]core.MediaConnection
	offers  map[domain.PublicID]PendingOffer
	pending map[domain.PublicID][]BufferedCandidate
	target  domain.PublicID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[domain.PublicID]core.MediaConnection),
		offers:  make(map[domain.PublicID]PendingOffer),
		pending: make(map[domain.PublicID][]BufferedCandidate),
	}
}

// BindConn registers conn for peer. At most one connection per remote
// participant: a previous one for the same key is closed first.
func (r *Registry) BindConn(peer domain.PublicID, conn core.MediaConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[peer]; ok && old != conn {
		old.Close()
	}
	r.conns[peer] = conn
	log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("bound connection")
}

func (r *Registry) Conn(peer domain.PublicID) (core.MediaConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[peer]
	return conn, ok
}

// RemoveConn unregisters and returns the connection for peer, if any.
// The caller owns closing it.
func (r *Registry) RemoveConn(peer domain.PublicID) (core.MediaConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[peer]
	if ok {
		delete(r.conns, peer)
		log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("removed connection")
	}
	return conn, ok
}

// PutOffer stores a pending offer, silently replacing an earlier one from
// the same sender (last writer wins, no queueing).
func (r *Registry) PutOffer(peer domain.PublicID, po PendingOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[peer]; ok {
		log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("pending offer replaced")
	}
	r.offers[peer] = po
}

// TakeOffer consumes the pending offer for peer.
func (r *Registry) TakeOffer(peer domain.PublicID) (PendingOffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.offers[peer]
	if ok {
		delete(r.offers, peer)
	}
	return po, ok
}

func (r *Registry) DeleteOffer(peer domain.PublicID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.offers, peer)
}

// BufferCandidate appends a candidate to peer's buffer. Returns false when
// the buffer is already at capacity and the candidate was dropped.
func (r *Registry) BufferCandidate(peer domain.PublicID, cand webrtc.ICECandidateInit, attempts, max int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending[peer]) >= max {
		return false
	}
	r.pending[peer] = append(r.pending[peer], BufferedCandidate{Cand: cand, Attempts: attempts})
	return true
}

// RequeueCandidate puts a candidate back after a failed application during
// a drain. No capacity check: it already held a slot.
func (r *Registry) RequeueCandidate(peer domain.PublicID, bc BufferedCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[peer] = append(r.pending[peer], bc)
}

// DrainCandidates empties and returns peer's buffer in arrival order.
func (r *Registry) DrainCandidates(peer domain.PublicID) []BufferedCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending[peer]
	delete(r.pending, peer)
	return out
}

func (r *Registry) ClearCandidates(peer domain.PublicID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, peer)
}

func (r *Registry) SetTarget(peer domain.PublicID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = peer
}

func (r *Registry) Target() domain.PublicID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

func (r *Registry) ClearTarget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = ""
}
