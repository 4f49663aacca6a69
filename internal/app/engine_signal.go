package app

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

func (e *Engine) onCallSignal(data json.RawMessage) {
	var msg CallSignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("bad call_signal payload")
		return
	}
	from := domain.PublicID(msg.FromPublicID)
	conv := domain.ConversationID(msg.ConversationID)

	switch msg.SignalType {
	case SignalOffer:
		e.handleOffer(from, conv, msg)
	case SignalAnswer:
		e.handleAnswer(from, msg)
	case SignalICE:
		e.handleCandidate(from, msg)
	default:
		log.Warn().Str("module", "app.engine").Str("signal_type", msg.SignalType).Msg("unknown signal type")
	}
}

func (e *Engine) handleOffer(from domain.PublicID, conv domain.ConversationID, msg CallSignalMessage) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(msg.SignalData, &offer); err != nil || offer.SDP == "" {
		log.Warn().Str("module", "app.engine").Str("peer", string(from)).Msg("malformed offer dropped")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Last writer wins: a newer offer from the same sender silently
	// replaces the one still ringing.
	e.reg.PutOffer(from, PendingOffer{
		Offer:          offer,
		ConversationID: conv,
		FromName:       msg.FromName,
		AvatarURL:      msg.AvatarURL,
	})
	e.reg.SetTarget(from)
	e.conv = conv
	e.state = domain.StateOfferReceived
	e.role = domain.RoleCallee
	e.deps.UI.ShowIncoming(msg.FromName, msg.AvatarURL)
	e.deps.Ringer.Play()
}

func (e *Engine) handleAnswer(from domain.PublicID, msg CallSignalMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// No resurrection of dead sessions: an answer without a matching
	// connection is logged and dropped.
	conn, ok := e.reg.Conn(from)
	if !ok {
		log.Warn().Str("module", "app.engine").Str("peer", string(from)).Msg("answer without connection dropped")
		return
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(msg.SignalData, &answer); err != nil || answer.SDP == "" {
		log.Warn().Str("module", "app.engine").Str("peer", string(from)).Msg("malformed answer dropped")
		return
	}

	if err := conn.ApplyAnswer(answer); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("peer", string(from)).Msg("set remote answer")
		return
	}
	e.state = domain.StateAnswerReceived
	e.drainLocked(from, conn)
}

func (e *Engine) handleCandidate(from domain.PublicID, msg CallSignalMessage) {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.SignalData, &cand); err != nil || cand.Candidate == "" {
		log.Debug().Str("module", "app.engine").Str("peer", string(from)).Msg("empty ICE candidate ignored")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.reg.Conn(from)
	if !ok || !conn.HasRemoteDescription() {
		e.bufferLocked(from, cand, 0)
		return
	}
	if err := conn.AddICECandidate(cand); err != nil {
		// Defer and retry once the descriptions settle rather than dropping.
		e.bufferLocked(from, cand, 1)
	}
}

func (e *Engine) bufferLocked(from domain.PublicID, cand webrtc.ICECandidateInit, attempts int) {
	if !e.reg.BufferCandidate(from, cand, attempts, e.deps.Policy.MaxBufferedCandidates) {
		log.Warn().Str("module", "app.engine").Str("peer", string(from)).Msg("candidate buffer full, dropping")
	}
}

// drainLocked applies buffered candidates in arrival order. Individual
// failures never abort the call: a failing candidate is re-buffered until
// it exceeds CandidateRetryLimit attempts, then dropped.
func (e *Engine) drainLocked(from domain.PublicID, conn core.MediaConnection) {
	for _, bc := range e.reg.DrainCandidates(from) {
		if err := conn.AddICECandidate(bc.Cand); err != nil {
			bc.Attempts++
			if bc.Attempts >= e.deps.Policy.CandidateRetryLimit {
				log.Warn().Err(err).Str("module", "app.engine").Str("peer", string(from)).Msg("candidate dropped after retries")
				continue
			}
			e.reg.RequeueCandidate(from, bc)
		}
	}
}

func (e *Engine) onCallEnd(data json.RawMessage) {
	var msg CallEndMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("bad call_end payload")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Remote already ended; tearing down without re-transmitting prevents echo.
	e.teardownLocked(domain.PublicID(msg.FromPublicID), domain.ConversationID(msg.ConversationID), false)
}

func (e *Engine) onCallFailed(data json.RawMessage) {
	var msg CallFailedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("bad call_failed payload")
		return
	}

	if msg.Reason == ReasonUserOffline {
		e.deps.Notifier.Notify(fmt.Sprintf(
			"%s is currently offline. They will receive a notification about your call.",
			msg.TargetName,
		))
	} else {
		e.deps.Notifier.Notify(fmt.Sprintf("Call failed: %s", msg.Reason))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.reg.Target(); t != "" {
		e.teardownLocked(t, domain.ConversationID(msg.ConversationID), true)
	}
}
