package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

type sentEvent struct {
	event   string
	payload any
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentEvent
	handlers map[string]core.EventHandler
	sendErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]core.EventHandler)}
}

func (t *fakeTransport) Send(event string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, sentEvent{event: event, payload: payload})
	return nil
}

func (t *fakeTransport) On(event string, h core.EventHandler) {
	t.handlers[event] = h
}

func (t *fakeTransport) Close() {}

func (t *fakeTransport) deliver(tb testing.TB, event string, payload any) {
	tb.Helper()
	data, err := json.Marshal(payload)
	require.NoError(tb, err)
	h, ok := t.handlers[event]
	require.True(tb, ok, "no handler bound for %s", event)
	h(data)
}

func (t *fakeTransport) events() []sentEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentEvent(nil), t.sent...)
}

func (t *fakeTransport) eventsNamed(name string) []sentEvent {
	var out []sentEvent
	for _, e := range t.events() {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeConn struct {
	mu           sync.Mutex
	remoteSet    bool
	closed       bool
	applied      []webrtc.ICECandidateInit
	failFor      map[string]int
	appliedOffer webrtc.SessionDescription
	offerErr     error
	answerErr    error

	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{failFor: make(map[string]int)}
}

func (c *fakeConn) Start(_ context.Context) error { return nil }

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.failFor[cand.Candidate]; n > 0 {
		c.failFor[cand.Candidate] = n - 1
		return errors.New("candidate rejected")
	}
	c.applied = append(c.applied, cand)
	return nil
}

func (c *fakeConn) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteSet
}

func (c *fakeConn) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	if c.offerErr != nil {
		return nil, c.offerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "local-offer"}, nil
}

func (c *fakeConn) ApplyOffer(offer webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appliedOffer = offer
	c.remoteSet = true
	return nil
}

func (c *fakeConn) CreateAndSetAnswer() (*webrtc.SessionDescription, error) {
	if c.answerErr != nil {
		return nil, c.answerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "local-answer"}, nil
}

func (c *fakeConn) ApplyAnswer(_ webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteSet = true
	return nil
}

func (c *fakeConn) AddLocalTrack(_ webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return nil, nil
}

func (c *fakeConn) OnICECandidate(h func(webrtc.ICECandidateInit)) { c.onICE = h }
func (c *fakeConn) OnTrack(_ func(track *webrtc.TrackRemote))      {}
func (c *fakeConn) OnClosed(h func())                              { c.onClosed = h }

func (c *fakeConn) appliedCandidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.applied...)
}

type fakeLocalMedia struct {
	enabled bool
	stopped bool
}

func (m *fakeLocalMedia) Tracks() []webrtc.TrackLocal { return nil }
func (m *fakeLocalMedia) SetEnabled(enabled bool)     { m.enabled = enabled }
func (m *fakeLocalMedia) Stop()                       { m.stopped = true }

type fakeSource struct {
	err      error
	acquired int
	last     *fakeLocalMedia
}

func (s *fakeSource) Acquire() (core.LocalMedia, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.acquired++
	s.last = &fakeLocalMedia{enabled: true}
	return s.last, nil
}

type fakeSink struct{}

func (fakeSink) Play(_ *webrtc.TrackRemote) {}

type fakeUI struct {
	mu    sync.Mutex
	calls []string
}

func (u *fakeUI) record(s string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, s)
}

func (u *fakeUI) ShowIncoming(name, _ string) { u.record("incoming:" + name) }
func (u *fakeUI) ShowOutgoing(name, _ string) { u.record("outgoing:" + name) }
func (u *fakeUI) ShowActive()                 { u.record("active") }
func (u *fakeUI) HideAll()                    { u.record("hidden") }

func (u *fakeUI) last() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.calls) == 0 {
		return ""
	}
	return u.calls[len(u.calls)-1]
}

type fakeRinger struct {
	mu      sync.Mutex
	playing bool
	plays   int
}

func (r *fakeRinger) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = true
	r.plays++
}

func (r *fakeRinger) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playing = false
}

func (r *fakeRinger) isPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type harness struct {
	engine    *Engine
	transport *fakeTransport
	source    *fakeSource
	ui        *fakeUI
	ringer    *fakeRinger
	notifier  *fakeNotifier

	mu      sync.Mutex
	conns   map[domain.PublicID]*fakeConn
	connErr error
}

func newHarness() *harness {
	h := &harness{
		transport: newFakeTransport(),
		source:    &fakeSource{},
		ui:        &fakeUI{},
		ringer:    &fakeRinger{},
		notifier:  &fakeNotifier{},
		conns:     make(map[domain.PublicID]*fakeConn),
	}
	h.engine = NewEngine(Deps{
		Self:      domain.Participant{PublicID: "me", Name: "Me", AvatarURL: "/a/me.png"},
		Transport: h.transport,
		Media:     h.source,
		Sink:      fakeSink{},
		UI:        h.ui,
		Ringer:    h.ringer,
		Notifier:  h.notifier,
		NewConn: func(remote domain.PublicID) (core.MediaConnection, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.connErr != nil {
				return nil, h.connErr
			}
			c := newFakeConn()
			h.conns[remote] = c
			return c, nil
		},
		Policy: Policy{MaxBufferedCandidates: 4, CandidateRetryLimit: 2},
	})
	h.engine.Bind()
	return h
}

func (h *harness) conn(peer domain.PublicID) *fakeConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[peer]
}

func directConv(peer domain.PublicID) domain.Conversation {
	return domain.Conversation{ID: "conv-1", Kind: domain.KindDirect, Peer: peer}
}

func offerSignal(from, conv, sdp string) CallSignalMessage {
	data, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
	return CallSignalMessage{
		ConversationID: conv,
		FromPublicID:   from,
		SignalType:     SignalOffer,
		SignalData:     data,
		FromName:       "Alice",
		AvatarURL:      "/a/alice.png",
	}
}

func answerSignal(from, conv string) CallSignalMessage {
	data, _ := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "remote-answer"})
	return CallSignalMessage{
		ConversationID: conv,
		FromPublicID:   from,
		SignalType:     SignalAnswer,
		SignalData:     data,
	}
}

func iceSignal(from, conv, candidate string) CallSignalMessage {
	data, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: candidate})
	return CallSignalMessage{
		ConversationID: conv,
		FromPublicID:   from,
		SignalType:     SignalICE,
		SignalData:     data,
	}
}

func TestStartCallSendsOffer(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", "/a/bob.png"))

	st := h.engine.State()
	assert.Equal(t, "bob", st.Target)
	assert.Equal(t, "caller", st.Role)
	assert.Equal(t, "offer-sent", st.Negotiation)
	assert.Equal(t, 1, h.source.acquired)
	assert.Equal(t, "outgoing:Bob", h.ui.last())

	sent := h.transport.eventsNamed(EventCallSignal)
	require.Len(t, sent, 1)
	msg := sent[0].payload.(CallSignalMessage)
	assert.Equal(t, SignalOffer, msg.SignalType)
	assert.Equal(t, "bob", msg.ToPublicID)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, "Me", msg.FromName)
}

func TestStartCallRejectsGroupConversation(t *testing.T) {
	h := newHarness()

	conv := domain.Conversation{ID: "conv-g", Kind: domain.KindGroup, Peer: "bob"}
	err := h.engine.StartCall(conv, "Bob", "")

	require.ErrorIs(t, err, ErrGroupCallUnsupported)
	assert.Zero(t, h.source.acquired, "no media may be acquired for a rejected start")
	assert.Empty(t, h.transport.events(), "nothing may be transmitted for a rejected start")
	assert.Equal(t, []string{"Group calls are not supported yet"}, h.notifier.all())
	assert.Equal(t, "idle", h.engine.State().Negotiation)
}

func TestStartCallWhileBusy(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	err := h.engine.StartCall(domain.Conversation{ID: "conv-2", Kind: domain.KindDirect, Peer: "carol"}, "Carol", "")

	require.ErrorIs(t, err, ErrCallInProgress)
	assert.Equal(t, "bob", h.engine.State().Target)
}

func TestStartCallWithoutTarget(t *testing.T) {
	h := newHarness()

	err := h.engine.StartCall(domain.Conversation{ID: "conv-1", Kind: domain.KindDirect}, "", "")
	require.ErrorIs(t, err, ErrNoCallTarget)
}

func TestStartCallMediaFailure(t *testing.T) {
	h := newHarness()
	h.source.err = errors.New("mic busy")

	err := h.engine.StartCall(directConv("bob"), "Bob", "")

	require.Error(t, err)
	assert.Empty(t, h.transport.events())
	assert.Equal(t, "idle", h.engine.State().Negotiation)

	// A later attempt starts clean.
	h.source.err = nil
	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
}

func TestStartCallConnectionFailureAborts(t *testing.T) {
	h := newHarness()

	h.mu.Lock()
	h.connErr = errors.New("no codecs")
	h.mu.Unlock()

	err := h.engine.StartCall(directConv("bob"), "Bob", "")
	require.Error(t, err)
	assert.Empty(t, h.transport.events(), "a failed offer must not be transmitted")
	assert.Equal(t, "idle", h.engine.State().Negotiation)
	assert.Empty(t, h.engine.State().Target)

	h.mu.Lock()
	h.connErr = nil
	h.mu.Unlock()
	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
}

func TestStartCallOfferFailureDoesNotTransmit(t *testing.T) {
	h := newHarness()
	conn := newFakeConn()
	conn.offerErr = errors.New("sdp failure")
	h.engine.reg.BindConn("bob", conn)

	err := h.engine.StartCall(directConv("bob"), "Bob", "")

	require.Error(t, err)
	assert.Empty(t, h.transport.events(), "a failed offer must not be transmitted")
	assert.True(t, conn.IsClosed())
	assert.Equal(t, "idle", h.engine.State().Negotiation)
}

func TestIncomingOfferRingsThenAccept(t *testing.T) {
	h := newHarness()

	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "remote-offer"))

	st := h.engine.State()
	assert.True(t, st.Ringing)
	assert.Equal(t, "alice", st.Target)
	assert.True(t, h.ringer.isPlaying())
	assert.Equal(t, "incoming:Alice", h.ui.last())

	require.NoError(t, h.engine.Accept("alice"))

	assert.False(t, h.ringer.isPlaying())
	assert.Equal(t, 1, h.source.acquired)
	conn := h.conn("alice")
	require.NotNil(t, conn)
	assert.Equal(t, "remote-offer", conn.appliedOffer.SDP)

	sent := h.transport.eventsNamed(EventCallSignal)
	require.Len(t, sent, 1)
	msg := sent[0].payload.(CallSignalMessage)
	assert.Equal(t, SignalAnswer, msg.SignalType)
	assert.Equal(t, "alice", msg.ToPublicID)
	assert.Equal(t, "conv-9", msg.ConversationID)
	assert.Equal(t, "answer-sent", h.engine.State().Negotiation)
}

func TestAcceptWithoutPendingOffer(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.Accept("alice"))

	assert.Equal(t, "active", h.ui.last())
	assert.Empty(t, h.transport.events())
	assert.Zero(t, h.source.acquired)
}

func TestSecondOfferReplacesFirst(t *testing.T) {
	h := newHarness()

	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "offer-one"))
	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "offer-two"))

	require.NoError(t, h.engine.Accept("alice"))

	conn := h.conn("alice")
	require.NotNil(t, conn)
	assert.Equal(t, "offer-two", conn.appliedOffer.SDP, "the newer offer wins")
}

func TestMalformedOfferDropped(t *testing.T) {
	h := newHarness()

	msg := offerSignal("alice", "conv-9", "")
	h.transport.deliver(t, EventCallSignal, msg)

	assert.Equal(t, "idle", h.engine.State().Negotiation)
	assert.False(t, h.ringer.isPlaying())
}

func TestUnknownSignalTypeIgnored(t *testing.T) {
	h := newHarness()

	h.transport.deliver(t, EventCallSignal, CallSignalMessage{
		ConversationID: "conv-1",
		FromPublicID:   "alice",
		SignalType:     "renegotiate",
		SignalData:     json.RawMessage(`{}`),
	})

	assert.Equal(t, "idle", h.engine.State().Negotiation)
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	h := newHarness()

	// Trickled candidates race ahead of the offer.
	for i := 1; i <= 3; i++ {
		h.transport.deliver(t, EventCallSignal, iceSignal("alice", "conv-9", fmt.Sprintf("cand-%d", i)))
	}
	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "remote-offer"))
	require.NoError(t, h.engine.Accept("alice"))

	conn := h.conn("alice")
	require.NotNil(t, conn)
	got := conn.appliedCandidates()
	require.Len(t, got, 3)
	for i, cand := range got {
		assert.Equal(t, fmt.Sprintf("cand-%d", i+1), cand.Candidate, "arrival order preserved")
	}
}

func TestCandidateBufferCapacity(t *testing.T) {
	h := newHarness()

	for i := 1; i <= 6; i++ {
		h.transport.deliver(t, EventCallSignal, iceSignal("alice", "conv-9", fmt.Sprintf("cand-%d", i)))
	}
	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "remote-offer"))
	require.NoError(t, h.engine.Accept("alice"))

	conn := h.conn("alice")
	require.NotNil(t, conn)
	assert.Len(t, conn.appliedCandidates(), 4, "overflow candidates are dropped at the cap")
}

func TestCandidateDroppedAfterRetryLimit(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	conn := h.conn("bob")
	require.NotNil(t, conn)
	conn.failFor["cand-bad"] = 10

	// Arrives before the answer, so it is buffered.
	h.transport.deliver(t, EventCallSignal, iceSignal("bob", "conv-1", "cand-bad"))

	// First drain fails and requeues, second drain exhausts the retry limit.
	h.transport.deliver(t, EventCallSignal, answerSignal("bob", "conv-1"))
	h.transport.deliver(t, EventCallSignal, answerSignal("bob", "conv-1"))

	assert.Empty(t, conn.appliedCandidates())
	assert.Empty(t, h.engine.reg.DrainCandidates("bob"), "exhausted candidate must not linger")
}

func TestCandidateAppliedDirectlyAfterRemoteDescription(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallSignal, answerSignal("bob", "conv-1"))
	h.transport.deliver(t, EventCallSignal, iceSignal("bob", "conv-1", "cand-late"))

	conn := h.conn("bob")
	require.NotNil(t, conn)
	got := conn.appliedCandidates()
	require.Len(t, got, 1)
	assert.Equal(t, "cand-late", got[0].Candidate)
	assert.Equal(t, "answer-received", h.engine.State().Negotiation)
}

func TestAnswerWithoutConnectionDropped(t *testing.T) {
	h := newHarness()

	h.transport.deliver(t, EventCallSignal, answerSignal("stranger", "conv-x"))

	assert.Equal(t, "idle", h.engine.State().Negotiation)
	assert.Nil(t, h.conn("stranger"))
}

func TestRejectSendsCallEnd(t *testing.T) {
	h := newHarness()

	h.transport.deliver(t, EventCallSignal, offerSignal("alice", "conv-9", "remote-offer"))
	h.engine.Reject("alice")

	assert.False(t, h.ringer.isPlaying())
	assert.Zero(t, h.source.acquired, "a rejected call never touches the microphone")

	ends := h.transport.eventsNamed(EventCallEnd)
	require.Len(t, ends, 1)
	msg := ends[0].payload.(CallEndMessage)
	assert.Equal(t, "alice", msg.TargetPublicID)
	assert.Equal(t, "conv-9", msg.ConversationID)
	assert.Equal(t, "idle", h.engine.State().Negotiation)
}

func TestHangUpSendsCallEndOnce(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	conn := h.conn("bob")

	h.engine.HangUp()
	h.engine.HangUp()

	ends := h.transport.eventsNamed(EventCallEnd)
	require.Len(t, ends, 1)
	assert.True(t, conn.IsClosed())
	assert.True(t, h.source.last.stopped)
	assert.Empty(t, h.engine.State().Target)
	assert.Equal(t, "ended", h.engine.State().Negotiation)
}

func TestRemoteEndTearsDownWithoutEcho(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallSignal, answerSignal("bob", "conv-1"))
	conn := h.conn("bob")

	h.transport.deliver(t, EventCallEnd, CallEndMessage{ConversationID: "conv-1", FromPublicID: "bob"})

	assert.True(t, conn.IsClosed())
	assert.True(t, h.source.last.stopped)
	assert.Empty(t, h.transport.eventsNamed(EventCallEnd), "remote end must not be echoed")
	assert.Equal(t, "ended", h.engine.State().Negotiation)
	assert.Equal(t, "hidden", h.ui.last())
}

func TestCallFailedUserOffline(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallFailed, CallFailedMessage{
		Reason:         ReasonUserOffline,
		TargetName:     "Bob",
		ConversationID: "conv-1",
	})

	require.Len(t, h.notifier.all(), 1)
	assert.Equal(t,
		"Bob is currently offline. They will receive a notification about your call.",
		h.notifier.all()[0])
	assert.Equal(t, "ended", h.engine.State().Negotiation)
	assert.Empty(t, h.engine.State().Target)
}

func TestCallFailedOtherReason(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallFailed, CallFailedMessage{
		Reason:         "rate_limited",
		TargetName:     "Bob",
		ConversationID: "conv-1",
	})

	require.Len(t, h.notifier.all(), 1)
	assert.Equal(t, "Call failed: rate_limited", h.notifier.all()[0])
}

func TestToggleMute(t *testing.T) {
	h := newHarness()

	assert.False(t, h.engine.ToggleMute(), "no-op before the microphone is acquired")

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	assert.True(t, h.engine.ToggleMute())
	assert.False(t, h.source.last.enabled)
	assert.False(t, h.engine.ToggleMute())
	assert.True(t, h.source.last.enabled)
}

func TestMuteResetsOnTeardown(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	require.True(t, h.engine.ToggleMute())
	h.engine.HangUp()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	assert.False(t, h.engine.State().Muted)
}

func TestPeerConnectionLostTearsDownOnce(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	conn := h.conn("bob")
	require.NotNil(t, conn.onClosed)

	conn.onClosed()
	conn.onClosed()

	assert.True(t, conn.IsClosed())
	assert.Empty(t, h.transport.eventsNamed(EventCallEnd), "a transport loss is not an explicit hang up")
	assert.Equal(t, "ended", h.engine.State().Negotiation)
}

func TestCallerFullHandshake(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallSignal, iceSignal("bob", "conv-1", "cand-early"))
	h.transport.deliver(t, EventCallSignal, answerSignal("bob", "conv-1"))

	conn := h.conn("bob")
	got := conn.appliedCandidates()
	require.Len(t, got, 1)
	assert.Equal(t, "cand-early", got[0].Candidate)
	assert.Equal(t, "answer-received", h.engine.State().Negotiation)

	// Local candidates trickle out through the wired callback.
	require.NotNil(t, conn.onICE)
	conn.onICE(webrtc.ICECandidateInit{Candidate: "local-cand"})
	signals := h.transport.eventsNamed(EventCallSignal)
	last := signals[len(signals)-1].payload.(CallSignalMessage)
	assert.Equal(t, SignalICE, last.SignalType)

	h.engine.HangUp()
	require.Len(t, h.transport.eventsNamed(EventCallEnd), 1)
}

func TestCloseAfterRemoteEndSendsNothing(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.engine.StartCall(directConv("bob"), "Bob", ""))
	h.transport.deliver(t, EventCallEnd, CallEndMessage{ConversationID: "conv-1", FromPublicID: "bob"})

	h.engine.Close()
	assert.Empty(t, h.transport.eventsNamed(EventCallEnd))
}
