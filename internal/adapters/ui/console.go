// Package ui renders call affordances to the terminal. The production
// surface is the chat page itself; this binder keeps the engine observable
// when running headless.
package ui

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Console struct{}

func NewConsole() *Console {
	return &Console{}
}

func (c *Console) ShowIncoming(name, avatarURL string) {
	log.Info().Str("module", "ui").Str("from", name).Str("avatar", avatarURL).Msg("incoming call")
}

func (c *Console) ShowOutgoing(name, avatarURL string) {
	log.Info().Str("module", "ui").Str("to", name).Str("avatar", avatarURL).Msg("calling")
}

func (c *Console) ShowActive() {
	log.Info().Str("module", "ui").Msg("call active")
}

func (c *Console) HideAll() {
	log.Info().Str("module", "ui").Msg("call ui hidden")
}

// Notify surfaces a user-facing alert.
func (c *Console) Notify(text string) {
	log.Warn().Str("module", "ui").Msg(text)
}

// BellRinger loops a ring notice until stopped. Play and Stop are both
// idempotent; a second Play while ringing is a no-op.
type BellRinger struct {
	mu   sync.Mutex
	stop chan struct{}
}

func NewBellRinger() *BellRinger {
	return &BellRinger{}
}

func (r *BellRinger) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	go r.ring(r.stop)
}

func (r *BellRinger) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
}

func (r *BellRinger) ring(stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.Info().Str("module", "ui").Msg("ring")
		}
	}
}
