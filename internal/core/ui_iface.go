package core

// CallUI is the presentation surface the engine drives. Implementations only
// render; they never mutate call state.
type CallUI interface {
	ShowIncoming(name, avatarURL string)
	ShowOutgoing(name, avatarURL string)
	ShowActive()
	HideAll()
}

// Ringer loops an audible alert for an incoming call until stopped.
// Both methods are idempotent.
type Ringer interface {
	Play()
	Stop()
}

// Notifier surfaces a one-shot user-visible notice.
type Notifier interface {
	Notify(text string)
}
