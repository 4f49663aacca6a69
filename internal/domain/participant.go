// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const (
	MaxPublicIDLen = 64
	MaxNameLen     = 64
)

var (
	ErrNameTooLong   = errors.New("display name too long")
	ErrNameEmpty     = errors.New("display name empty")
	ErrPublicIDEmpty = errors.New("public id empty")
)

// PublicID is the opaque identity a participant is addressed by on the bus.
type PublicID string

type Participant struct {
	PublicID  PublicID `json:"public_id"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatar_url,omitempty"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id PublicID, name string) (*Participant, error) {
	if id == "" {
		return nil, ErrPublicIDEmpty
	}
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	return &Participant{PublicID: id, Name: name}, nil
}

func (p *Participant) SetName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	p.Name = name
	return nil
}
