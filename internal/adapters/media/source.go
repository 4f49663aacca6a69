// Package media owns the local microphone stream and remote audio playback.
package media

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
)

// Source acquires the microphone through pion/mediadevices. The stream is
// process-wide: Acquire returns the live one until Stop releases it, after
// which the next Acquire opens the device again.
type Source struct {
	notifier core.Notifier
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	stream mediadevices.MediaStream
}

func NewSource(notifier core.Notifier) (*Source, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	selector := mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &Source{notifier: notifier, selector: selector}, nil
}

// Populate registers the capture codecs on a media engine so offers and
// answers advertise what the pipeline actually encodes.
func (s *Source) Populate(me *webrtc.MediaEngine) {
	s.selector.Populate(me)
}

func (s *Source) Acquire() (core.LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return &localStream{src: s, stream: s.stream}, nil
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(_ *mediadevices.MediaTrackConstraints) {},
		Codec: s.selector,
	})
	if err != nil {
		s.notifier.Notify("Could not access microphone. Please check permissions and try again.")
		return nil, fmt.Errorf("get user media: %w", err)
	}

	log.Info().Str("module", "media").Int("tracks", len(stream.GetTracks())).Msg("microphone acquired")
	s.stream = stream
	return &localStream{src: s, stream: stream}, nil
}

func (s *Source) release(stream mediadevices.MediaStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == stream {
		s.stream = nil
	}
}

type localStream struct {
	src    *Source
	stream mediadevices.MediaStream
	muted  atomic.Bool
}

func (l *localStream) Tracks() []webrtc.TrackLocal {
	tracks := l.stream.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

// SetEnabled records the mute flag. Capture keeps running; mute is
// presentation state, not a device toggle.
func (l *localStream) SetEnabled(enabled bool) {
	l.muted.Store(!enabled)
	log.Info().Str("module", "media").Bool("enabled", enabled).Msg("local audio toggled")
}

func (l *localStream) Stop() {
	for _, t := range l.stream.GetTracks() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("track_id", t.ID()).Msg("close track")
		}
	}
	l.src.release(l.stream)
	log.Info().Str("module", "media").Msg("microphone released")
}
