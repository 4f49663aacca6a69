package media

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

// OggSink renders the remote audio track by writing it to an ogg/opus file.
// One remote stream at a time: each Play cancels the previous loop.
type OggSink struct {
	dir string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewOggSink(dir string) *OggSink {
	return &OggSink{dir: dir}
}

func (s *OggSink) Play(track *webrtc.TrackRemote) {
	codec := track.Codec()
	if !strings.HasPrefix(codec.MimeType, "audio/") {
		log.Warn().Str("module", "media").Str("mime", codec.MimeType).Msg("non-audio track ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	name := filepath.Join(s.dir, "remote-"+uuid.NewString()+".ogg")
	w, err := oggwriter.New(name, codec.ClockRate, codec.Channels)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("file", name).Msg("open ogg writer")
		cancel()
		return
	}

	log.Info().Str("module", "media").Str("file", name).Msg("rendering remote audio")
	go s.loop(ctx, track, w)
}

// Stop halts whatever is currently rendering.
func (s *OggSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *OggSink) loop(ctx context.Context, track *webrtc.TrackRemote, w *oggwriter.OggWriter) {
	defer func() {
		if err := w.Close(); err != nil {
			log.Warn().Err(err).Str("module", "media").Msg("close ogg writer")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Info().Err(err).Str("module", "media").Msg("remote track ended")
			return
		}
		s.write(w, pkt)
	}
}

func (s *OggSink) write(w *oggwriter.OggWriter, pkt *rtp.Packet) {
	if err := w.WriteRTP(pkt); err != nil {
		log.Error().Err(err).Str("module", "media").Msg("write RTP packet")
	}
}
