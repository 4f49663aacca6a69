package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Call/internal/adapters/http"
	"github.com/dkeye/Call/internal/adapters/media"
	"github.com/dkeye/Call/internal/adapters/rtc"
	"github.com/dkeye/Call/internal/adapters/signal"
	"github.com/dkeye/Call/internal/adapters/ui"
	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/config"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.PublicID == "" {
		cfg.PublicID = uuid.NewString()
	}

	self := domain.Participant{
		PublicID:  domain.PublicID(cfg.PublicID),
		Name:      cfg.DisplayName,
		AvatarURL: cfg.AvatarURL,
	}

	transport, err := signal.Dial(ctx, cfg.ServerURL, cfg.PublicID, cfg.ReadLimit, cfg.PingPeriod)
	if err != nil {
		log.Fatal().Err(err).Msg("signal server unreachable")
	}

	console := ui.NewConsole()
	source, err := media.NewSource(console)
	if err != nil {
		log.Fatal().Err(err).Msg("audio codec init")
	}
	sink := media.NewOggSink(cfg.RecordDir)

	api, err := rtc.NewAPI(source.Populate)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc api init")
	}
	rtcCfg := rtc.Config(cfg.StunServers)

	engine := app.NewEngine(app.Deps{
		Self:      self,
		Transport: transport,
		Media:     source,
		Sink:      sink,
		UI:        console,
		Ringer:    ui.NewBellRinger(),
		Notifier:  console,
		NewConn: func(remote domain.PublicID) (core.MediaConnection, error) {
			return rtc.NewConnection(api, rtcCfg, remote)
		},
		Policy: app.Policy{
			MaxBufferedCandidates: cfg.MaxBufferedCandidates,
			CandidateRetryLimit:   cfg.CandidateRetryLimit,
		},
	})
	engine.Bind()

	r := router.SetupRouter(cfg, engine)
	addr := fmt.Sprintf(":%d", cfg.ControlPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("public_id", cfg.PublicID).Msg("Call client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	engine.Close()
	transport.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}
