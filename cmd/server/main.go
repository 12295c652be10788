package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Relay/internal/adapters/http"
	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg == nil || cfg.Mode == "debug" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level := zerolog.InfoLevel
	if cfg != nil {
		if l, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
			level = l
		}
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	// Console output until the config says otherwise, so config.Load can log.
	setupLogger(nil)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	tokens := core.NewCryptoTokens()
	rooms := app.NewRoomRegistry(
		app.WithTokenGenerator(tokens),
		app.WithTokenBytes(cfg.TokenBytes),
		app.WithHistoryCap(cfg.HistoryCap),
	)
	sweeper := app.NewSweeper(rooms, cfg.Retention, cfg.SweepInterval)
	rooms.SetEmptyNotifier(sweeper)

	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid backpressure policy")
	}

	o := orch.New(rooms, tokens, cfg.JoinHistory)
	ctl := signal.NewSignalWSController(o, policy, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendRate:   cfg.SendRate,
		SendBurst:  cfg.SendBurst,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, ctl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	go func() {
		if err := g.Wait(); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			cancel()
			return srv.Shutdown(ctx)
		},
		"sweeper": func(context.Context) error {
			sweeper.Stop()
			return nil
		},
	})

	code := <-wait
	log.Info().Int("code", code).Msg("Relay server exited")
	os.Exit(code)
}
