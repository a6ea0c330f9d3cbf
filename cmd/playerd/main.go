// Package main provides the playerd daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/soundfold/playerd/internal/api/httpapi"
	"github.com/soundfold/playerd/internal/app/notification"
	"github.com/soundfold/playerd/internal/app/playback"
	"github.com/soundfold/playerd/internal/app/playcount"
	"github.com/soundfold/playerd/internal/app/preload"
	"github.com/soundfold/playerd/internal/infra/audio"
	"github.com/soundfold/playerd/internal/infra/catalog"
	"github.com/soundfold/playerd/internal/infra/config"
	"github.com/soundfold/playerd/internal/infra/logger"
	"github.com/soundfold/playerd/internal/infra/mediakeys"
)

var (
	app        = kingpin.New("playerd", "playerd playback coordinator daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/playerd.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the daemon. A separate function ensures defer statements
// are executed even when returning with an error.
func run(cfg *config.Config) error {
	db, err := catalog.Open(cfg.Catalog.DSN)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
	}()

	repo := catalog.NewGormRepository(db)
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zlog.Warn().Err(err).Msg("Redis unreachable, catalog cache disabled")
			_ = rdb.Close()
		} else {
			zlog.Info().Str("addr", cfg.Cache.Addr).Msg("Catalog cache enabled")
			defer rdb.Close()
			repo = catalog.NewCachedRepository(repo, rdb, cfg.CacheTTL())
		}
	}

	outputOpts, err := audio.DecodeOptions(cfg.Output.Settings)
	if err != nil {
		return fmt.Errorf("invalid output settings: %w", err)
	}
	out, err := audio.New(cfg.Output.Type, outputOpts)
	if err != nil {
		return fmt.Errorf("failed to create audio output: %w", err)
	}

	pre := preload.NewDisabled()
	if !cfg.Playback.DisablePreload {
		pre = preload.NewManager(func() (audio.Output, error) {
			return audio.New(cfg.Output.Type, outputOpts)
		})
	}

	counter := playcount.NewRecorder(repo, cfg.Playback.PlayCountThresholdSec)
	session := playback.NewSession(out, pre, counter, playback.Config{
		MaxConsecutiveFailures: cfg.Playback.MaxConsecutiveFailures,
		EventBuffer:            cfg.Playback.EventBuffer,
	})

	controls := &mediakeys.Controls{}
	if !cfg.Media.DisableSystemControls {
		controls = mediakeys.New(session)
	}
	defer controls.Close()

	notifier := notification.NewManager()
	defer notifier.Close()

	pumpCtx, stopPump := context.WithCancel(context.Background())
	defer stopPump()
	go notifier.Run(pumpCtx, session.Events(), controls.Update)

	apiHandler := httpapi.NewHandler(session, repo, notifier, httpapi.Options{
		ControlToken:  cfg.Admin.Token,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(apiHandler.Router(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	// Release stops the output and flushes pending play counts; the pump
	// drains the closed event channel afterwards.
	session.Release()

	zlog.Info().Msg("Daemon stopped")
	return nil
}
