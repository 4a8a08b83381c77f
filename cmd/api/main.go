package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"aura/internal/adapter/repo"
	"aura/internal/http/handlers"
	"aura/internal/http/httpapi"
	"aura/internal/infra"
	"aura/internal/providers/diffusion"
	"aura/internal/providers/director"
	"aura/internal/registry"
	"aura/internal/scheduler"
	"aura/internal/storage"
	"aura/internal/video"
	"aura/internal/worker"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var store storage.Store
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewMinIOStore(ctx, cfg)
	default:
		store, err = storage.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	reg := registry.New()

	var codec video.Codec
	if ffmpeg := video.NewFFmpegCodec(cfg.FFmpegPath, cfg.FFprobePath); ffmpeg.Available() {
		codec = ffmpeg
	} else {
		logger.Warn().Msg("ffmpeg not found, using the synthetic codec")
		codec = video.NewSyntheticCodec()
	}

	engine, err := diffusion.NewClient(diffusion.Options{
		APIKey:  cfg.EngineAPIKey,
		BaseURL: cfg.EngineBaseURL,
		Model:   cfg.EngineModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize engine client")
	}
	engineMode := "synthetic"
	if engine.Remote() {
		engineMode = "remote"
	}

	// Job archive (pgx pool), hanya jika DATABASE_URL diset
	var archive worker.Archiver
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		jobArchive := repo.NewJobArchive(infra.NewSQLRunner(pool, logger))
		if err := jobArchive.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure archive schema")
		}
		archive = jobArchive
	}

	dir := director.New()

	w := worker.New(reg, store, codec, engine, dir, archive, worker.Config{
		JobTimeout:     cfg.JobTimeout,
		FrameRetryMax:  cfg.FrameRetryMax,
		FrameRetryBase: cfg.FrameRetryBase,
		TargetFPS:      cfg.TargetFPS,
		MaxClipSeconds: cfg.MaxClipSeconds,
		MaxWidth:       cfg.MaxWidth,
		MaxHeight:      cfg.MaxHeight,
	}, logger)

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	sched := scheduler.New(reg, w, cfg.MaxConcurrentJobs, cfg.QueueCapacity, logger)
	sched.Start(runCtx)

	// App container
	app := &handlers.App{
		Cfg:        cfg,
		Logger:     logger,
		Registry:   reg,
		Queue:      sched,
		Worker:     w,
		Store:      store,
		Director:   dir,
		Engine:     engine,
		EngineMode: engineMode,
	}

	// Bangun router via package httpapi (sudah ada middleware chi di dalamnya)
	router := httpapi.NewRouter(app, cfg, logger)

	// HTTP server wrapper dari infra
	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	stopWorkers()
	sched.Wait()
	logger.Info().Msg("server stopped")
}
