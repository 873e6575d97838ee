package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"learnapp/internal/adapter/repo"
	"learnapp/internal/convert"
	"learnapp/internal/db"
	"learnapp/internal/http/handlers"
	httpapi "learnapp/internal/http/httpapi"
	"learnapp/internal/infra"
	"learnapp/internal/infra/credentials"
	"learnapp/internal/middleware"
	"learnapp/internal/providers/gemini"
	"learnapp/internal/storage"
	"learnapp/internal/tasks"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the embedded schema before serving")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if err := cfg.RequireJWT(); err != nil {
		logger.Fatal().Err(err).Msg("api: invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer dbpool.Close()

	if *migrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Fatal().Err(err).Msg("api: migration failed")
		}
		logger.Info().Msg("api: schema applied")
	}

	sqlRunner := infra.NewSQLRunner(dbpool, logger)
	documents := repo.NewDocumentRepository(sqlRunner)

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	extraction := tasks.ExtractionOptions{Documents: documents, Logger: &logger}
	geminiKey, err := credentials.NewStore(sqlRunner).Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: failed to load gemini api key from store")
	}
	if geminiKey != "" {
		client, err := gemini.NewClient(ctx, gemini.Options{APIKey: geminiKey, Model: cfg.GeminiModel, Logger: &logger})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure gemini client")
		}
		extraction.Extractor = client
	} else {
		logger.Warn().Msg("api: gemini api key missing, uploaded documents will fail extraction")
	}

	// Extraction outlives the request that scheduled it, so the runner is
	// detached from the signal context and drained explicitly on shutdown.
	runner := tasks.NewRunner(context.WithoutCancel(ctx), tasks.Options{
		Concurrency: cfg.ExtractionConcurrency,
		QueueSize:   cfg.ExtractionConcurrency * 16,
		Logger:      &logger,
		OnError: func(task string, err error) {
			logger.Error().Err(err).Str("task", task).Msg("api: background task failed")
		},
	})

	app := &handlers.App{
		Documents:  documents,
		Jobs:       repo.NewJobRepository(sqlRunner),
		Videos:     repo.NewVideoAssetRepository(sqlRunner),
		Storage:    store,
		Converter:  convert.New(convert.Options{Binary: cfg.LibreOfficePath, Logger: &logger}),
		Tasks:      runner,
		Extraction: extraction,
		DB:         dbpool,
		Logger:     logger,

		UploadFolder:   cfg.UploadFolder,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	routerOpts := httpapi.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  middleware.SplitOrigins(cfg.ClientURL),
		RateLimit:       cfg.RateLimitPerWindow,
		RateLimitWindow: cfg.RateLimitWindow,
		Logger:          logger,
	}
	if cfg.StorageBackend == "filesystem" {
		routerOpts.StaticDir = cfg.StoragePath
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, routerOpts))

	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: background tasks did not drain")
	}
	logger.Info().Msg("api: stopped")
}
