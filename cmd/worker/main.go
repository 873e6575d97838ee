package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"learnapp/internal/adapter/repo"
	"learnapp/internal/infra"
	"learnapp/internal/infra/credentials"
	"learnapp/internal/media/audio"
	"learnapp/internal/media/deps"
	"learnapp/internal/media/ffprobe"
	"learnapp/internal/media/stitch"
	"learnapp/internal/pipeline"
	"learnapp/internal/providers/deck"
	"learnapp/internal/providers/gemini"
	"learnapp/internal/providers/narration"
	"learnapp/internal/recorder"
	"learnapp/internal/storage"
	"learnapp/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chrome := deps.Requirement{Name: "chrome", Alternatives: deps.ChromeCandidates, Hint: "install google-chrome or chromium, or set CHROME_PATH"}
	if cfg.ChromePath != "" {
		chrome.Command = cfg.ChromePath
	}
	statuses := deps.Check([]deps.Requirement{
		{Name: "ffmpeg", Command: cfg.FFmpegPath, Hint: "apt-get install ffmpeg, or set FFMPEG_PATH"},
		{Name: "ffprobe", Command: cfg.FFprobePath, Hint: "ships with ffmpeg; the mp3 decoder is used without it", Optional: true},
		chrome,
	})
	if err := deps.Report(&logger, statuses); err != nil {
		logger.Fatal().Err(err).Msg("worker: preflight failed")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	sqlRunner := infra.NewSQLRunner(pool, logger)
	credStore := credentials.NewStore(sqlRunner)
	geminiKey := resolveKey(ctx, &logger, credStore, credentials.ProviderGemini, cfg.GeminiAPIKey)
	gammaKey := resolveKey(ctx, &logger, credStore, credentials.ProviderGamma, cfg.GammaAPIKey)
	elevenKey := resolveKey(ctx, &logger, credStore, credentials.ProviderElevenLabs, cfg.ElevenLabsAPIKey)

	outlines, err := gemini.NewClient(ctx, gemini.Options{APIKey: geminiKey, Model: cfg.GeminiModel, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}

	tuning := cfg.Pipeline
	httpClient := &http.Client{Timeout: 60 * time.Second}
	decks := deck.NewClient(deck.Options{
		APIKey:       gammaKey,
		BaseURL:      cfg.GammaBaseURL,
		PollInterval: tuning.DeckPollInterval,
		MaxAttempts:  tuning.DeckMaxPollAttempts,
		HTTPClient:   httpClient,
		Logger:       &logger,
	})

	probers := []narration.Prober{}
	if path := deps.Resolved(statuses, "ffprobe"); path != "" {
		probers = append(probers, ffprobe.New(path))
	}
	probers = append(probers, audio.NewDecoder())
	narrator, err := narration.NewSynthesizer(narration.NewElevenLabs(narration.ElevenLabsOptions{
		APIKey:     elevenKey,
		BaseURL:    cfg.ElevenLabsBaseURL,
		Model:      cfg.ElevenLabsModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	}), narration.SynthesizerOptions{
		VoiceID: cfg.ElevenLabsVoiceID,
		Probers: probers,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure narration")
	}

	ffmpegPath := deps.Resolved(statuses, "ffmpeg")
	rec, err := recorder.New(recorder.Options{
		Launcher: recorder.NewChromeLauncher(recorder.ChromeOptions{
			ExecPath:          deps.Resolved(statuses, "chrome"),
			NavigationTimeout: tuning.NavigationTimeout,
			FFmpegPath:        ffmpegPath,
			Logger:            &logger,
		}),
		Tuning: &tuning,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure recorder")
	}

	stitcher, err := stitch.New(stitch.Options{
		FFmpegPath:      ffmpegPath,
		CacheDir:        cfg.MediaCacheDir,
		OutputDir:       cfg.VideoOutputDir,
		SilenceDuration: tuning.SilenceDuration,
		Logger:          &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure stitcher")
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	var guard pipeline.RunGuard = pipeline.NewMemoryGuard()
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: redis connection failed")
		}
		defer client.Close()
		guard = pipeline.NewRedisGuard(client, cfg.PipelineTimeout+5*time.Minute, &logger)
	}

	jobs := repo.NewJobRepository(sqlRunner)
	orchestrator, err := pipeline.New(pipeline.Options{
		Documents:    repo.NewDocumentRepository(sqlRunner),
		Assets:       repo.NewVideoAssetRepository(sqlRunner),
		Outlines:     outlines,
		Decks:        decks,
		Narrator:     narrator,
		Recorder:     rec,
		Stitcher:     stitcher,
		Uploader:     store,
		Guard:        guard,
		WorkRoot:     cfg.WorkRoot,
		UploadFolder: cfg.UploadFolder,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure pipeline")
	}

	// Jobs still running after a full timeout belong to a worker that died.
	abandonAfter := int((cfg.PipelineTimeout + 5*time.Minute).Seconds())
	if n, err := jobs.FailAbandoned(ctx, abandonAfter); err != nil {
		logger.Warn().Err(err).Msg("worker: failed to sweep abandoned jobs")
	} else if n > 0 {
		logger.Warn().Int64("jobs", n).Msg("worker: marked abandoned jobs failed")
	}

	runner := tasks.NewRunner(ctx, tasks.Options{
		Concurrency: cfg.WorkerConcurrency,
		QueueSize:   cfg.WorkerConcurrency,
		Logger:      &logger,
	})
	worker := &videoWorker{
		jobs:       jobs,
		generator:  orchestrator,
		runner:     runner,
		logger:     &logger,
		jobTimeout: cfg.PipelineTimeout,
		poll:       jobPollInterval,
		sleep:      sleepContext,
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("worker: running jobs did not stop in time")
	}
	logger.Info().Msg("worker: stopped")
}

func resolveKey(ctx context.Context, logger *infra.Logger, store *credentials.Store, provider, fromEnv string) string {
	key, err := store.Resolve(ctx, provider, fromEnv)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", provider).Msg("worker: failed to load api key")
	}
	if key == "" {
		logger.Fatal().Str("provider", provider).Msg("worker: api key missing; set it in the environment or run credentials set")
	}
	return key
}
