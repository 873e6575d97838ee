package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	ClientURL   string
	RedisURL    string

	StorageBackend     string
	StoragePath        string
	StorageBaseURL     string
	GCSBucket          string
	GCSCredentialsFile string
	UploadFolder       string
	MaxUploadBytes     int64

	GeminiAPIKey      string
	GeminiModel       string
	GammaAPIKey       string
	GammaBaseURL      string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModel   string

	FFmpegPath      string
	FFprobePath     string
	ChromePath      string
	LibreOfficePath string
	WorkRoot        string
	MediaCacheDir   string
	VideoOutputDir  string

	WorkerConcurrency     int
	ExtractionConcurrency int
	PipelineTimeout       time.Duration
	Pipeline              PipelineTuning

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		ClientURL:   getEnv("CLIENT_URL", "http://localhost:5173"),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),

		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", "filesystem")),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		UploadFolder:       getEnv("UPLOAD_FOLDER", "ai-learning-app"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GammaAPIKey:       os.Getenv("GAMMA_API_KEY"),
		GammaBaseURL:      getEnv("GAMMA_BASE_URL", "https://public-api.gamma.app/v1.0"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
		ElevenLabsModel:   getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),

		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		ChromePath:      os.Getenv("CHROME_PATH"),
		LibreOfficePath: getEnv("LIBREOFFICE_PATH", "libreoffice"),
		WorkRoot:        getEnv("WORK_ROOT", os.TempDir()+"/learnapp"),
		MediaCacheDir:   getEnv("MEDIA_CACHE_DIR", "./var/cache"),
		VideoOutputDir:  getEnv("VIDEO_OUTPUT_DIR", "./var/output"),

		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 1),
		ExtractionConcurrency: getEnvInt("EXTRACTION_CONCURRENCY", 4),
		PipelineTimeout:       time.Minute * time.Duration(getEnvInt("PIPELINE_TIMEOUT_MINUTES", 20)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerWindow: getEnvInt("RATE_LIMIT_PER_WINDOW", 100),
		RateLimitWindow:    time.Minute * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 15)),
	}

	tuning, err := LoadPipelineTuning(os.Getenv("PIPELINE_TUNING_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Pipeline = tuning

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.StorageBackend {
	case "filesystem":
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.ExtractionConcurrency < 1 {
		cfg.ExtractionConcurrency = 1
	}

	return cfg, nil
}

// RequireJWT reports an error when the API signing secret is missing.
func (c *Config) RequireJWT() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
