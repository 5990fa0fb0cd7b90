package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the VidTube backend service.
type Config struct {
	AppPort       int
	MongoURI      string
	MongoDatabase string
	// EnsureIndexes creates missing indexes when the server starts.
	EnsureIndexes bool
	LogLevel      string
	SeedDir       string

	Auth        AuthConfig
	Redis       RedisConfig
	ObjectStore ObjectStoreConfig
	RateLimit   RateLimitConfig
	Views       ViewRecorderConfig

	CORSOrigin     string
	FFProbePath    string
	FFProbeTimeout time.Duration
	SuggestionTTL  time.Duration
}

// AuthConfig controls token signing and session cookies.
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	CookieSecure  bool
}

// RedisConfig points at the optional token blacklist. An empty Addr keeps
// revoked tokens in process memory.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// ObjectStoreConfig selects and configures the media store.
type ObjectStoreConfig struct {
	Driver        string
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// RateLimitConfig throttles the unauthenticated auth routes per client.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// ViewRecorderConfig sizes the background view recorder.
type ViewRecorderConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from environment variables, applying sensible defaults
// for local development while allowing overrides through environment variables.
// A .env file in the working directory is applied first when present; real
// environment variables take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppPort:       getInt("VIDTUBE_PORT", 8000),
		MongoURI:      getString("VIDTUBE_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getString("VIDTUBE_MONGO_DATABASE", "vidtube"),
		EnsureIndexes: getBool("VIDTUBE_ENSURE_INDEXES", true),
		LogLevel:      getString("VIDTUBE_LOG_LEVEL", "info"),
		SeedDir:       getString("VIDTUBE_SEEDS", "seeds"),
		Auth: AuthConfig{
			AccessSecret:  os.Getenv("VIDTUBE_ACCESS_TOKEN_SECRET"),
			RefreshSecret: os.Getenv("VIDTUBE_REFRESH_TOKEN_SECRET"),
			AccessTTL:     getDuration("VIDTUBE_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:    getDuration("VIDTUBE_REFRESH_TOKEN_TTL", 10*24*time.Hour),
			Issuer:        getString("VIDTUBE_TOKEN_ISSUER", "vidtube"),
			CookieSecure:  getBool("VIDTUBE_COOKIE_SECURE", false),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("VIDTUBE_REDIS_ADDR"),
			DB:       getInt("VIDTUBE_REDIS_DB", 0),
			Password: os.Getenv("VIDTUBE_REDIS_PASSWORD"),
		},
		ObjectStore: ObjectStoreConfig{
			Driver:        strings.ToLower(getString("VIDTUBE_STORAGE_DRIVER", "s3")),
			Bucket:        getString("VIDTUBE_STORAGE_BUCKET", "vidtube-media"),
			Region:        getString("VIDTUBE_STORAGE_REGION", "us-east-1"),
			Endpoint:      os.Getenv("VIDTUBE_STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("VIDTUBE_STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("VIDTUBE_STORAGE_SECRET_KEY"),
			UseSSL:        getBool("VIDTUBE_STORAGE_USE_SSL", true),
			PublicBaseURL: os.Getenv("VIDTUBE_STORAGE_PUBLIC_URL"),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("VIDTUBE_AUTH_RATE_REQUESTS", 10),
			Window:   getDuration("VIDTUBE_AUTH_RATE_WINDOW", time.Minute),
			Burst:    getInt("VIDTUBE_AUTH_RATE_BURST", 5),
		},
		Views: ViewRecorderConfig{
			Workers:   getInt("VIDTUBE_VIEW_WORKERS", 4),
			QueueSize: getInt("VIDTUBE_VIEW_QUEUE", 1024),
		},
		CORSOrigin:     getString("VIDTUBE_CORS_ORIGIN", "http://localhost:5173"),
		FFProbePath:    os.Getenv("VIDTUBE_FFPROBE_PATH"),
		FFProbeTimeout: getDuration("VIDTUBE_FFPROBE_TIMEOUT", 30*time.Second),
		SuggestionTTL:  getDuration("VIDTUBE_SUGGESTION_TTL", 30*time.Second),
	}

	return cfg, nil
}

// Validate reports settings the HTTP server cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.AccessSecret == "" {
		errs = append(errs, errors.New("VIDTUBE_ACCESS_TOKEN_SECRET is required"))
	}
	if c.Auth.RefreshSecret == "" {
		errs = append(errs, errors.New("VIDTUBE_REFRESH_TOKEN_SECRET is required"))
	}
	if c.Auth.AccessSecret != "" && c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.MongoURI == "" || c.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo uri and database are required"))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
