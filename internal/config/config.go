package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pauljones0/gapfinder/internal/util"
)

// Cache backend names accepted in CACHE_BACKEND.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Config struct {
	Port                string
	LogLevel            slog.Level
	DatasetURL          string
	DatasetPath         string
	AllowedDatasetHosts []string
	FetchRetries        int
	// SelectorsPath optionally overrides the embedded HTML extraction selectors.
	SelectorsPath string

	CacheBackend              string
	CacheDBPath               string
	ProjectID                 string
	FirestoreCollectionPrefix string
	HotCacheSize              int
	StorageLimitMB            float64
	CacheMaxAge               time.Duration
	MaxStaleAge               time.Duration

	SyncEndpointURL   string
	SyncRatePerSecond float64
	SyncRateBurst     int
	TrackSearches     bool

	RefreshInterval      time.Duration
	ConnectivityCheckURL string
	ConnectivityInterval time.Duration

	TuningFile string
	Tuning     Tuning
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      envOr("PORT", "8080"),
		DatasetURL:                os.Getenv("DATASET_URL"),
		DatasetPath:               os.Getenv("DATASET_PATH"),
		SelectorsPath:             os.Getenv("DATASET_SELECTORS_PATH"),
		CacheBackend:              strings.ToLower(envOr("CACHE_BACKEND", BackendSQLite)),
		CacheDBPath:               envOr("CACHE_DB_PATH", "gapfinder.db"),
		ProjectID:                 os.Getenv("GOOGLE_CLOUD_PROJECT"),
		FirestoreCollectionPrefix: envOr("FIRESTORE_COLLECTION_PREFIX", "gapfinder_"),
		SyncEndpointURL:           os.Getenv("SYNC_ENDPOINT_URL"),
		TuningFile:                os.Getenv("SEARCH_TUNING_FILE"),
		Tuning:                    DefaultTuning(),
	}

	if cfg.DatasetURL == "" && cfg.DatasetPath == "" {
		return nil, fmt.Errorf("DATASET_URL or DATASET_PATH environment variable is required but neither is set")
	}

	level, err := parseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if hosts := os.Getenv("ALLOWED_DATASET_HOSTS"); hosts != "" {
		cfg.AllowedDatasetHosts = util.SplitList(hosts)
	} else if cfg.DatasetURL != "" {
		u, err := url.Parse(cfg.DatasetURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATASET_URL %q: %w", cfg.DatasetURL, err)
		}
		cfg.AllowedDatasetHosts = []string{u.Hostname()}
	}

	switch cfg.CacheBackend {
	case BackendSQLite, BackendMemory:
	case BackendFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required when CACHE_BACKEND=firestore")
		}
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want sqlite, firestore or memory", cfg.CacheBackend)
	}

	if cfg.SyncEndpointURL == "" {
		slog.Warn("SYNC_ENDPOINT_URL not set, queued actions will be discarded on flush")
	}

	if cfg.FetchRetries, err = envInt("FETCH_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.HotCacheSize, err = envInt("HOT_CACHE_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.HotCacheSize <= 0 {
		return nil, fmt.Errorf("invalid HOT_CACHE_SIZE %d: must be positive", cfg.HotCacheSize)
	}
	if cfg.SyncRateBurst, err = envInt("SYNC_RATE_BURST", 1); err != nil {
		return nil, err
	}
	if cfg.StorageLimitMB, err = envFloat("STORAGE_LIMIT_MB", 50); err != nil {
		return nil, err
	}
	if cfg.SyncRatePerSecond, err = envFloat("SYNC_RATE_PER_SECOND", 2); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = envDuration("CACHE_MAX_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxStaleAge, err = envDuration("MAX_STALE_AGE", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = envDuration("REFRESH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ConnectivityInterval, err = envDuration("CONNECTIVITY_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.ConnectivityCheckURL = envOr("CONNECTIVITY_CHECK_URL", cfg.DatasetURL)

	cfg.TrackSearches = true
	if v := os.Getenv("TRACK_SEARCHES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRACK_SEARCHES %q: %w", v, err)
		}
		cfg.TrackSearches = b
	}

	if cfg.TuningFile != "" {
		tuning, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = tuning
		slog.Info("Loaded search tuning", "path", cfg.TuningFile)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
