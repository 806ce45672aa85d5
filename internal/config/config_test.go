package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set test environment variables (auto-cleaned up after test)
	t.Setenv("DATASET_URL", "https://data.example.com/tools.json")
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_ENDPOINT_URL", "https://sync.example.com/actions")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected 9090, got %s", cfg.Port)
	}
	if cfg.CacheBackend != BackendSQLite {
		t.Errorf("Expected default backend sqlite, got %s", cfg.CacheBackend)
	}
	if cfg.HotCacheSize != 50 {
		t.Errorf("Expected default HotCacheSize 50, got %d", cfg.HotCacheSize)
	}
	if cfg.CacheMaxAge != 7*24*time.Hour {
		t.Errorf("Expected default CacheMaxAge 168h, got %s", cfg.CacheMaxAge)
	}
	if cfg.RefreshInterval != time.Hour {
		t.Errorf("Expected default RefreshInterval 1h, got %s", cfg.RefreshInterval)
	}
	if len(cfg.AllowedDatasetHosts) != 1 || cfg.AllowedDatasetHosts[0] != "data.example.com" {
		t.Errorf("Expected allowed hosts derived from DATASET_URL, got %v", cfg.AllowedDatasetHosts)
	}
	if cfg.ConnectivityCheckURL != cfg.DatasetURL {
		t.Errorf("Expected connectivity check to default to dataset URL, got %s", cfg.ConnectivityCheckURL)
	}
	if !cfg.TrackSearches {
		t.Error("Expected TrackSearches to default to true")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Expected info log level, got %v", cfg.LogLevel)
	}
}

func TestLoad_MissingDataset(t *testing.T) {
	t.Setenv("DATASET_URL", "")
	t.Setenv("DATASET_PATH", "")

	_, err := Load()
	if err == nil {
		t.Error("Load() should return an error when no dataset source is set")
	}
}

func TestLoad_DatasetPathOnly(t *testing.T) {
	t.Setenv("DATASET_URL", "")
	t.Setenv("DATASET_PATH", "testdata/tools.json")
	t.Setenv("DATASET_SELECTORS_PATH", "config/selectors.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.AllowedDatasetHosts) != 0 {
		t.Errorf("Expected no allowed hosts, got %v", cfg.AllowedDatasetHosts)
	}
	if cfg.SelectorsPath != "config/selectors.json" {
		t.Errorf("SelectorsPath = %q, want config/selectors.json", cfg.SelectorsPath)
	}
}

func TestLoad_FirestoreRequiresProject(t *testing.T) {
	t.Setenv("DATASET_URL", "https://data.example.com/tools.json")
	t.Setenv("CACHE_BACKEND", "firestore")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	if _, err := Load(); err == nil {
		t.Error("Load() should return error for firestore backend without GOOGLE_CLOUD_PROJECT")
	}

	t.Setenv("GOOGLE_CLOUD_PROJECT", "test-project")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.ProjectID != "test-project" {
		t.Errorf("Expected test-project, got %s", cfg.ProjectID)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CACHE_BACKEND", "redis"},
		{"REFRESH_INTERVAL", "not-a-duration"},
		{"HOT_CACHE_SIZE", "lots"},
		{"HOT_CACHE_SIZE", "0"},
		{"STORAGE_LIMIT_MB", "big"},
		{"TRACK_SEARCHES", "maybe"},
		{"LOG_LEVEL", "chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("DATASET_URL", "https://data.example.com/tools.json")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should return error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_CustomAllowedHosts(t *testing.T) {
	t.Setenv("DATASET_URL", "https://data.example.com/tools.json")
	t.Setenv("ALLOWED_DATASET_HOSTS", "cdn.example.com, data.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.AllowedDatasetHosts) != 2 || cfg.AllowedDatasetHosts[0] != "cdn.example.com" {
		t.Errorf("Expected custom allowed hosts, got %v", cfg.AllowedDatasetHosts)
	}
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	content := "threshold: 0.3\nweights:\n  name: 0.5\n  keywords: 0.2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning() returned unexpected error: %v", err)
	}
	if tuning.Threshold != 0.3 {
		t.Errorf("Expected threshold 0.3, got %v", tuning.Threshold)
	}
	if tuning.Weights["name"] != 0.5 {
		t.Errorf("Expected name weight 0.5, got %v", tuning.Weights["name"])
	}

	t.Setenv("DATASET_URL", "https://data.example.com/tools.json")
	t.Setenv("SEARCH_TUNING_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Tuning.Threshold != 0.3 {
		t.Errorf("Expected tuning applied from file, got %+v", cfg.Tuning)
	}
}

func TestLoadTuning_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("threshold: 3\n"), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}
	if _, err := LoadTuning(path); err == nil {
		t.Error("LoadTuning() should reject an out-of-range threshold")
	}
	if _, err := LoadTuning(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadTuning() should fail for a missing file")
	}
}
