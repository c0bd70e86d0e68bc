package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CC_SEED", "7")
	t.Setenv("CC_LOG_LEVEL", "debug")
	t.Setenv("CC_VECTORIZER", "count")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Features.Seed != 7 {
		t.Errorf("Features.Seed = %d, want 7", cfg.Features.Seed)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Features.Vectorizer != "count" {
		t.Errorf("Features.Vectorizer = %s, want count", cfg.Features.Vectorizer)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data:
  path: "complaints.csv"
  sample_size: 5000
features:
  vectorizer: count
  max_features: 1000
  test_fraction: 0.25
train:
  models: "logreg, svm"
  folds: 3
store:
  type: redis
  redis_url: "redis://cache:6379/2"
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Data.Path != "complaints.csv" {
		t.Errorf("Data.Path = %s, want complaints.csv", cfg.Data.Path)
	}
	if cfg.Data.SampleSize != 5000 {
		t.Errorf("Data.SampleSize = %d, want 5000", cfg.Data.SampleSize)
	}
	// Unset keys keep their defaults.
	if cfg.Data.TextColumn != "Consumer complaint narrative" {
		t.Errorf("Data.TextColumn = %s, want default", cfg.Data.TextColumn)
	}
	if cfg.Features.MaxFeatures != 1000 {
		t.Errorf("Features.MaxFeatures = %d, want 1000", cfg.Features.MaxFeatures)
	}
	if cfg.Features.NGramMax != 2 {
		t.Errorf("Features.NGramMax = %d, want default 2", cfg.Features.NGramMax)
	}
	if got := cfg.Train.ModelList(); !reflect.DeepEqual(got, []string{"logreg", "svm"}) {
		t.Errorf("Train.ModelList() = %v, want [logreg svm]", got)
	}
	if cfg.Store.Type != "redis" {
		t.Errorf("Store.Type = %s, want redis", cfg.Store.Type)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("train:\n  folds: 3\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CC_CV_FOLDS", "10")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Train.Folds != 10 {
		t.Errorf("Train.Folds = %d, want 10", cfg.Train.Folds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid vectorizer",
			modify: func(c *Config) {
				c.Features.Vectorizer = "word2vec"
			},
			wantErr: true,
		},
		{
			name: "test fraction out of range",
			modify: func(c *Config) {
				c.Features.TestFraction = 1
			},
			wantErr: true,
		},
		{
			name: "ngram range inverted",
			modify: func(c *Config) {
				c.Features.NGramMin = 3
				c.Features.NGramMax = 2
			},
			wantErr: true,
		},
		{
			name: "max_df above one",
			modify: func(c *Config) {
				c.Features.MaxDF = 1.5
			},
			wantErr: true,
		},
		{
			name: "unknown model",
			modify: func(c *Config) {
				c.Train.Models = "logreg,perceptron"
			},
			wantErr: true,
		},
		{
			name: "single fold",
			modify: func(c *Config) {
				c.Train.Folds = 1
			},
			wantErr: true,
		},
		{
			name: "cross-validation disabled",
			modify: func(c *Config) {
				c.Train.Folds = 0
			},
			wantErr: false,
		},
		{
			name: "http provider without url",
			modify: func(c *Config) {
				c.Text.Providers = "http,embedded"
			},
			wantErr: true,
		},
		{
			name: "http provider with url",
			modify: func(c *Config) {
				c.Text.Providers = "http,embedded"
				c.Text.ResourceURL = "https://example.org/nlp"
			},
			wantErr: false,
		},
		{
			name: "invalid store type",
			modify: func(c *Config) {
				c.Store.Type = "s3"
			},
			wantErr: true,
		},
		{
			name: "invalid bus type",
			modify: func(c *Config) {
				c.Bus.Type = "nats"
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}
