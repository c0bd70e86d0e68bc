// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Dataset configuration
	Data DataConfig `yaml:"data"`

	// Text normalization configuration
	Text TextConfig `yaml:"text"`

	// Feature extraction configuration
	Features FeaturesConfig `yaml:"features"`

	// Model training configuration
	Train TrainConfig `yaml:"train"`

	// Model storage configuration
	Store StoreConfig `yaml:"store"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Report configuration
	Report ReportConfig `yaml:"report"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// DataConfig describes the input complaint dataset.
type DataConfig struct {
	Path           string `envconfig:"CC_DATA_PATH" yaml:"path"`
	TextColumn     string `envconfig:"CC_DATA_TEXT_COLUMN" yaml:"text_column"`
	CategoryColumn string `envconfig:"CC_DATA_CATEGORY_COLUMN" yaml:"category_column"`
	SampleSize     int    `envconfig:"CC_DATA_SAMPLE_SIZE" yaml:"sample_size"` // 0 = all rows
}

// TextConfig holds normalizer settings.
type TextConfig struct {
	Language     string `envconfig:"CC_TEXT_LANGUAGE" yaml:"language"`
	ResourcesDir string `envconfig:"CC_RESOURCES_DIR" yaml:"resources_dir"`
	// Providers is the ordered, comma-separated list of resource sources
	// consulted when a resource is missing locally (embedded, http).
	Providers   string `envconfig:"CC_RESOURCE_PROVIDERS" yaml:"providers"`
	ResourceURL string `envconfig:"CC_RESOURCE_URL" yaml:"resource_url"`
	// FetchRate caps http provider requests per second. Zero keeps the
	// provider default.
	FetchRate float64 `envconfig:"CC_RESOURCE_FETCH_RATE" yaml:"fetch_rate"`
	// CacheSize bounds the normalization cache used when classifying raw
	// text. Zero disables caching.
	CacheSize int    `envconfig:"CC_NORMALIZE_CACHE_SIZE" yaml:"cache_size"`
	CachePath string `envconfig:"CC_NORMALIZE_CACHE_PATH" yaml:"cache_path"`
}

// FeaturesConfig holds vectorizer and split settings.
type FeaturesConfig struct {
	Vectorizer   string  `envconfig:"CC_VECTORIZER" yaml:"vectorizer"`
	MaxFeatures  int     `envconfig:"CC_MAX_FEATURES" yaml:"max_features"`
	NGramMin     int     `envconfig:"CC_NGRAM_MIN" yaml:"ngram_min"`
	NGramMax     int     `envconfig:"CC_NGRAM_MAX" yaml:"ngram_max"`
	MinDF        int     `envconfig:"CC_MIN_DF" yaml:"min_df"`
	MaxDF        float64 `envconfig:"CC_MAX_DF" yaml:"max_df"`
	TestFraction float64 `envconfig:"CC_TEST_FRACTION" yaml:"test_fraction"`
	Seed         uint64  `envconfig:"CC_SEED" yaml:"seed"`
}

// TrainConfig holds classifier hyperparameters.
type TrainConfig struct {
	// Models is the comma-separated list of algorithms to train
	// (logreg, naive_bayes, random_forest, svm, boosting).
	Models  string `envconfig:"CC_MODELS" yaml:"models"`
	Folds   int    `envconfig:"CC_CV_FOLDS" yaml:"folds"` // 0 = skip cross-validation
	Workers int    `envconfig:"CC_TRAIN_WORKERS" yaml:"workers"`

	LogRegMaxIter int     `envconfig:"CC_LOGREG_MAX_ITER" yaml:"logreg_max_iter"`
	LogRegC       float64 `envconfig:"CC_LOGREG_C" yaml:"logreg_c"`

	NaiveBayesAlpha float64 `envconfig:"CC_NB_ALPHA" yaml:"naive_bayes_alpha"`

	ForestEstimators int `envconfig:"CC_FOREST_ESTIMATORS" yaml:"forest_estimators"`
	ForestMaxDepth   int `envconfig:"CC_FOREST_MAX_DEPTH" yaml:"forest_max_depth"`

	SVMMaxIter int     `envconfig:"CC_SVM_MAX_ITER" yaml:"svm_max_iter"`
	SVMC       float64 `envconfig:"CC_SVM_C" yaml:"svm_c"`

	BoostingEstimators   int     `envconfig:"CC_BOOSTING_ESTIMATORS" yaml:"boosting_estimators"`
	BoostingMaxDepth     int     `envconfig:"CC_BOOSTING_MAX_DEPTH" yaml:"boosting_max_depth"`
	BoostingLearningRate float64 `envconfig:"CC_BOOSTING_LEARNING_RATE" yaml:"boosting_learning_rate"`

	RandomState uint64 `envconfig:"CC_RANDOM_STATE" yaml:"random_state"`
}

// StoreConfig holds model blob storage settings.
type StoreConfig struct {
	Type     string `envconfig:"CC_STORE_TYPE" yaml:"type"`
	Dir      string `envconfig:"CC_MODELS_DIR" yaml:"dir"`
	RedisURL string `envconfig:"CC_REDIS_URL" yaml:"redis_url"`
	Prefix   string `envconfig:"CC_STORE_PREFIX" yaml:"prefix"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"CC_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"CC_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"CC_KAFKA_GROUP" yaml:"kafka_group"`
	JournalPath  string `envconfig:"CC_EVENT_JOURNAL" yaml:"journal_path"` // "" = no journal
}

// ReportConfig holds evaluation report settings.
type ReportConfig struct {
	Dir  string `envconfig:"CC_REPORT_DIR" yaml:"dir"` // "" = no JSON artefacts
	TopN int    `envconfig:"CC_REPORT_TOP_N" yaml:"top_n"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"CC_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"CC_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Data = DataConfig{
		TextColumn:     "Consumer complaint narrative",
		CategoryColumn: "Product",
	}

	cfg.Text = TextConfig{
		Language:     "english",
		ResourcesDir: "./resources",
		Providers:    "embedded",
		CacheSize:    10000,
	}

	cfg.Features = FeaturesConfig{
		Vectorizer:   "tfidf",
		MaxFeatures:  5000,
		NGramMin:     1,
		NGramMax:     2,
		MinDF:        2,
		MaxDF:        0.8,
		TestFraction: 0.2,
		Seed:         42,
	}

	cfg.Train = TrainConfig{
		Models:               "logreg,naive_bayes,random_forest,svm,boosting",
		Folds:                5,
		Workers:              4,
		LogRegMaxIter:        1000,
		LogRegC:              1.0,
		NaiveBayesAlpha:      1.0,
		ForestEstimators:     100,
		ForestMaxDepth:       20,
		SVMMaxIter:           1000,
		SVMC:                 1.0,
		BoostingEstimators:   100,
		BoostingMaxDepth:     6,
		BoostingLearningRate: 0.1,
		RandomState:          42,
	}

	cfg.Store = StoreConfig{
		Type:     "file",
		Dir:      "./models",
		RedisURL: "redis://localhost:6379",
		Prefix:   "cc:models:",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Report = ReportConfig{
		TopN: 20,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.TextColumn == "" {
		errs = append(errs, "data.text_column must not be empty")
	}
	if c.Data.CategoryColumn == "" {
		errs = append(errs, "data.category_column must not be empty")
	}
	if c.Data.SampleSize < 0 {
		errs = append(errs, "data.sample_size must not be negative")
	}

	// Text validation
	if c.Text.Language != "english" {
		errs = append(errs, fmt.Sprintf("unsupported language: %s (must be english)", c.Text.Language))
	}
	validProviders := map[string]bool{"embedded": true, "http": true}
	for _, p := range c.Text.ProviderList() {
		if !validProviders[p] {
			errs = append(errs, fmt.Sprintf("invalid resource provider: %s (must be embedded or http)", p))
		}
		if p == "http" && c.Text.ResourceURL == "" {
			errs = append(errs, "resource_url is required for the http provider")
		}
	}

	if c.Text.FetchRate < 0 {
		errs = append(errs, "text.fetch_rate must not be negative")
	}
	if c.Text.CacheSize < 0 {
		errs = append(errs, "text.cache_size must not be negative")
	}

	// Features validation
	validVectorizers := map[string]bool{"tfidf": true, "count": true}
	if !validVectorizers[c.Features.Vectorizer] {
		errs = append(errs, fmt.Sprintf("invalid vectorizer: %s (must be tfidf or count)", c.Features.Vectorizer))
	}
	if c.Features.MaxFeatures < 1 {
		errs = append(errs, "max_features must be positive")
	}
	if c.Features.NGramMin < 1 || c.Features.NGramMax < c.Features.NGramMin {
		errs = append(errs, "ngram range must satisfy 1 <= ngram_min <= ngram_max")
	}
	if c.Features.MinDF < 1 {
		errs = append(errs, "min_df must be at least 1")
	}
	if c.Features.MaxDF <= 0 || c.Features.MaxDF > 1 {
		errs = append(errs, "max_df must be in (0, 1]")
	}
	if c.Features.TestFraction <= 0 || c.Features.TestFraction >= 1 {
		errs = append(errs, "test_fraction must be in (0, 1)")
	}

	// Train validation
	for _, m := range c.Train.ModelList() {
		if !validModels[m] {
			errs = append(errs, fmt.Sprintf("invalid model: %s", m))
		}
	}
	if c.Train.Folds == 1 || c.Train.Folds < 0 {
		errs = append(errs, "folds must be 0 (disabled) or at least 2")
	}
	if c.Train.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}
	if c.Train.LogRegC <= 0 || c.Train.SVMC <= 0 {
		errs = append(errs, "regularisation strength C must be positive")
	}
	if c.Train.NaiveBayesAlpha < 0 {
		errs = append(errs, "naive_bayes_alpha must not be negative")
	}
	if c.Train.ForestEstimators < 1 || c.Train.BoostingEstimators < 1 {
		errs = append(errs, "estimator counts must be positive")
	}
	if c.Train.BoostingLearningRate <= 0 || c.Train.BoostingLearningRate > 1 {
		errs = append(errs, "boosting_learning_rate must be in (0, 1]")
	}

	// Store validation
	validStoreTypes := map[string]bool{"file": true, "redis": true, "memory": true}
	if !validStoreTypes[c.Store.Type] {
		errs = append(errs, fmt.Sprintf("invalid store type: %s (must be file, redis, or memory)", c.Store.Type))
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Report.TopN < 1 {
		errs = append(errs, "report.top_n must be positive")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

var validModels = map[string]bool{
	"logreg":        true,
	"naive_bayes":   true,
	"random_forest": true,
	"svm":           true,
	"boosting":      true,
}

// ModelList returns the configured algorithm keys in order.
func (t TrainConfig) ModelList() []string {
	return splitList(t.Models)
}

// ProviderList returns the configured resource providers in order.
func (t TextConfig) ProviderList() []string {
	return splitList(t.Providers)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
