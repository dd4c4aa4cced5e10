// Package config defines service configuration and its defaults.
//
// Values are layered by Load: defaults from New, then an optional YAML file,
// then PUCKCAST_* environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Completion policy names accepted by CompletionPolicy.
const (
	CompletionScore      = "score"
	CompletionFinalState = "final_state"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL is a lib/pq connection string. Empty keeps data in memory.
	DatabaseURL string `koanf:"database_url"`

	// RedisAddr enables the prediction cache and cross-process training lock.
	RedisAddr string `koanf:"redis_addr"`

	// PredictionCacheTTLSeconds bounds how long cached predictions live in Redis.
	PredictionCacheTTLSeconds int `koanf:"prediction_cache_ttl_s"`

	// NHLWebBaseURL serves schedule and standings by date.
	NHLWebBaseURL string `koanf:"nhl_web_base_url"`
	// NHLStatsBaseURL serves the team/franchise list.
	NHLStatsBaseURL string `koanf:"nhl_stats_base_url"`
	// HTTPTimeoutMS bounds every upstream request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// ArtifactDir holds serialized model artifacts.
	ArtifactDir string `koanf:"artifact_dir"`
	// ModelName names trained artifacts.
	ModelName string `koanf:"model_name"`

	ForestTrees    int   `koanf:"forest_trees"`
	ForestMaxDepth int   `koanf:"forest_max_depth"`
	ForestSeed     int64 `koanf:"forest_seed"`

	// ValidationRatio is the held-out share of the dataset.
	ValidationRatio float64 `koanf:"validation_ratio"`
	SplitSeed       int64   `koanf:"split_seed"`

	ExplainerSamples  int   `koanf:"explainer_samples"`
	ExplainerSeed     int64 `koanf:"explainer_seed"`
	ExplainerFeatures int   `koanf:"explainer_features"`
	ExplainTopK       int   `koanf:"explain_top_k"`

	// CompletionPolicy decides when a game counts as played: score or final_state.
	CompletionPolicy string `koanf:"completion_policy"`

	// TrainingQueueSize bounds pending training jobs.
	TrainingQueueSize int `koanf:"training_queue_size"`

	// Tokens guarding mutating endpoints. Empty disables the check.
	PredictToken string `koanf:"predict_token"`
	UpdateToken  string `koanf:"update_token"`
	TrainToken   string `koanf:"train_token"`

	// DefaultSeasons is a comma-separated season list used when a train
	// request names none, e.g. "20222023,20232024".
	DefaultSeasons string `koanf:"default_seasons"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		Addr:                      ":9080",
		PredictionCacheTTLSeconds: 86_400,
		NHLWebBaseURL:             "https://api-web.nhle.com/v1/",
		NHLStatsBaseURL:           "https://api.nhle.com/stats/rest/en/",
		HTTPTimeoutMS:             15_000,
		ArtifactDir:               "./trained_models",
		ModelName:                 "Random Forest",
		ForestTrees:               250,
		ForestMaxDepth:            15,
		ForestSeed:                31,
		ValidationRatio:           0.2,
		SplitSeed:                 31,
		ExplainerSamples:          5000,
		ExplainerSeed:             42,
		ExplainerFeatures:         10,
		ExplainTopK:               5,
		CompletionPolicy:          CompletionScore,
		TrainingQueueSize:         16,
		DefaultSeasons:            "20222023,20232024",
	}
}

// Validate checks invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ValidationRatio <= 0 || c.ValidationRatio >= 1:
		return fmt.Errorf("%w: validation_ratio must be in (0,1)", ErrInvalidConfig)
	case c.ForestTrees < 1:
		return fmt.Errorf("%w: forest_trees must be positive", ErrInvalidConfig)
	case c.ForestMaxDepth < 1:
		return fmt.Errorf("%w: forest_max_depth must be positive", ErrInvalidConfig)
	case c.ExplainTopK < 1:
		return fmt.Errorf("%w: explain_top_k must be positive", ErrInvalidConfig)
	}
	switch c.CompletionPolicy {
	case CompletionScore, CompletionFinalState:
	default:
		return fmt.Errorf("%w: unknown completion_policy %q", ErrInvalidConfig, c.CompletionPolicy)
	}
	if _, err := ParseSeasons(c.DefaultSeasons); err != nil {
		return fmt.Errorf("%w: default_seasons: %v", ErrInvalidConfig, err)
	}
	return nil
}

// HTTPTimeout returns the upstream timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// PredictionCacheTTL returns the cache TTL as a duration.
func (c *Config) PredictionCacheTTL() time.Duration {
	return time.Duration(c.PredictionCacheTTLSeconds) * time.Second
}

// Seasons returns DefaultSeasons parsed. Validate guarantees it parses.
func (c *Config) Seasons() []int {
	s, _ := ParseSeasons(c.DefaultSeasons)
	return s
}

// ParseSeasons parses "20222023,20232024" into season ids.
func ParseSeasons(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid season %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
