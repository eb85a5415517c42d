// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the engine configuration through viper, fills in
// defaults, and rejects configurations whose weights do not add up.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eval-engine/internal/logging"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. EVAL_ENGINE_LOG_LEVEL.
const EnvPrefix = "EVAL_ENGINE"

// WeightTolerance is how far a weight group may stray from summing to 1.
const WeightTolerance = 0.01

var fieldTypes = []types.FieldType{
	types.FieldText, types.FieldNumber, types.FieldDate,
	types.FieldResource, types.FieldList, types.FieldStructured,
}

// SetDefaults registers the scalar defaults on v so environment overrides
// resolve even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.backend", string(types.StoreMemory))
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.namespace", "")
	v.SetDefault("archive.url", "")
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.timeout", "30s")
	v.SetDefault("archive.max_retries", 3)
	v.SetDefault("archive.user_agent", "")
	v.SetDefault("session.debounce", "300ms")
}

// New returns a viper instance with the engine's env prefix and defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the YAML file at path and returns the validated config.
func Load(path string) (types.EngineConfig, error) {
	v := New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return types.EngineConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return FromViper(v)
}

// FromViper decodes v's settings, fills defaults, and validates the result.
// The weight maps pass through YAML so the yaml tags of types.EngineConfig
// apply; scalar settings are read through viper's typed getters so
// environment overrides given as strings convert.
func FromViper(v *viper.Viper) (types.EngineConfig, error) {
	settings := map[string]any{
		"similarity": v.Get("similarity"),
		"quality":    v.Get("quality"),
		"domains":    v.Get("domains"),
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return types.EngineConfig{}, fmt.Errorf("encoding settings: %w", err)
	}
	var cfg types.EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Store = types.StoreConfig{
		Backend:   types.StoreBackend(v.GetString("store.backend")),
		Path:      v.GetString("store.path"),
		RedisAddr: v.GetString("store.redis_addr"),
		RedisDB:   v.GetInt("store.redis_db"),
		Namespace: v.GetString("store.namespace"),
	}
	cfg.Archive = types.ArchiveConfig{
		URL:        v.GetString("archive.url"),
		Dir:        v.GetString("archive.dir"),
		Timeout:    v.GetDuration("archive.timeout"),
		MaxRetries: v.GetInt("archive.max_retries"),
		UserAgent:  v.GetString("archive.user_agent"),
	}
	cfg.Log = types.LogConfig{Level: v.GetString("log.level"), Format: v.GetString("log.format")}
	cfg.Session = types.SessionConfig{Debounce: v.GetDuration("session.debounce")}

	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() types.EngineConfig {
	var cfg types.EngineConfig
	ApplyDefaults(&cfg)
	return cfg
}

// ApplyDefaults fills every unset value.
func ApplyDefaults(cfg *types.EngineConfig) {
	if cfg.Similarity == nil {
		cfg.Similarity = make(map[types.FieldType]types.SimilarityWeights)
	}
	if cfg.Quality == nil {
		cfg.Quality = make(map[types.FieldType]types.QualityConfig)
	}
	if cfg.Domains == nil {
		cfg.Domains = make(map[types.Domain]types.DomainConfig)
	}
	for _, ft := range fieldTypes {
		if _, ok := cfg.Similarity[ft]; !ok {
			cfg.Similarity[ft] = types.DefaultSimilarityWeights()
		}
		if _, ok := cfg.Quality[ft]; !ok {
			cfg.Quality[ft] = types.QualityConfig{Weights: types.DefaultDimensionWeights()}
		}
	}
	for _, d := range types.Domains {
		dc := cfg.Domains[d]
		if dc.AccuracyWeight == 0 && dc.QualityWeight == 0 {
			dc.AccuracyWeight, dc.QualityWeight = 0.5, 0.5
		}
		if dc.Importance == 0 {
			dc.Importance = 1
		}
		cfg.Domains[d] = dc
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = types.StoreMemory
	}
	if cfg.Archive.Timeout == 0 {
		cfg.Archive.Timeout = 30 * time.Second
	}
	if cfg.Archive.MaxRetries == 0 {
		cfg.Archive.MaxRetries = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Session.Debounce == 0 {
		cfg.Session.Debounce = 300 * time.Millisecond
	}
}

// Validate reports every problem in cfg.
func Validate(cfg types.EngineConfig) error {
	var errs []error
	known := make(map[types.FieldType]bool, len(fieldTypes))
	for _, ft := range fieldTypes {
		known[ft] = true
	}

	for ft, w := range cfg.Similarity {
		if !known[ft] {
			errs = append(errs, fmt.Errorf("similarity: unknown field type %q", ft))
			continue
		}
		errs = append(errs, checkWeights(fmt.Sprintf("similarity.%s", ft),
			w.EditDistance, w.Token, w.SpecialChar))
	}
	for ft, q := range cfg.Quality {
		if !known[ft] {
			errs = append(errs, fmt.Errorf("quality: unknown field type %q", ft))
			continue
		}
		errs = append(errs, checkWeights(fmt.Sprintf("quality.%s.weights", ft),
			q.Weights.Completeness, q.Weights.Consistency, q.Weights.Validity))
		if q.Range != nil && q.Range.Min > q.Range.Max {
			errs = append(errs, fmt.Errorf("quality.%s.range: min %v exceeds max %v", ft, q.Range.Min, q.Range.Max))
		}
	}
	for d, dc := range cfg.Domains {
		if !d.Valid() {
			errs = append(errs, fmt.Errorf("domains: unknown domain %q", d))
			continue
		}
		errs = append(errs, checkWeights(fmt.Sprintf("domains.%s", d), dc.AccuracyWeight, dc.QualityWeight))
		if dc.Importance < 0 {
			errs = append(errs, fmt.Errorf("domains.%s.importance: must not be negative", d))
		}
	}

	switch cfg.Store.Backend {
	case types.StoreMemory, types.StoreSQLite:
	case types.StoreRedis:
		if cfg.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr: required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", cfg.Store.Backend))
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}
	if cfg.Archive.Timeout < 0 || cfg.Archive.MaxRetries < 0 {
		errs = append(errs, errors.New("archive: timeout and max_retries must not be negative"))
	}
	if cfg.Session.Debounce < 0 {
		errs = append(errs, errors.New("session.debounce: must not be negative"))
	}
	return errors.Join(errs...)
}

// checkWeights requires non-negative weights summing to 1 within
// WeightTolerance.
func checkWeights(name string, ws ...float64) error {
	var sum float64
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%s: weights must not be negative", name)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%s: weights sum to %.3f, want 1", name, sum)
	}
	return nil
}
