package types

import (
	"math"
	"time"
)

// SimilarityWeights weights the components of the automated text score.
// Token weight applies to token F1.
type SimilarityWeights struct {
	EditDistance float64 `json:"edit_distance" yaml:"edit_distance"`
	Token        float64 `json:"token" yaml:"token"`
	SpecialChar  float64 `json:"special_char" yaml:"special_char"`
}

// DefaultSimilarityWeights returns edit-distance 0.5, token 0.3, special-char 0.2.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{EditDistance: 0.5, Token: 0.3, SpecialChar: 0.2}
}

// Sum returns the total weight.
func (w SimilarityWeights) Sum() float64 {
	return w.EditDistance + w.Token + w.SpecialChar
}

// Normalized scales the weights to sum to 1. Negative weights count as zero;
// a non-positive total yields the defaults.
func (w SimilarityWeights) Normalized() SimilarityWeights {
	w.EditDistance = nonNegative(w.EditDistance)
	w.Token = nonNegative(w.Token)
	w.SpecialChar = nonNegative(w.SpecialChar)
	sum := w.Sum()
	if sum <= 0 {
		return DefaultSimilarityWeights()
	}
	return SimilarityWeights{
		EditDistance: w.EditDistance / sum,
		Token:        w.Token / sum,
		SpecialChar:  w.SpecialChar / sum,
	}
}

// DimensionWeights weights the quality dimensions. A zero weight disables
// the dimension.
type DimensionWeights struct {
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Consistency  float64 `json:"consistency" yaml:"consistency"`
	Validity     float64 `json:"validity" yaml:"validity"`
}

// DefaultDimensionWeights returns completeness 0.4, consistency 0.3, validity 0.3.
func DefaultDimensionWeights() DimensionWeights {
	return DimensionWeights{Completeness: 0.4, Consistency: 0.3, Validity: 0.3}
}

// Sum returns the total weight.
func (w DimensionWeights) Sum() float64 {
	return w.Completeness + w.Consistency + w.Validity
}

// Normalized scales the weights to sum to 1; a non-positive total yields
// the defaults.
func (w DimensionWeights) Normalized() DimensionWeights {
	w.Completeness = nonNegative(w.Completeness)
	w.Consistency = nonNegative(w.Consistency)
	w.Validity = nonNegative(w.Validity)
	sum := w.Sum()
	if sum <= 0 {
		return DefaultDimensionWeights()
	}
	return DimensionWeights{
		Completeness: w.Completeness / sum,
		Consistency:  w.Consistency / sum,
		Validity:     w.Validity / sum,
	}
}

// NumericRange bounds plausible values for number fields.
type NumericRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within the inclusive range.
func (r NumericRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// QualityConfig holds the quality dimension settings for one field type.
type QualityConfig struct {
	Weights DimensionWeights `json:"weights" yaml:"weights"`

	// Range is the plausible range for number fields. Nil accepts any finite value.
	Range *NumericRange `json:"range,omitempty" yaml:"range,omitempty"`
}

// DomainConfig holds the field list and weights for one evaluation domain.
type DomainConfig struct {
	// Fields lists the field ids rolled into the domain overall. Empty means
	// every scored field counts.
	Fields []string `json:"fields" yaml:"fields"`

	// AccuracyWeight and QualityWeight blend field scores into overallScore
	// (default 0.5 each).
	AccuracyWeight float64 `json:"accuracy_weight" yaml:"accuracy_weight"`
	QualityWeight  float64 `json:"quality_weight" yaml:"quality_weight"`

	// Importance weights the domain in the per-paper overall (default 1).
	Importance float64 `json:"importance" yaml:"importance"`
}

// Blend returns the normalized accuracy/quality weights, defaulting to
// 0.5/0.5.
func (c DomainConfig) Blend() (wA, wQ float64) {
	wA, wQ = nonNegative(c.AccuracyWeight), nonNegative(c.QualityWeight)
	sum := wA + wQ
	if sum <= 0 {
		return 0.5, 0.5
	}
	return wA / sum, wQ / sum
}

// StoreBackend selects the key-value persistence adapter.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreSQLite StoreBackend = "sqlite"
	StoreRedis  StoreBackend = "redis"
)

// StoreConfig holds settings for the evaluation metrics store.
type StoreConfig struct {
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// Path is the SQLite database file (default evaluations/store/metrics.db).
	Path string `json:"path" yaml:"path"`

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db" yaml:"redis_db"`

	// Namespace prefixes keys so several evaluation passes can share one store.
	Namespace string `json:"namespace" yaml:"namespace"`
}

// ArchiveConfig holds settings for archiving finished evaluations.
type ArchiveConfig struct {
	// URL is the remote JSON store endpoint. Empty disables the HTTP sink.
	URL string `json:"url" yaml:"url"`

	// Dir is the local archive directory (default evaluations/records).
	Dir string `json:"dir" yaml:"dir"`

	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// UserAgent is sent with archival requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format"`
}

// SessionConfig holds settings for an evaluator's in-progress session.
type SessionConfig struct {
	// Debounce is the idle window before edits are flushed (default 300ms).
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// EngineConfig groups all scoring, persistence, and ambient settings.
type EngineConfig struct {
	Similarity map[FieldType]SimilarityWeights `json:"similarity" yaml:"similarity"`
	Quality    map[FieldType]QualityConfig     `json:"quality" yaml:"quality"`
	Domains    map[Domain]DomainConfig         `json:"domains" yaml:"domains"`
	Store      StoreConfig                     `json:"store" yaml:"store"`
	Archive    ArchiveConfig                   `json:"archive" yaml:"archive"`
	Log        LogConfig                       `json:"log" yaml:"log"`
	Session    SessionConfig                   `json:"session" yaml:"session"`
}

// SimilarityFor returns the normalized similarity weights for a field type.
func (c EngineConfig) SimilarityFor(ft FieldType) SimilarityWeights {
	if w, ok := c.Similarity[ft]; ok {
		return w.Normalized()
	}
	return DefaultSimilarityWeights()
}

// QualityFor returns the quality settings for a field type with normalized weights.
func (c EngineConfig) QualityFor(ft FieldType) QualityConfig {
	q, ok := c.Quality[ft]
	if !ok {
		return QualityConfig{Weights: DefaultDimensionWeights()}
	}
	q.Weights = q.Weights.Normalized()
	return q
}

// DomainFor returns the configuration of a domain, or defaults when absent.
func (c EngineConfig) DomainFor(d Domain) DomainConfig {
	if dc, ok := c.Domains[d]; ok {
		return dc
	}
	return DomainConfig{AccuracyWeight: 0.5, QualityWeight: 0.5, Importance: 1}
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
