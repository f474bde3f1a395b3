package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the deliberation engine. It supports the
// usual three-layer priority: compiled-in defaults, then environment
// variables, then functional options (highest).
//
//	cfg, err := NewConfig(
//	    core.WithHMACSecret(os.Getenv("HMAC_SECRET")),
//	    core.WithMaxRetries(5),
//	)
type Config struct {
	// Signed Gateway
	HMACSecret           string `json:"-" env:"HMAC_SECRET"`
	EnableRequestSigning bool   `json:"enable_request_signing" env:"ENABLE_REQUEST_SIGNING" default:"true"`

	// Retry Harness
	MaxRetries        int           `json:"max_retries" env:"MAX_RETRIES" default:"3"`
	InitialRetryDelay time.Duration `json:"initial_retry_delay" env:"INITIAL_RETRY_DELAY" default:"500ms"`
	MaxRetryDelay     time.Duration `json:"max_retry_delay" env:"MAX_RETRY_DELAY" default:"30s"`
	BackoffMultiplier float64       `json:"backoff_multiplier" env:"BACKOFF_MULTIPLIER" default:"2.0"`

	// Iterative Orchestrator
	DebateTimeoutMinutes int `json:"debate_timeout_minutes" env:"DEBATE_TIMEOUT_MINUTES" default:"30"`
	MaxDebateIterations  int `json:"max_debate_iterations" env:"MAX_DEBATE_ITERATIONS" default:"5"`

	// Consensus Analyzer
	ConsensusThreshold int `json:"consensus_threshold" env:"CONSENSUS_THRESHOLD" default:"80"`

	// Telemetry
	TelemetryDisabled bool `json:"telemetry_disabled" env:"TELEMETRY_DISABLED" default:"false"`

	// Logging
	Logging LoggingConfig `json:"logging"`

	// Fingerprint Cache
	Cache CacheConfig `json:"cache"`

	logger ComponentAwareLogger `json:"-"`
}

// LoggingConfig controls the ProductionLogger.
type LoggingConfig struct {
	Level       string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format      string `json:"format" env:"LOG_FORMAT" default:"json"`
	ServiceName string `json:"service_name" env:"SERVICE_NAME" default:"debate-engine"`
}

// CacheConfig controls the Fingerprint Cache.
type CacheConfig struct {
	MaxEntries      int           `json:"max_entries" env:"CACHE_MAX_ENTRIES" default:"1000"`
	MaxAge          time.Duration `json:"max_age" env:"CACHE_MAX_AGE" default:"24h"`
	MinConfidence   float64       `json:"min_confidence" env:"CACHE_MIN_CONFIDENCE" default:"0.7"`
	PersistencePath string        `json:"persistence_path" env:"CACHE_PERSISTENCE_PATH"`
	RedisAddr       string        `json:"redis_addr" env:"CACHE_REDIS_ADDR"`
	MaxScanFiles    int           `json:"max_scan_files" env:"CACHE_MAX_SCAN_FILES" default:"50"`
}

// Option mutates a Config during construction. Options are applied after
// environment variables, so they always win.
type Option func(*Config) error

// WithHMACSecret sets the Signed Gateway's shared secret.
func WithHMACSecret(secret string) Option {
	return func(c *Config) error {
		c.HMACSecret = secret
		return nil
	}
}

// WithRequestSigning toggles Signed Gateway authentication.
func WithRequestSigning(enabled bool) Option {
	return func(c *Config) error {
		c.EnableRequestSigning = enabled
		return nil
	}
}

// WithMaxRetries overrides the Retry Harness's attempt budget.
func WithMaxRetries(retries int) Option {
	return func(c *Config) error {
		if retries < 0 {
			return fmt.Errorf("%w: max retries must be >= 0", ErrInvalidConfiguration)
		}
		c.MaxRetries = retries
		return nil
	}
}

// WithRetryPacing overrides the Retry Harness's backoff schedule.
func WithRetryPacing(initial, max time.Duration, multiplier float64) Option {
	return func(c *Config) error {
		c.InitialRetryDelay = initial
		c.MaxRetryDelay = max
		c.BackoffMultiplier = multiplier
		return nil
	}
}

// WithDebateTimeout overrides the Orchestrator's wall-clock deadline.
func WithDebateTimeout(minutes int) Option {
	return func(c *Config) error {
		c.DebateTimeoutMinutes = minutes
		return nil
	}
}

// WithMaxDebateIterations overrides the Orchestrator's round budget.
func WithMaxDebateIterations(rounds int) Option {
	return func(c *Config) error {
		c.MaxDebateIterations = rounds
		return nil
	}
}

// WithConsensusThreshold overrides the Consensus Analyzer's termination bar.
func WithConsensusThreshold(threshold int) Option {
	return func(c *Config) error {
		c.ConsensusThreshold = threshold
		return nil
	}
}

// WithLogger installs an explicit logger rather than building the default
// ProductionLogger from LoggingConfig.
func WithLogger(logger ComponentAwareLogger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithCache overrides the Fingerprint Cache configuration wholesale.
func WithCache(cache CacheConfig) Option {
	return func(c *Config) error {
		c.Cache = cache
		return nil
	}
}

// NewConfig loads defaults, overlays environment variables, applies options
// in order, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	loadFromEnv(cfg)

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("core.NewConfig: %w", err)
		}
	}

	if cfg.logger == nil {
		pl := NewProductionLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.ServiceName)
		cfg.logger = pl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger returns the engine-wide component-aware logger, constructing the
// default ProductionLogger if none was configured.
func (c *Config) Logger() ComponentAwareLogger {
	if c.logger == nil {
		c.logger = NewProductionLogger(c.Logging.Level, c.Logging.Format, c.Logging.ServiceName)
	}
	return c.logger
}

// Validate checks invariants that functional options and env parsing cannot
// enforce on their own (e.g. cross-field relationships).
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: MaxRetries must be >= 0", ErrInvalidConfiguration)
	}
	if c.MaxDebateIterations < 1 {
		return fmt.Errorf("%w: MaxDebateIterations must be >= 1", ErrInvalidConfiguration)
	}
	if c.ConsensusThreshold < 0 || c.ConsensusThreshold > 100 {
		return fmt.Errorf("%w: ConsensusThreshold must be within 0..100", ErrInvalidConfiguration)
	}
	if c.EnableRequestSigning && c.HMACSecret == "" {
		return fmt.Errorf("%w: HMAC_SECRET is required when request signing is enabled", ErrMissingConfiguration)
	}
	if c.Cache.MinConfidence < 0 || c.Cache.MinConfidence > 1 {
		return fmt.Errorf("%w: Cache.MinConfidence must be within 0..1", ErrInvalidConfiguration)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		EnableRequestSigning: true,
		MaxRetries:           3,
		InitialRetryDelay:    500 * time.Millisecond,
		MaxRetryDelay:        30 * time.Second,
		BackoffMultiplier:    2.0,
		DebateTimeoutMinutes: 30,
		MaxDebateIterations:  5,
		ConsensusThreshold:   80,
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "debate-engine",
		},
		Cache: CacheConfig{
			MaxEntries:    1000,
			MaxAge:        24 * time.Hour,
			MinConfidence: 0.7,
			MaxScanFiles:  50,
		},
	}
}

// loadFromEnv overlays recognized environment variables onto already-defaulted
// values, following the precedence default < env < functional option.
func loadFromEnv(c *Config) {
	if v := os.Getenv("HMAC_SECRET"); v != "" {
		c.HMACSecret = v
	}
	if v, ok := envBool("ENABLE_REQUEST_SIGNING"); ok {
		c.EnableRequestSigning = v
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		c.MaxRetries = v
	}
	if v, ok := envDuration("INITIAL_RETRY_DELAY"); ok {
		c.InitialRetryDelay = v
	}
	if v, ok := envDuration("MAX_RETRY_DELAY"); ok {
		c.MaxRetryDelay = v
	}
	if v, ok := envFloat("BACKOFF_MULTIPLIER"); ok {
		c.BackoffMultiplier = v
	}
	if v, ok := envInt("DEBATE_TIMEOUT_MINUTES"); ok {
		c.DebateTimeoutMinutes = v
	}
	if v, ok := envInt("MAX_DEBATE_ITERATIONS"); ok {
		c.MaxDebateIterations = v
	}
	if v, ok := envInt("CONSENSUS_THRESHOLD"); ok {
		c.ConsensusThreshold = v
	}
	if v, ok := envBool("TELEMETRY_DISABLED"); ok {
		c.TelemetryDisabled = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.Logging.ServiceName = v
	}
	if v := os.Getenv("CACHE_PERSISTENCE_PATH"); v != "" {
		c.Cache.PersistencePath = v
	}
	if v := os.Getenv("CACHE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v, ok := envInt("CACHE_MAX_ENTRIES"); ok {
		c.Cache.MaxEntries = v
	}
	if v, ok := envDuration("CACHE_MAX_AGE"); ok {
		c.Cache.MaxAge = v
	}
	if v, ok := envFloat("CACHE_MIN_CONFIDENCE"); ok {
		c.Cache.MinConfidence = v
	}
	if v, ok := envInt("CACHE_MAX_SCAN_FILES"); ok {
		c.Cache.MaxScanFiles = v
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	return strings.EqualFold(v, "true") || v == "1", true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
