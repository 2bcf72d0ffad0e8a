// Package config loads and hot-reloads gateway configuration via Viper,
// with environment-prefixed overrides and a file watch that refreshes the
// Manager's snapshot and notifies Watch callbacks. Components built from a
// Config value (the rate limiter's quota table, for one) keep the copy
// they were constructed with.
package config

import (
	"fmt"
	"time"

	"github.com/fitcore/aigateway/internal/collaborators"
)

// QuotaLimits is the (hourly, per-minute) pair looked up per (tier, class).
type QuotaLimits struct {
	HourlyLimit    int `mapstructure:"hourly_limit"`
	PerMinuteLimit int `mapstructure:"per_minute_limit"`
}

// TierQuotas maps endpoint class to its limits for one tier.
type TierQuotas struct {
	General   QuotaLimits `mapstructure:"general"`
	Expensive QuotaLimits `mapstructure:"expensive"`
}

// QuotaConfig is the immutable, startup-loaded quota table for all tiers.
type QuotaConfig struct {
	Free    TierQuotas `mapstructure:"free"`
	Premium TierQuotas `mapstructure:"premium"`
	Admin   TierQuotas `mapstructure:"admin"`
}

// Limits returns the quota for a (tier, class) pair. Exempt class carries
// no limits since C2 is never invoked for it.
func (q QuotaConfig) Limits(tier collaborators.Tier, class collaborators.EndpointClass) QuotaLimits {
	var t TierQuotas
	switch tier {
	case collaborators.TierPremium:
		t = q.Premium
	case collaborators.TierAdmin:
		t = q.Admin
	default:
		t = q.Free
	}
	if class == collaborators.ClassExpensive {
		return t.Expensive
	}
	return t.General
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KVConfig holds the remote key-value store's connection settings.
type KVConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Password string `mapstructure:"password"`
}

// AdmissionConfig toggles and tunes the admission middleware.
type AdmissionConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TokenSecret string `mapstructure:"token_secret"`
}

// RetrievalConfig tunes C5's fan-out behavior.
type RetrievalConfig struct {
	FanoutBudget time.Duration `mapstructure:"fanout_budget"`
}

// CacheConfig holds the three cache families' TTLs.
type CacheConfig struct {
	UserContextTTL     time.Duration `mapstructure:"user_context_ttl"`
	RetrievalContextTTL time.Duration `mapstructure:"retrieval_context_ttl"`
	ModelResponseTTL   time.Duration `mapstructure:"model_response_ttl"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	FilePath   string `mapstructure:"file_path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// Config is the full gateway configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	KV        KVConfig        `mapstructure:"kv"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Quotas    QuotaConfig     `mapstructure:"quotas"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks the minimal invariants the gateway needs to start.
func (c Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: server.address must not be empty")
	}
	if c.Admission.Enabled && c.Admission.TokenSecret == "" {
		return fmt.Errorf("config: admission.token_secret required when admission is enabled")
	}
	return nil
}

// Manager loads config, serves the current snapshot, and watches for
// changes, invoking onChange after each successful reload.
type Manager interface {
	Load() error
	Get() Config
	Validate() error
	Watch(onChange func(Config)) error
	Reload() error
}
