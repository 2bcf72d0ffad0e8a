package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for all overrides, e.g.
// AIGATEWAY_KV_ENDPOINT, AIGATEWAY_ADMISSION_TOKEN_SECRET.
const EnvPrefix = "AIGATEWAY"

type viperManager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	cfg      Config
	path     string
	watchers []func(Config)
}

// NewManager builds a Manager reading from the YAML file at path (if it
// exists) layered over DefaultConfig, with AIGATEWAY_-prefixed environment
// overrides taking precedence over both.
func NewManager(path string) Manager {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &viperManager{v: v, path: path}
}

func (m *viperManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *viperManager) loadLocked() error {
	setDefaults(m.v, DefaultConfig())

	if m.path != "" {
		if err := m.v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("config: read %s: %w", m.path, err)
			}
		}
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

func (m *viperManager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *viperManager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Validate()
}

func (m *viperManager) Reload() error {
	m.mu.Lock()
	if err := m.loadLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	cfg := m.cfg
	watchers := append([]func(Config){}, m.watchers...)
	m.mu.Unlock()

	for _, w := range watchers {
		w(cfg)
	}
	return nil
}

func (m *viperManager) Watch(onChange func(Config)) error {
	m.mu.Lock()
	m.watchers = append(m.watchers, onChange)
	path := m.path
	m.mu.Unlock()

	if path == "" {
		return nil
	}
	m.v.OnConfigChange(func(fsnotify.Event) {
		_ = m.Reload()
	})
	m.v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("kv.endpoint", d.KV.Endpoint)
	v.SetDefault("kv.password", d.KV.Password)

	v.SetDefault("admission.enabled", d.Admission.Enabled)
	v.SetDefault("admission.token_secret", d.Admission.TokenSecret)

	v.SetDefault("retrieval.fanout_budget", d.Retrieval.FanoutBudget)

	v.SetDefault("cache.user_context_ttl", d.Cache.UserContextTTL)
	v.SetDefault("cache.retrieval_context_ttl", d.Cache.RetrievalContextTTL)
	v.SetDefault("cache.model_response_ttl", d.Cache.ModelResponseTTL)

	v.SetDefault("quotas.free.general.hourly_limit", d.Quotas.Free.General.HourlyLimit)
	v.SetDefault("quotas.free.general.per_minute_limit", d.Quotas.Free.General.PerMinuteLimit)
	v.SetDefault("quotas.free.expensive.hourly_limit", d.Quotas.Free.Expensive.HourlyLimit)
	v.SetDefault("quotas.free.expensive.per_minute_limit", d.Quotas.Free.Expensive.PerMinuteLimit)

	v.SetDefault("quotas.premium.general.hourly_limit", d.Quotas.Premium.General.HourlyLimit)
	v.SetDefault("quotas.premium.general.per_minute_limit", d.Quotas.Premium.General.PerMinuteLimit)
	v.SetDefault("quotas.premium.expensive.hourly_limit", d.Quotas.Premium.Expensive.HourlyLimit)
	v.SetDefault("quotas.premium.expensive.per_minute_limit", d.Quotas.Premium.Expensive.PerMinuteLimit)

	v.SetDefault("quotas.admin.general.hourly_limit", d.Quotas.Admin.General.HourlyLimit)
	v.SetDefault("quotas.admin.general.per_minute_limit", d.Quotas.Admin.General.PerMinuteLimit)
	v.SetDefault("quotas.admin.expensive.hourly_limit", d.Quotas.Admin.Expensive.HourlyLimit)
	v.SetDefault("quotas.admin.expensive.per_minute_limit", d.Quotas.Admin.Expensive.PerMinuteLimit)

	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.console", d.Logging.Console)
}

// applyEnvOverrides re-reads a handful of environment variables directly,
// for names that don't survive Viper's dotted-key replacer cleanly (secrets
// in particular, which operators often set without going through a config
// file at all).
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("AIGATEWAY_KV_ENDPOINT"); ok {
		cfg.KV.Endpoint = v
	}
	if v, ok := lookupEnv("AIGATEWAY_KV_PASSWORD"); ok {
		cfg.KV.Password = v
	}
	if v, ok := lookupEnv("AIGATEWAY_ADMISSION_TOKEN_SECRET"); ok {
		cfg.Admission.TokenSecret = v
	}
}
