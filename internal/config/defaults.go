package config

import "time"

// DefaultConfig returns the gateway's built-in defaults, matching §6's
// illustrative tier table. Values are overridden by config file and
// environment in that order.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		KV: KVConfig{
			Endpoint: "",
		},
		Admission: AdmissionConfig{
			Enabled: true,
		},
		Retrieval: RetrievalConfig{
			FanoutBudget: 2 * time.Second,
		},
		Cache: CacheConfig{
			UserContextTTL:      3600 * time.Second,
			RetrievalContextTTL: 3600 * time.Second,
			ModelResponseTTL:    86400 * time.Second,
		},
		Quotas: QuotaConfig{
			Free: TierQuotas{
				General:   QuotaLimits{HourlyLimit: 60, PerMinuteLimit: 60},
				Expensive: QuotaLimits{HourlyLimit: 600, PerMinuteLimit: 10},
			},
			Premium: TierQuotas{
				General:   QuotaLimits{HourlyLimit: 300, PerMinuteLimit: 300},
				Expensive: QuotaLimits{HourlyLimit: 3000, PerMinuteLimit: 50},
			},
			Admin: TierQuotas{
				General:   QuotaLimits{HourlyLimit: 10000, PerMinuteLimit: 10000},
				Expensive: QuotaLimits{HourlyLimit: 10000, PerMinuteLimit: 10000},
			},
		},
		Logging: LoggingConfig{
			FilePath:   "logs/gateway.log",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 28,
			Console:    true,
		},
	}
}
