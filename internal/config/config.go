// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete gateway configuration.
type Config struct {
	WebDAV    WebDAVConfig    `yaml:"webdav" mapstructure:"webdav"`
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	IP        IPConfig        `yaml:"ip" mapstructure:"ip"`
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Debug     bool            `yaml:"debug" mapstructure:"debug"`
}

// WebDAVConfig configures the client-facing HTTP/WebDAV listener.
type WebDAVConfig struct {
	Port     int    `yaml:"port" mapstructure:"port"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Realm    string `yaml:"realm" mapstructure:"realm"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
}

// BackendConfig points at the file-management RPC backend.
type BackendConfig struct {
	Target         string `yaml:"target" mapstructure:"target"`
	DeadlineSecond int    `yaml:"deadline_seconds" mapstructure:"deadline_seconds"`
}

// CacheConfig bounds the auth and revocation caches (§6).
type CacheConfig struct {
	MaxSize        int `yaml:"max_size" mapstructure:"max_size"`
	ExpireMinutes  int `yaml:"expire_minutes" mapstructure:"expire_minutes"`
	PathCacheSize  int `yaml:"path_cache_size" mapstructure:"path_cache_size"`
	MetaCacheSize  int `yaml:"meta_cache_size" mapstructure:"meta_cache_size"`
}

// RateLimitConfig configures the sliding/fixed window limiter (§4.1).
type RateLimitConfig struct {
	IPRequestsPerMinute     int `yaml:"ip_requests_per_minute" mapstructure:"ip_requests_per_minute"`
	UserRequestsPerMinute   int `yaml:"user_requests_per_minute" mapstructure:"user_requests_per_minute"`
	GlobalRequestsPerSecond int `yaml:"global_requests_per_second" mapstructure:"global_requests_per_second"`
	CacheSize               int `yaml:"cache_size" mapstructure:"cache_size"`
}

// IPConfig is the allow/deny list configuration.
type IPConfig struct {
	WhitelistEnabled bool     `yaml:"whitelist_enabled" mapstructure:"whitelist_enabled"`
	WhitelistIPs     []string `yaml:"whitelist_ips" mapstructure:"whitelist_ips"`
	BlacklistIPs     []string `yaml:"blacklist_ips" mapstructure:"blacklist_ips"`
}

// JWTConfig configures bearer-token validation.
type JWTConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
}

// UploadConfig configures the streaming upload path to the backend.
type UploadConfig struct {
	ChunkSize      int `yaml:"chunk_size" mapstructure:"chunk_size"`
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// AuditConfig configures the async security audit sink (§4.6).
type AuditConfig struct {
	Workers      int    `yaml:"workers" mapstructure:"workers"`
	QueueSize    int    `yaml:"queue_size" mapstructure:"queue_size"`
	DBPath       string `yaml:"db_path" mapstructure:"db_path"`
	MaskPII      bool   `yaml:"mask_pii" mapstructure:"mask_pii"`
	BlacklistAfter int  `yaml:"blacklist_after_critical" mapstructure:"blacklist_after_critical"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures log rotation, mirroring altmount's slogutil setup.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

const defaultJWTTestSecret = "CHANGE_ME_JWT_TEST_ALGORITHM"

// DefaultConfig returns a config populated with the reference defaults.
func DefaultConfig() *Config {
	return &Config{
		WebDAV: WebDAVConfig{
			Port:   8080,
			Prefix: "/dav",
			Realm:  "FileManagement WebDAV",
			User:   "gateway",
		},
		Backend: BackendConfig{
			DeadlineSecond: 30,
		},
		Cache: CacheConfig{
			MaxSize:       10_000,
			ExpireMinutes: 15,
			PathCacheSize: 10_000,
			MetaCacheSize: 10_000,
		},
		RateLimit: RateLimitConfig{
			IPRequestsPerMinute:     300,
			UserRequestsPerMinute:   600,
			GlobalRequestsPerSecond: 1000,
			CacheSize:               50_000,
		},
		IP: IPConfig{
			WhitelistEnabled: false,
		},
		JWT: JWTConfig{
			Secret: defaultJWTTestSecret,
			Issuer: "davgateway",
		},
		Upload: UploadConfig{
			ChunkSize:      1 << 20, // 1 MiB, per §6
			TimeoutSeconds: 60,
		},
		Audit: AuditConfig{
			Workers:        2,
			QueueSize:      1000,
			DBPath:         "./gateway_audit.db",
			MaskPII:        true,
			BlacklistAfter: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     28,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// LoadConfig reads and validates configuration from disk, falling back to
// defaults for anything the file does not set.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil, fmt.Errorf("no configuration file found: use --config or create config.yaml")
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that would leave the gateway insecure
// or unable to start.
func (c *Config) Validate() error {
	if c.WebDAV.Port <= 0 || c.WebDAV.Port > 65535 {
		return fmt.Errorf("webdav port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.WebDAV.Prefix, "/") {
		return fmt.Errorf("webdav prefix must start with /")
	}

	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max_size must be greater than 0")
	}

	if c.Cache.ExpireMinutes <= 0 {
		return fmt.Errorf("cache expire_minutes must be greater than 0")
	}

	if c.RateLimit.CacheSize <= 0 {
		return fmt.Errorf("rate_limit cache_size must be greater than 0")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}

	if c.JWT.Secret == defaultJWTTestSecret && !c.Debug {
		return fmt.Errorf("refusing to start with the default jwt.secret outside debug mode; set jwt.secret")
	}

	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("upload chunk_size must be greater than 0")
	}

	for i, cidr := range c.IP.WhitelistIPs {
		if cidr == "" {
			return fmt.Errorf("ip.whitelist.ips[%d] is empty", i)
		}
	}

	return nil
}

// Equal reports whether two configs are identical for the purposes of
// deciding whether a hot-reloaded change requires reacting to it.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return fmt.Sprintf("%+v", c) == fmt.Sprintf("%+v", other)
}

// Getter returns the current configuration snapshot. Implemented by
// *Manager; used by components that need dynamic access without a hard
// dependency on the manager type.
type Getter func() *Config
