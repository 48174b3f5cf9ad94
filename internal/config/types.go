package config

import (
	"time"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	NER       NERConfig       `yaml:"ner" mapstructure:"ner"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
		Burst          int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EngineConfig contains detection engine configuration. The pattern table
// itself is data: custom patterns extend the default table and disabled ids
// remove from it, with the merged set validated as a whole at load.
type EngineConfig struct {
	MaxTextLength    int               `yaml:"max_text_length" mapstructure:"max_text_length"`
	DisabledPatterns []string          `yaml:"disabled_patterns" mapstructure:"disabled_patterns"`
	CustomPatterns   []phi.PatternSpec `yaml:"custom_patterns" mapstructure:"custom_patterns"`
}

// PatternSpecs returns the effective pattern table for this configuration.
func (c EngineConfig) PatternSpecs() []phi.PatternSpec {
	disabled := make(map[string]bool, len(c.DisabledPatterns))
	for _, id := range c.DisabledPatterns {
		disabled[id] = true
	}

	specs := make([]phi.PatternSpec, 0, len(c.CustomPatterns)+16)
	for _, spec := range phi.DefaultPatternTable() {
		if !disabled[spec.ID] {
			specs = append(specs, spec)
		}
	}
	for _, spec := range c.CustomPatterns {
		if !disabled[spec.ID] {
			specs = append(specs, spec)
		}
	}
	return specs
}

// NERConfig contains the optional entity-extraction collaborator settings.
type NERConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BatchConfig contains batch scanning configuration.
type BatchConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	ReportTopN int `yaml:"report_top_n" mapstructure:"report_top_n"`
}

// CacheConfig contains scan-verdict cache configuration.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// AuditConfig contains the boundary sink to the external audit ledger.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	MaxConnections int      `yaml:"max_connections" mapstructure:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			MaxTextLength: phi.DefaultMaxTextLength,
		},
		NER: NERConfig{
			Enabled: false,
			Timeout: 2 * time.Second,
		},
		Batch: BatchConfig{
			Workers:    4,
			ReportTopN: 10,
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			KeyPrefix:      "phisentinel",
			DefaultTTL:     15 * time.Minute,
			MaxConnections: 10,
			MinIdleConns:   2,
		},
		Audit: AuditConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			MaxConnections: 100,
			AllowedOrigins: []string{"*"},
		},
	}
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSec = 100
	cfg.Server.RateLimit.Burst = 200
	return cfg
}
