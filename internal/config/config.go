// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the structured environment overrides. SONDA_TOKENS__ACCESS_TTL
// sets tokens.access_ttl; a double underscore separates nesting levels.
const EnvPrefix = "SONDA_"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DeleteRuleShared  = "shared"
	DeleteRuleCreator = "creator"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Tokens    TokenConfig     `koanf:"tokens"`
	Access    AccessConfig    `koanf:"access"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	Migrate         bool          `koanf:"migrate"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	PoolTimeout  time.Duration `koanf:"pool_timeout"`
	OpTimeout    time.Duration `koanf:"op_timeout"`
}

// TokenConfig drives session token signing. SigningKey holds the PEM private
// key; VerifyKey is written next to it when keys are generated.
type TokenConfig struct {
	SigningKey   string        `koanf:"signing_key"`
	VerifyKey    string        `koanf:"verify_key"`
	AccessTTL    time.Duration `koanf:"access_ttl"`
	RefreshTTL   time.Duration `koanf:"refresh_ttl"`
	Issuer       string        `koanf:"issuer"`
	Audience     string        `koanf:"audience"`
	GenerateKeys bool          `koanf:"generate_keys"`
}

// AccessConfig selects who may delete an installation. "shared" applies the
// same rule as read and write; "creator" limits deletion to the creator.
type AccessConfig struct {
	DeleteRule string `koanf:"delete_rule"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load layers built-in defaults, the optional YAML file, the conventional
// platform variables (DATABASE_URL, PORT, ...) and finally SONDA_ prefixed
// variables. Later layers win.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	for section, values := range defaults() {
		for key, value := range values {
			if err := k.Set(section+"."+key, value); err != nil {
				return nil, fmt.Errorf("default %s.%s: %w", section, key, err)
			}
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", platformKey), nil); err != nil {
		return nil, fmt.Errorf("platform env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("%s env: %w", EnvPrefix, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]map[string]any {
	return map[string]map[string]any{
		"app": {
			"name":        "SONDA API",
			"version":     "1.0.0",
			"environment": EnvDevelopment,
		},
		"server": {
			"host":             "0.0.0.0",
			"port":             3000,
			"read_timeout":     "15s",
			"write_timeout":    "20s",
			"idle_timeout":     "90s",
			"shutdown_timeout": "15s",
			"drain_delay":      "5s",
			"request_timeout":  "10s",
			"max_body_bytes":   1 << 20,
		},
		"database": {
			"max_open_conns":     10,
			"max_idle_conns":     5,
			"conn_max_lifetime":  "1h",
			"conn_max_idle_time": "30m",
			"migrate":            true,
		},
		"redis": {
			"pool_size":      10,
			"min_idle_conns": 2,
			"pool_timeout":   "5s",
			"op_timeout":     "2s",
		},
		"tokens": {
			"signing_key":   "keys/signing.pem",
			"verify_key":    "keys/verify.pem",
			"access_ttl":    "1h",
			"refresh_ttl":   "168h",
			"issuer":        "sonda-api",
			"audience":      "sonda-clients",
			"generate_keys": false,
		},
		"access": {
			"delete_rule": DeleteRuleShared,
		},
		"rate_limit": {
			"requests":      100,
			"window":        "1m",
			"burst":         20,
			"auth_requests": 10,
			"auth_burst":    5,
		},
		"cors": {
			"allowed_origins": []string{"http://localhost:5173"},
			"allowed_methods": []string{
				"GET", "POST", "PATCH", "DELETE", "OPTIONS",
			},
			"allowed_headers": []string{
				"Accept", "Authorization", "Content-Type", "X-Request-ID",
			},
			"allow_credentials": true,
			"max_age":           300,
		},
		"log": {
			"level":  "info",
			"format": "json",
		},
		"otel": {
			"enabled":      false,
			"insecure":     true,
			"sample_rate":  0.1,
			"service_name": "sonda-api",
		},
		"metrics": {
			"enabled": true,
			"path":    "/metrics",
		},
	}
}

// platformVars are the names hosting platforms and the OTEL SDK set on
// their own.
var platformVars = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"PORT":                        "server.port",
	"ENVIRONMENT":                 "app.environment",
	"LOG_LEVEL":                   "log.level",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
}

func platformKey(name string) string {
	return platformVars[name]
}

func prefixedKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate reports every setting the process cannot start with.
func (c *Config) Validate() error {
	var problems []error

	require := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	require(c.Database.URL != "", "database.url (DATABASE_URL) is required")
	require(c.Redis.URL != "", "redis.url (REDIS_URL) is required")
	require(c.Tokens.SigningKey != "", "tokens.signing_key is required")
	require(c.Tokens.VerifyKey != "", "tokens.verify_key is required")
	require(c.Tokens.AccessTTL > 0, "tokens.access_ttl must be positive")
	require(
		c.Tokens.RefreshTTL >= c.Tokens.AccessTTL,
		"tokens.refresh_ttl (%s) is shorter than tokens.access_ttl (%s)",
		c.Tokens.RefreshTTL, c.Tokens.AccessTTL,
	)
	require(
		c.Access.DeleteRule == DeleteRuleShared || c.Access.DeleteRule == DeleteRuleCreator,
		"access.delete_rule must be %q or %q, got %q",
		DeleteRuleShared, DeleteRuleCreator, c.Access.DeleteRule,
	)
	require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d is out of range", c.Server.Port)
	require(c.Server.ReadTimeout > 0, "server.read_timeout must be positive")
	require(c.Server.WriteTimeout > 0, "server.write_timeout must be positive")
	require(c.Server.RequestTimeout > 0, "server.request_timeout must be positive")
	require(c.RateLimit.Window > 0, "rate_limit.window must be positive")

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			require(origin != "*", "cors.allowed_origins cannot contain * with credentials")
		}
	}

	if c.IsProduction() {
		require(!c.Tokens.GenerateKeys, "tokens.generate_keys is not allowed in production")
		require(!(c.Otel.Enabled && c.Otel.Insecure), "otel.insecure is not allowed in production")
	}

	return errors.Join(problems...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
