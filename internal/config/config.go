// Package config loads server settings from defaults, an optional YAML file and the
// environment (ACCOUNT_ prefix, with JWT_ aliases for token settings).
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ACCOUNT"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Limiter backends.
const (
	LimiterPostgres = "postgres"
	LimiterRedis    = "redis"
	LimiterMemory   = "memory"
	LimiterNone     = "none"
)

type Config struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Password  PasswordSettings  `mapstructure:"password"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Env      string `mapstructure:"env"`
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	TLSCert  string `mapstructure:"tls_cert"`
	TLSKey   string `mapstructure:"tls_key"`

	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the peer address is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a single-host prefix.
func (a AppSettings) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(a.TrustedProxies))
	for _, raw := range a.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("app.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("app.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// PostgresSettings configures the user store. An empty DSN selects the in-memory store.
type PostgresSettings struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type RedisSettings struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTSettings configures access token issuing. It is loaded once at startup and
// passed to the token manager.
type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Algorithm      string        `mapstructure:"algorithm"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	Leeway         time.Duration `mapstructure:"leeway"`

	// AccessTokenExpireMinutes, when positive, replaces AccessTokenTTL. It is read from
	// JWT_ACCESS_TOKEN_EXPIRE_MINUTES for deployments configured in whole minutes.
	AccessTokenExpireMinutes int `mapstructure:"access_token_expire_minutes"`
}

type PasswordSettings struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// RateLimitSettings configures login lockout per (email, client ip).
type RateLimitSettings struct {
	Backend  string        `mapstructure:"backend"`
	Window   time.Duration `mapstructure:"window"`
	MaxFails int           `mapstructure:"max_fails"`
	BlockFor time.Duration `mapstructure:"block_for"`
}

// Load reads configuration. path may be empty; a named file that cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := bindEnvs(v); err != nil {
		return nil, err
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if m := cfg.JWT.AccessTokenExpireMinutes; m > 0 {
		cfg.JWT.AccessTokenTTL = time.Duration(m) * time.Minute
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the production environment is selected.
func (c *Config) IsProduction() bool { return c.App.Env == EnvProduction }

func (c *Config) validate() error {
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("jwt.algorithm %q is not supported", c.JWT.Algorithm)
	}
	if c.JWT.AccessTokenExpireMinutes < 0 {
		return errors.New("jwt.access_token_expire_minutes must not be negative")
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return errors.New("jwt.access_token_ttl must be positive")
	}
	if c.IsProduction() && c.JWT.Secret == "" {
		return errors.New("jwt.secret is required in production")
	}
	switch c.RateLimit.Backend {
	case LimiterPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("rate_limit.backend=postgres needs postgres.dsn")
		}
	case LimiterRedis:
		if c.Redis.Addr == "" {
			return errors.New("rate_limit.backend=redis needs redis.addr")
		}
	case LimiterMemory, LimiterNone:
	default:
		return fmt.Errorf("rate_limit.backend %q is not supported", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxFails <= 0 {
		return errors.New("rate_limit.max_fails must be positive")
	}
	if _, err := c.App.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.grpc_addr", ":9090")
	v.SetDefault("app.tls_cert", "")
	v.SetDefault("app.tls_key", "")
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "account:login")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.access_token_expire_minutes", 0)
	v.SetDefault("jwt.issuer", "account-keeper")
	v.SetDefault("jwt.leeway", "30s")

	v.SetDefault("password.bcrypt_cost", 12)

	v.SetDefault("rate_limit.backend", LimiterNone)
	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.max_fails", 5)
	v.SetDefault("rate_limit.block_for", "15m")
}

// aliases lists extra environment names accepted for a key, besides ACCOUNT_<KEY>.
var aliases = map[string][]string{
	"jwt.secret":                      {"JWT_SECRET_KEY"},
	"jwt.algorithm":                   {"JWT_ALGORITHM"},
	"jwt.access_token_expire_minutes": {"JWT_ACCESS_TOKEN_EXPIRE_MINUTES"},
	"postgres.dsn":                    {"DATABASE_URL"},
}

func bindEnvs(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, envKey}, aliases[key]...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
