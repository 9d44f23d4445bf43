package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// FrontendURL prefixes the links in verification and reset mails.
	FrontendURL  string `env:"FRONTEND_URL,  default=http://localhost:3000"`
	CookieSecure bool   `env:"COOKIE_SECURE, default=false"`

	Token TokenConfig
	Mongo MongoConfig
	Redis RedisConfig
	Mail  MailConfig
}

type TokenConfig struct {
	Secret          string        `env:"JWT_SECRET, required"`
	Issuer          string        `env:"JWT_ISSUER,             default=authd"`
	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL,       default=15m"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL,      default=168h"`
	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_TTL, default=1h"`
	ResetTTL        time.Duration `env:"RESET_TOKEN_TTL,        default=15m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_system"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type MailConfig struct {
	Host       string `env:"SMTP_HOST"`
	Port       int    `env:"SMTP_PORT,        default=587"`
	User       string `env:"SMTP_USER"`
	Password   string `env:"SMTP_PASS"`
	FromName   string `env:"MAIL_FROM_NAME,   default=Auth System"`
	Workers    int    `env:"MAIL_WORKERS,     default=2"`
	MaxRetries uint64 `env:"MAIL_MAX_RETRIES, default=3"`
}

// Development reports whether human-friendly logs should be used.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l, which lets tests supply a map.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 {
		return nil, fmt.Errorf("load config: token lifetimes must be positive")
	}
	return &cfg, nil
}
