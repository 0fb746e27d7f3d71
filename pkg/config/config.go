package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	AppEnv      string `env:"APP_ENV" env-default:"local"`
	BaseURL     string `env:"BASE_URL" env-default:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL" env-default:"file:db.sqlite"`
	// RedisURL switches the token ledger to redis when set.
	RedisURL string `env:"REDIS_URL"`

	Auth    AuthConfig
	Links   LinkConfig
	Jobs    JobConfig
	Mail    MailConfig
	Log     LogConfig
	Google  GoogleConfig
	Timeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"10s"`
}

type AuthConfig struct {
	AccessSecret    string        `env:"JWT_ACCESS_SECRET" env-default:"access-secret"`
	RefreshSecret   string        `env:"JWT_REFRESH_SECRET" env-default:"refresh-secret"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer          string        `env:"JWT_ISSUER" env-default:"shortlink"`
	BcryptCost      int           `env:"BCRYPT_COST" env-default:"12"`
}

type LinkConfig struct {
	ShortIDLength  int   `env:"SHORT_ID_LENGTH" env-default:"6"`
	AllowedTTLDays []int `env:"ALLOWED_TTL_DAYS" env-default:"1,3,7" env-separator:","`
}

type JobConfig struct {
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"15s"`
	SchedulerBatch        int           `env:"SCHEDULER_BATCH" env-default:"50"`
	LedgerJanitorInterval time.Duration `env:"LEDGER_JANITOR_INTERVAL" env-default:"30m"`
	NotifyQueueSize       int           `env:"NOTIFY_QUEUE_SIZE" env-default:"256"`
	NotifyWorkers         int           `env:"NOTIFY_WORKERS" env-default:"2"`
}

type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"MAIL_FROM" env-default:"no-reply@localhost"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

type GoogleConfig struct {
	ClientID      string   `env:"GOOGLE_CLIENT_ID"`
	ClientSecret  string   `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL   string   `env:"GOOGLE_REDIRECT_URL" env-default:"http://localhost:8080/auth/google/callback"`
	FrontendURL   string   `env:"FRONTEND_URL" env-default:"http://localhost:8080/dashboard"`
	AllowedEmails []string `env:"ALLOWED_EMAILS" env-separator:","`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("config: BASE_URL: %w", err)
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if len(c.Links.AllowedTTLDays) == 0 {
		return fmt.Errorf("config: ALLOWED_TTL_DAYS is empty")
	}
	for _, d := range c.Links.AllowedTTLDays {
		if d <= 0 {
			return fmt.Errorf("config: ALLOWED_TTL_DAYS: %d is not positive", d)
		}
	}
	return nil
}

// ServiceHost is the host part of BaseURL, lowercased.
func (c *Config) ServiceHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsProduction reports whether cookies should be marked secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
