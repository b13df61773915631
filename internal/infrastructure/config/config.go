package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"go-notification-hub/internal/infrastructure/logger"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" default:"development"`
	HTTPAddr string `env:"HTTP_ADDR" default:":8080"`

	JWTSecret string `env:"JWT_SECRET"`

	DatabaseDSN string `env:"DATABASE_DSN" default:"file:notifications.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"`

	// Stream settings
	StreamTimeout   time.Duration `env:"STREAM_TIMEOUT" default:"1h"`
	PushTimeout     time.Duration `env:"PUSH_TIMEOUT" default:"10s"`
	FanOutLimit     int           `env:"FANOUT_LIMIT" default:"32"`
	CacheRetention  time.Duration `env:"CACHE_RETENTION" default:"10m"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" default:"30s"`
	SSEKeepAlive    time.Duration `env:"SSE_KEEPALIVE" default:"30s"`

	// Mail side channel
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" default:"no-reply@donation.local"`
	MailQueue    int    `env:"MAIL_QUEUE_SIZE" default:"256"`
	MailWorkers  int    `env:"MAIL_WORKERS" default:"2"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"console"`
	LogOutput string `env:"LOG_OUTPUT" default:"stdout"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("STREAM_TIMEOUT must be positive, got %s", c.StreamTimeout)
	}
	if c.PushTimeout <= 0 {
		return fmt.Errorf("PUSH_TIMEOUT must be positive, got %s", c.PushTimeout)
	}
	if c.FanOutLimit < 1 {
		return fmt.Errorf("FANOUT_LIMIT must be at least 1, got %d", c.FanOutLimit)
	}
	if c.CacheRetention < 0 {
		return fmt.Errorf("CACHE_RETENTION cannot be negative, got %s", c.CacheRetention)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive, got %s", c.JanitorInterval)
	}
	if c.SSEKeepAlive < 0 {
		return fmt.Errorf("SSE_KEEPALIVE cannot be negative, got %s", c.SSEKeepAlive)
	}
	if c.MailQueue < 1 || c.MailWorkers < 1 {
		return errors.New("MAIL_QUEUE_SIZE and MAIL_WORKERS must be at least 1")
	}
	return nil
}

// LoggerConfig derives the logger settings from the app config.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.NewDefaultConfig()
	lc.Level = logger.ParseLevel(c.LogLevel)
	lc.Format = c.LogFormat
	lc.Output = c.LogOutput
	lc.FilePath = c.LogFile
	lc.Fields["environment"] = c.AppEnv
	return lc
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
