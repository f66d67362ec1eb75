package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	NotifierWebhook = "webhook"
	NotifierDiscord = "discord"
)

type Config struct {
	Env              string
	DatabaseURL      string
	Timezone         string
	NotifierKind     string
	NotifyWebhookURL string
	DiscordToken     string
	DiscordChannelID string
	NotifyTimeoutSec int
	JobIntervalSec   int
	JobWorkers       int
	Org              OrgSettings
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !c.IsPostgres() && !c.IsSQLite() {
		return fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite://")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	switch c.NotifierKind {
	case NotifierWebhook:
		if c.NotifyWebhookURL == "" {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when NOTIFIER=webhook")
		}
	case NotifierDiscord:
		if c.DiscordToken == "" || c.DiscordChannelID == "" {
			return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID are required when NOTIFIER=discord")
		}
	default:
		return fmt.Errorf("NOTIFIER must be %q or %q, got %q", NotifierWebhook, NotifierDiscord, c.NotifierKind)
	}
	if c.NotifyTimeoutSec <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT_SEC must be positive, got %d", c.NotifyTimeoutSec)
	}
	if c.JobIntervalSec <= 0 {
		return fmt.Errorf("JOB_INTERVAL_SEC must be positive, got %d", c.JobIntervalSec)
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive, got %d", c.JobWorkers)
	}
	if err := c.Org.Validate(); err != nil {
		return fmt.Errorf("org settings: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "TIMEZONE", value: c.Timezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) IsSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite://")
}

// SQLitePath strips the sqlite:// scheme.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}

// Location returns the organisation timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSec) * time.Second
}

func (c *Config) JobInterval() time.Duration {
	return time.Duration(c.JobIntervalSec) * time.Second
}
