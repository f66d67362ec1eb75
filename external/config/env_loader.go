package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/punchclock/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env              string `env:"ENV" envDefault:"production"`
	DatabaseURL      string `env:"DATABASE_URL,required"`
	Timezone         string `env:"TIMEZONE" envDefault:"Asia/Tokyo"`
	OrgSettingsFile  string `env:"ORG_SETTINGS_FILE"`
	NotifierKind     string `env:"NOTIFIER" envDefault:"webhook"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`
	NotifyTimeoutSec int    `env:"NOTIFY_TIMEOUT_SEC" envDefault:"10"`
	JobIntervalSec   int    `env:"JOB_INTERVAL_SEC" envDefault:"60"`
	JobWorkers       int    `env:"JOB_WORKERS" envDefault:"4"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	org := internalconfig.DefaultOrgSettings()
	if raw.OrgSettingsFile != "" {
		loaded, err := LoadOrgSettings(raw.OrgSettingsFile)
		if err != nil {
			return nil, err
		}
		org = loaded
		slog.Debug("org settings loaded from file", "path", raw.OrgSettingsFile)
	}

	cfg := &internalconfig.Config{
		Env:              raw.Env,
		DatabaseURL:      raw.DatabaseURL,
		Timezone:         raw.Timezone,
		NotifierKind:     raw.NotifierKind,
		NotifyWebhookURL: raw.NotifyWebhookURL,
		DiscordToken:     raw.DiscordToken,
		DiscordChannelID: raw.DiscordChannelID,
		NotifyTimeoutSec: raw.NotifyTimeoutSec,
		JobIntervalSec:   raw.JobIntervalSec,
		JobWorkers:       raw.JobWorkers,
		Org:              org,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
