package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// Run modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN" required:"true" validate:"required"`
	AdminChatID   int64  `envconfig:"ADMIN_CHAT_ID"` // 0 disables the feedback relay
	DatabaseURL   string `envconfig:"DATABASE_URL" default:"sqlite:///data/feedback_bot.db" validate:"required"`
	Timezone      string `envconfig:"TIMEZONE" default:"Europe/Moscow" validate:"required"`

	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"10m"`
	GraceWindow       time.Duration `envconfig:"GRACE_WINDOW" default:"0"` // 0 means PollInterval
	StartupDelay      time.Duration `envconfig:"STARTUP_DELAY" default:"30s"`
	DispatchRetention time.Duration `envconfig:"DISPATCH_RETENTION" default:"168h"`
	SendConcurrency   int           `envconfig:"SEND_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	ScheduleFile      string        `envconfig:"SCHEDULE_FILE"` // empty uses the embedded table

	RunMode       string `envconfig:"RUN_MODE" default:"polling" validate:"oneof=polling webhook"`
	WebhookURL    string `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" validate:"omitempty,max=256"` // echoed by Telegram in every webhook request
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	AdminAPIToken string `envconfig:"ADMIN_API_TOKEN"` // empty disables POST /admin/pass

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Debug    bool   `envconfig:"DEBUG"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `ignored:"true" validate:"-"`
}

// Grace returns the effective grace window.
func (c Config) Grace() time.Duration {
	if c.GraceWindow <= 0 {
		return c.PollInterval
	}
	return c.GraceWindow
}

var (
	validate        = validator.New()
	webhookSecretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)
)

// Load reads an optional env file (ENV_FILE, default ".env") and then
// environment variables into Config.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and resolves Location.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.RunMode == ModeWebhook && c.WebhookURL == "" {
		return errors.New("invalid config: WEBHOOK_URL is required in webhook mode")
	}
	if c.RunMode == ModeWebhook && c.WebhookSecret == "" {
		return errors.New("invalid config: WEBHOOK_SECRET is required in webhook mode")
	}
	if c.WebhookSecret != "" && !webhookSecretRe.MatchString(c.WebhookSecret) {
		return errors.New("invalid config: WEBHOOK_SECRET may only contain A-Z, a-z, 0-9, _ and -")
	}
	if c.PollInterval <= 0 {
		return errors.New("invalid config: POLL_INTERVAL must be positive")
	}
	if c.GraceWindow < 0 || c.StartupDelay < 0 || c.DispatchRetention < 0 {
		return errors.New("invalid config: durations must not be negative")
	}
	loc, err := domain.ValidateTZ(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid config: TIMEZONE: %w", err)
	}
	c.Location = loc
	return nil
}
