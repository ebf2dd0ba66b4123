// Package config loads NutriPipe settings from the environment, an optional
// .env file and command line flags bound through viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/flow"
	"github.com/BTreeMap/NutriPipe/internal/genai"
	"github.com/BTreeMap/NutriPipe/internal/scheduler"
	"github.com/BTreeMap/NutriPipe/internal/vault"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported transports.
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

const (
	// DefaultStateDir is the default directory for NutriPipe state data.
	DefaultStateDir = "/var/lib/nutripipe"
	// DefaultDBFileName is the SQLite profile database created in the state directory.
	DefaultDBFileName = "nutripipe.db"
	// DefaultWhatsAppDBFileName holds the whatsmeow device session.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultReminderMessage is broadcast by the water reminder.
	DefaultReminderMessage = "💧 Time to drink a glass of water!"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all NutriPipe settings.
type Config struct {
	Transport     string `mapstructure:"TRANSPORT"`
	StateDir      string `mapstructure:"NUTRIPIPE_STATE_DIR"`
	EncryptionKey string `mapstructure:"NUTRIPIPE_ENCRYPTION_KEY"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	OpenAIKey     string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
	OpenAIDebug   bool   `mapstructure:"OPENAI_DEBUG"`
	ImageDir      string `mapstructure:"IMAGE_DIR"`
	ImagesEnabled bool   `mapstructure:"IMAGES_ENABLED"`

	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	ReminderSchedule string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderMessage  string        `mapstructure:"REMINDER_MESSAGE"`

	TelegramToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	WhatsAppDSN      string `mapstructure:"WHATSAPP_DB_DSN"`
	WhatsAppQROutput string `mapstructure:"WHATSAPP_QR_OUTPUT"`
	WhatsAppNumeric  bool   `mapstructure:"WHATSAPP_NUMERIC_CODE"`

	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`
	TwilioWebhookURL string `mapstructure:"TWILIO_WEBHOOK_URL"`

	APIAddr        string   `mapstructure:"API_ADDR"`
	APIJWTSecret   string   `mapstructure:"API_JWT_SECRET"`
	APICORSOrigins []string `mapstructure:"API_CORS_ORIGINS"`
}

var keys = []string{
	"TRANSPORT", "NUTRIPIPE_STATE_DIR", "NUTRIPIPE_ENCRYPTION_KEY", "DATABASE_URL", "REDIS_URL", "LOG_LEVEL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_DEBUG", "IMAGE_DIR", "IMAGES_ENABLED",
	"SESSION_TTL", "REMINDER_SCHEDULE", "REMINDER_MESSAGE",
	"TELEGRAM_BOT_TOKEN",
	"WHATSAPP_DB_DSN", "WHATSAPP_QR_OUTPUT", "WHATSAPP_NUMERIC_CODE",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_WEBHOOK_URL",
	"API_ADDR", "API_JWT_SECRET", "API_CORS_ORIGINS",
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// Load reads configuration from the environment and any flags already bound
// to the global viper instance, then fills derived paths.
func Load() (Config, error) {
	viper.SetDefault("TRANSPORT", TransportTelegram)
	viper.SetDefault("NUTRIPIPE_STATE_DIR", DefaultStateDir)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("OPENAI_MODEL", genai.DefaultModel)
	viper.SetDefault("IMAGES_ENABLED", true)
	viper.SetDefault("SESSION_TTL", flow.DefaultSessionTTL.String())
	viper.SetDefault("REMINDER_SCHEDULE", scheduler.DefaultReminderSchedule)
	viper.SetDefault("REMINDER_MESSAGE", DefaultReminderMessage)
	viper.SetDefault("API_ADDR", ":8080")
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.APICORSOrigins = splitList(cfg.APICORSOrigins)

	if cfg.ImageDir == "" {
		cfg.ImageDir = filepath.Join(cfg.StateDir, "images")
	}
	if cfg.WhatsAppDSN == "" {
		if cfg.DatabaseURL != "" {
			cfg.WhatsAppDSN = cfg.DatabaseURL
		} else {
			cfg.WhatsAppDSN = filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName)
		}
	}

	slog.Debug("configuration loaded",
		"transport", cfg.Transport,
		"state_dir", cfg.StateDir,
		"encryption_key_set", cfg.EncryptionKey != "",
		"database_url_set", cfg.DatabaseURL != "",
		"redis_url_set", cfg.RedisURL != "",
		"openai_api_key_set", cfg.OpenAIKey != "",
		"openai_model", cfg.OpenAIModel,
		"telegram_token_set", cfg.TelegramToken != "",
		"twilio_auth_token_set", cfg.TwilioAuthToken != "",
		"api_addr", cfg.APIAddr,
		"api_jwt_secret_set", cfg.APIJWTSecret != "",
		"reminder_schedule", cfg.ReminderSchedule,
		"session_ttl", cfg.SessionTTL)
	return cfg, nil
}

// StoreDSN returns DATABASE_URL, or a SQLite file in the state directory.
func (c Config) StoreDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.StateDir, DefaultDBFileName)
}

// Cipher decodes the encryption key into a field cipher.
func (c Config) Cipher() (*vault.FieldCipher, error) {
	if c.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: NUTRIPIPE_ENCRYPTION_KEY is required (generate one with `nutripipe keygen`)", ErrInvalidConfig)
	}
	fc, err := vault.NewFromBase64(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: NUTRIPIPE_ENCRYPTION_KEY: %v", ErrInvalidConfig, err)
	}
	return fc, nil
}

// Validate checks everything `nutripipe run` needs before any resource is opened.
func (c Config) Validate() error {
	if _, err := c.Cipher(); err != nil {
		return err
	}
	if c.OpenAIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalidConfig)
	}
	if err := c.ValidateTransport(); err != nil {
		return err
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: SESSION_TTL must be positive, got %s", ErrInvalidConfig, c.SessionTTL)
	}
	if c.ReminderSchedule == "" {
		return fmt.Errorf("%w: REMINDER_SCHEDULE is empty", ErrInvalidConfig)
	}
	return nil
}

// ValidateTransport checks that the chosen transport has its credentials.
func (c Config) ValidateTransport() error {
	switch c.Transport {
	case TransportTelegram:
		if c.TelegramToken == "" {
			return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is required for the telegram transport", ErrInvalidConfig)
		}
	case TransportWhatsApp:
		if c.WhatsAppDSN == "" {
			return fmt.Errorf("%w: WHATSAPP_DB_DSN is required for the whatsapp transport", ErrInvalidConfig)
		}
	case TransportTwilio:
		var missing []string
		for k, v := range map[string]string{
			"TWILIO_ACCOUNT_SID": c.TwilioAccountSID,
			"TWILIO_AUTH_TOKEN":  c.TwilioAuthToken,
			"TWILIO_FROM_NUMBER": c.TwilioFromNumber,
		} {
			if v == "" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf("%w: twilio transport requires %s", ErrInvalidConfig, strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("%w: unknown TRANSPORT %q (want telegram, whatsapp or twilio)", ErrInvalidConfig, c.Transport)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// splitList accepts both a real list and a single comma separated entry.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
