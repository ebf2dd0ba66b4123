package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/vault"
	"github.com/spf13/viper"
)

func validKey(t *testing.T) string {
	t.Helper()
	k, err := vault.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NUTRIPIPE_STATE_DIR", "/tmp/np")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport != TransportTelegram {
		t.Errorf("expected telegram transport, got %q", cfg.Transport)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("expected 24h session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.ReminderSchedule != "0 */2 * * *" {
		t.Errorf("unexpected reminder schedule %q", cfg.ReminderSchedule)
	}
	if !cfg.ImagesEnabled {
		t.Error("images should be enabled by default")
	}
	if cfg.ImageDir != filepath.Join("/tmp/np", "images") {
		t.Errorf("unexpected image dir %q", cfg.ImageDir)
	}
	if cfg.StoreDSN() != filepath.Join("/tmp/np", DefaultDBFileName) {
		t.Errorf("unexpected store DSN %q", cfg.StoreDSN())
	}
	if cfg.WhatsAppDSN != filepath.Join("/tmp/np", DefaultWhatsAppDBFileName) {
		t.Errorf("unexpected whatsapp DSN %q", cfg.WhatsAppDSN)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("TRANSPORT", " Twilio ")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("IMAGES_ENABLED", "false")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport != TransportTwilio {
		t.Errorf("transport should be normalised, got %q", cfg.Transport)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("expected 90m, got %s", cfg.SessionTTL)
	}
	if cfg.ImagesEnabled {
		t.Error("IMAGES_ENABLED=false should disable images")
	}
	if cfg.StoreDSN() != "postgres://u:p@localhost/db" || cfg.WhatsAppDSN != cfg.DatabaseURL {
		t.Errorf("DATABASE_URL should back both stores, got %q / %q", cfg.StoreDSN(), cfg.WhatsAppDSN)
	}
	if len(cfg.APICORSOrigins) != 2 || cfg.APICORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %v", cfg.APICORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	key := validKey(t)
	base := Config{
		Transport:        TransportTelegram,
		EncryptionKey:    key,
		OpenAIKey:        "sk-test",
		TelegramToken:    "123:abc",
		SessionTTL:       time.Hour,
		ReminderSchedule: "0 */2 * * *",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{"missing key", func(c *Config) { c.EncryptionKey = "" }, "NUTRIPIPE_ENCRYPTION_KEY"},
		{"bad key", func(c *Config) { c.EncryptionKey = "not-base64!" }, "NUTRIPIPE_ENCRYPTION_KEY"},
		{"missing openai", func(c *Config) { c.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"missing telegram token", func(c *Config) { c.TelegramToken = "" }, "TELEGRAM_BOT_TOKEN"},
		{"unknown transport", func(c *Config) { c.Transport = "smoke-signal" }, "TRANSPORT"},
		{"twilio credentials", func(c *Config) { c.Transport = TransportTwilio; c.TwilioAccountSID = "AC1" }, "TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %s, got %v", tt.mention, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
