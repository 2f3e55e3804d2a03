package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port string

	// Knowledge base
	StaticDir      string
	KBDir          string
	ManifestName   string
	Watch          bool
	WatchDebounce  time.Duration
	ReconvertStale bool

	// PDF
	PDFValidate          bool
	PDFFallbackPdftotext bool

	// Reply webhook
	ReplyWebhookURL string
	ReplySessionID  string
	ReplyTimeout    time.Duration
	MaxPromptBytes  int64

	// Auth for rebuild endpoint
	AdminAPIKey string
}

// fileConfig mirrors Config for the optional TOML file. Unset keys keep defaults.
type fileConfig struct {
	Port           string `toml:"port"`
	StaticDir      string `toml:"static_dir"`
	KBDir          string `toml:"kb_dir"`
	ManifestName   string `toml:"manifest"`
	Watch          *bool  `toml:"watch"`
	WatchDebounce  string `toml:"watch_debounce"`
	ReconvertStale *bool  `toml:"reconvert_stale"`

	PDF struct {
		Validate          *bool `toml:"validate"`
		FallbackPdftotext *bool `toml:"fallback_pdftotext"`
	} `toml:"pdf"`

	Reply struct {
		WebhookURL     string `toml:"webhook_url"`
		SessionID      string `toml:"session_id"`
		Timeout        string `toml:"timeout"`
		MaxPromptBytes int64  `toml:"max_prompt_bytes"`
	} `toml:"reply"`
}

func defaults() Config {
	return Config{
		Port:                 "8090",
		StaticDir:            "public",
		ManifestName:         "manifest.json",
		WatchDebounce:        500 * time.Millisecond,
		PDFValidate:          true,
		PDFFallbackPdftotext: true,
		ReplySessionID:       "user-demo-web",
		ReplyTimeout:         60 * time.Second,
		MaxPromptBytes:       16384,
	}
}

// Load builds the configuration from the optional TOML file named by
// KBCHAT_CONFIG, then the environment. Environment values win.
func Load() (Config, error) {
	return LoadFile(os.Getenv("KBCHAT_CONFIG"))
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.StaticDir = envOr("STATIC_DIR", cfg.StaticDir)
	cfg.KBDir = envOr("KB_DIR", cfg.KBDir)
	cfg.ManifestName = envOr("KB_MANIFEST", cfg.ManifestName)
	cfg.Watch = envBool("KB_WATCH", cfg.Watch)
	cfg.WatchDebounce = envDuration("KB_WATCH_DEBOUNCE", cfg.WatchDebounce)
	cfg.ReconvertStale = envBool("KB_RECONVERT_STALE", cfg.ReconvertStale)

	cfg.PDFValidate = envBool("PDF_VALIDATE", cfg.PDFValidate)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.ReplyWebhookURL = envOr("REPLY_WEBHOOK_URL", cfg.ReplyWebhookURL)
	cfg.ReplySessionID = envOr("REPLY_SESSION_ID", cfg.ReplySessionID)
	cfg.ReplyTimeout = envDuration("REPLY_TIMEOUT", cfg.ReplyTimeout)
	cfg.MaxPromptBytes = envInt64("MAX_PROMPT_BYTES", cfg.MaxPromptBytes)

	cfg.AdminAPIKey = envOr("ADMIN_API_KEY", cfg.AdminAPIKey)

	if cfg.KBDir == "" {
		cfg.KBDir = filepath.Join(cfg.StaticDir, "knowledge_base")
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = "manifest.json"
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = 500 * time.Millisecond
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 60 * time.Second
	}
	if cfg.MaxPromptBytes <= 0 {
		cfg.MaxPromptBytes = 16384
	}
	if cfg.ReplySessionID == "" {
		cfg.ReplySessionID = "user-demo-web"
	}

	return cfg, nil
}

// Validate checks the settings the HTTP server needs.
func (c Config) Validate() error {
	if c.ReplyWebhookURL == "" {
		return fmt.Errorf("REPLY_WEBHOOK_URL is required")
	}
	if filepath.Ext(c.ManifestName) == ".txt" {
		return fmt.Errorf("KB_MANIFEST must not use the .txt extension")
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.StaticDir != "" {
		cfg.StaticDir = fc.StaticDir
	}
	if fc.KBDir != "" {
		cfg.KBDir = fc.KBDir
	}
	if fc.ManifestName != "" {
		cfg.ManifestName = fc.ManifestName
	}
	if fc.Watch != nil {
		cfg.Watch = *fc.Watch
	}
	if fc.WatchDebounce != "" {
		d, err := time.ParseDuration(fc.WatchDebounce)
		if err != nil {
			return fmt.Errorf("watch_debounce: %w", err)
		}
		cfg.WatchDebounce = d
	}
	if fc.ReconvertStale != nil {
		cfg.ReconvertStale = *fc.ReconvertStale
	}
	if fc.PDF.Validate != nil {
		cfg.PDFValidate = *fc.PDF.Validate
	}
	if fc.PDF.FallbackPdftotext != nil {
		cfg.PDFFallbackPdftotext = *fc.PDF.FallbackPdftotext
	}
	if fc.Reply.WebhookURL != "" {
		cfg.ReplyWebhookURL = fc.Reply.WebhookURL
	}
	if fc.Reply.SessionID != "" {
		cfg.ReplySessionID = fc.Reply.SessionID
	}
	if fc.Reply.Timeout != "" {
		d, err := time.ParseDuration(fc.Reply.Timeout)
		if err != nil {
			return fmt.Errorf("reply.timeout: %w", err)
		}
		cfg.ReplyTimeout = d
	}
	if fc.Reply.MaxPromptBytes > 0 {
		cfg.MaxPromptBytes = fc.Reply.MaxPromptBytes
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
