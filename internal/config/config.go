package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/MimeLyc/caption-studio/pkg/icron"
	"github.com/MimeLyc/caption-studio/pkg/log"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config holds all application configuration, read from the environment
// (and an optional .env file) with sensible defaults.
//
// Environment Variables:
// Backend:
// - BACKEND_URL: base URL serving /predict and /translate (default: http://localhost:10000)
// - BACKEND_TIMEOUT: request timeout in seconds, 0 for none (default: 30)
//
// HTTP:
// - HTTP_ADDR: listen address of the local controller API (default: :8080)
// - UI_STATIC_DIR: directory with the browser UI (default: ./web)
// - UI_ENABLED: serve the browser UI (default: true)
// - CORS_ORIGINS: comma separated origins allowed to call the API (default: any)
//
// Speech:
// - SPEECH_COMMAND: espeak-ng compatible binary (default: espeak-ng)
// - SPEECH_RATE: default speaking rate (default: 1.0)
// - VOICE_REFRESH: cron spec for reloading voices (default: @every 1m)
//
// Misc:
// - DEFAULT_TARGET_LANGUAGE: translation target when none is given (default: fr)
// - PREVIEW_MAX_DIM: longest edge of preview thumbnails in pixels (default: 320)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - SETTINGS_FILE: runtime settings file, JSON or YAML (default: /app/config/settings.json)
type Config struct {
	Backend   BackendConfig   `json:"backend"`
	HTTP      HTTPConfig      `json:"http"`
	Speech    SpeechConfig    `json:"speech"`
	Translate TranslateConfig `json:"translate"`
	Preview   PreviewConfig   `json:"preview"`
	Log       LogConfig       `json:"log"`
}

type BackendConfig struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
}

type HTTPConfig struct {
	Addr        string   `json:"addr"`
	UIStaticDir string   `json:"ui_static_dir"`
	UIEnabled   bool     `json:"ui_enabled"`
	CORSOrigins []string `json:"cors_origins"`
}

type SpeechConfig struct {
	Command      string  `json:"command"`
	Rate         float64 `json:"rate"`
	VoiceRefresh string  `json:"voice_refresh"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
}

type PreviewConfig struct {
	MaxDim int `json:"max_dim"`
}

type LogConfig struct {
	Level log.LogLevel `json:"level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn("Failed to load %s: %v", f, err)
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Backend: BackendConfig{
			URL:     getEnvString("BACKEND_URL", "http://localhost:10000"),
			Timeout: getEnvInt("BACKEND_TIMEOUT", 30),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIStaticDir: getEnvString("UI_STATIC_DIR", "./web"),
			UIEnabled:   getEnvBool("UI_ENABLED", true),
			CORSOrigins: getEnvList("CORS_ORIGINS"),
		},
		Speech: SpeechConfig{
			Command:      getEnvString("SPEECH_COMMAND", "espeak-ng"),
			Rate:         getEnvFloat("SPEECH_RATE", 1.0),
			VoiceRefresh: getEnvString("VOICE_REFRESH", "@every 1m"),
		},
		Translate: TranslateConfig{
			TargetLanguage: getEnvLanguage("DEFAULT_TARGET_LANGUAGE", language.French),
		},
		Preview: PreviewConfig{
			MaxDim: getEnvInt("PREVIEW_MAX_DIM", 320),
		},
		Log: LogConfig{
			Level: log.ParseLevel(getEnvString("LOG_LEVEL", "info")),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.Backend.URL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be non-negative")
	}
	if _, err := icron.Parse(c.Speech.VoiceRefresh); err != nil {
		return fmt.Errorf("VOICE_REFRESH: %w", err)
	}
	if c.Preview.MaxDim <= 0 {
		return fmt.Errorf("PREVIEW_MAX_DIM must be positive")
	}
	return nil
}

// TargetLanguageCode is the short code sent to the translation backend.
func (c *Config) TargetLanguageCode() string {
	base, _ := c.Translate.TargetLanguage.Base()
	return base.String()
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var ret []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	return ret
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}
