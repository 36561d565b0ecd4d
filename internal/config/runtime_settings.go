package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/caption-studio/pkg/icron"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings are the values that can be changed while the controller
// is running and survive restarts through the settings file.
type RuntimeSettings struct {
	BackendURL     string  `json:"backend_url" yaml:"backend_url"`
	TargetLanguage string  `json:"target_language" yaml:"target_language"`
	SpeechRate     float64 `json:"speech_rate" yaml:"speech_rate"`
	VoiceRefresh   string  `json:"voice_refresh" yaml:"voice_refresh"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.BackendURL) == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.Parse(s.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend_url: %q", s.BackendURL)
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language: %w", err)
	}
	if s.SpeechRate <= 0 {
		return fmt.Errorf("speech_rate must be positive")
	}
	if strings.TrimSpace(s.VoiceRefresh) == "" {
		return fmt.Errorf("voice_refresh is required")
	}
	if _, err := icron.Parse(s.VoiceRefresh); err != nil {
		return fmt.Errorf("invalid voice_refresh: %w", err)
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		BackendURL:     c.Backend.URL,
		TargetLanguage: c.Translate.TargetLanguage.String(),
		SpeechRate:     c.Speech.Rate,
		VoiceRefresh:   c.Speech.VoiceRefresh,
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.BackendURL) != "" {
			c.Backend.URL = settings.BackendURL
		}
		if tag, err := language.Parse(settings.TargetLanguage); err == nil {
			c.Translate.TargetLanguage = tag
		}
		if settings.SpeechRate > 0 {
			c.Speech.Rate = settings.SpeechRate
		}
		if strings.TrimSpace(settings.VoiceRefresh) != "" {
			c.Speech.VoiceRefresh = settings.VoiceRefresh
		}
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadRuntimeSettingsFile reads settings from path. Files ending in .yaml
// or .yml are parsed as YAML, everything else as JSON.
func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if isYAML(path) {
		err = yaml.Unmarshal(data, &settings)
	} else {
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var (
		content []byte
		err     error
	)
	if isYAML(path) {
		content, err = yaml.Marshal(settings)
	} else {
		content, err = json.MarshalIndent(settings, "", "  ")
		content = append(content, '\n')
	}
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore keeps the current settings in memory and persists
// every accepted update before it becomes current.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
