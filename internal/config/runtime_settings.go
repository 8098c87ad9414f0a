package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/icron"
	"golang.org/x/text/language"
)

const redactedPrefix = "****"

// RuntimeSettings are the user-editable settings, persisted as JSON and
// changeable through the API without a restart
type RuntimeSettings struct {
	Credentials     []translator.Credential `json:"credentials"`
	Models          []string                `json:"models_preference"`
	AdvancedEnabled bool                    `json:"advanced_segmentation_enabled"`
	CustomPrompts   map[string]string       `json:"custom_prompts,omitempty"`
	NativeLangs     []string                `json:"native_langs"`
	PriorityLangs   []string                `json:"auto_translate_priority_list"`
	MaintenanceCron string                  `json:"maintenance_cron"`
}

func (s RuntimeSettings) Validate() error {
	if len(s.Models) == 0 {
		return fmt.Errorf("models_preference must name at least one model")
	}
	for _, m := range s.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("models_preference contains an empty model")
		}
	}
	seen := make(map[string]bool, len(s.Credentials))
	for _, cred := range s.Credentials {
		if strings.TrimSpace(cred.ID) == "" {
			return fmt.Errorf("credential id is required")
		}
		if seen[cred.ID] {
			return fmt.Errorf("duplicate credential id %q", cred.ID)
		}
		seen[cred.ID] = true
		if strings.TrimSpace(cred.Secret) == "" {
			return fmt.Errorf("credential %q has no secret", cred.ID)
		}
	}
	for _, code := range append(append([]string(nil), s.NativeLangs...), s.PriorityLangs...) {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("invalid language %q: %w", code, err)
		}
	}
	for code := range s.CustomPrompts {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("invalid custom prompt language %q: %w", code, err)
		}
	}
	if strings.TrimSpace(s.MaintenanceCron) == "" {
		return fmt.Errorf("maintenance_cron is required")
	}
	if err := icron.Validate(s.MaintenanceCron); err != nil {
		return fmt.Errorf("invalid maintenance_cron: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to show to clients, secrets reduced to their
// last four characters
func (s RuntimeSettings) Redacted() RuntimeSettings {
	out := s.clone()
	for i, cred := range out.Credentials {
		out.Credentials[i].Secret = redact(cred.Secret)
	}
	return out
}

// CustomPrompt returns the custom prompt of a language, matching equivalent
// tags such as ja and ja-JP
func (s RuntimeSettings) CustomPrompt(lang string) string {
	if p, ok := s.CustomPrompts[lang]; ok {
		return p
	}
	want, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	for code, p := range s.CustomPrompts {
		if tag, err := language.Parse(code); err == nil && sameLanguage(tag, want) {
			return p
		}
	}
	return ""
}

func (s RuntimeSettings) clone() RuntimeSettings {
	out := s
	out.Credentials = append([]translator.Credential(nil), s.Credentials...)
	out.Models = append([]string(nil), s.Models...)
	out.NativeLangs = append([]string(nil), s.NativeLangs...)
	out.PriorityLangs = append([]string(nil), s.PriorityLangs...)
	if s.CustomPrompts != nil {
		out.CustomPrompts = make(map[string]string, len(s.CustomPrompts))
		for k, v := range s.CustomPrompts {
			out.CustomPrompts[k] = v
		}
	}
	return out
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return redactedPrefix
	}
	return redactedPrefix + secret[len(secret)-4:]
}

func sameLanguage(a, b language.Tag) bool {
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		Credentials:     append([]translator.Credential(nil), c.Translate.Credentials...),
		Models:          append([]string(nil), c.Translate.Models...),
		AdvancedEnabled: c.Segment.AdvancedEnabled,
		CustomPrompts:   map[string]string{},
		NativeLangs:     []string{c.Translate.TargetLanguage.String()},
		PriorityLangs:   []string{"ja", "ko", "en"},
		MaintenanceCron: c.Maintenance.CronExpr,
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
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

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

// NewRuntimeSettingsStore loads path when it exists and falls back to
// initial otherwise
func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	current := initial
	loaded, err := LoadRuntimeSettingsFile(path)
	switch {
	case err == nil:
		current = fillDefaults(loaded, initial)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: current,
	}, nil
}

func fillDefaults(loaded, defaults RuntimeSettings) RuntimeSettings {
	if len(loaded.Models) == 0 {
		loaded.Models = defaults.Models
	}
	if len(loaded.Credentials) == 0 {
		loaded.Credentials = defaults.Credentials
	}
	if strings.TrimSpace(loaded.MaintenanceCron) == "" {
		loaded.MaintenanceCron = defaults.MaintenanceCron
	}
	if loaded.NativeLangs == nil {
		loaded.NativeLangs = defaults.NativeLangs
	}
	if loaded.PriorityLangs == nil {
		loaded.PriorityLangs = defaults.PriorityLangs
	}
	return loaded
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone(), nil
}

// UpdateRuntimeSettings replaces the settings. A credential whose secret is
// empty or still redacted keeps the stored secret of the same id.
func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(next.clone())
}

// SetCustomPrompt stores the custom prompt of one language; an empty prompt
// removes it
func (s *RuntimeSettingsStore) SetCustomPrompt(lang, prompt string) (RuntimeSettings, error) {
	if _, err := language.Parse(lang); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid language %q: %w", lang, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.clone()
	if next.CustomPrompts == nil {
		next.CustomPrompts = make(map[string]string)
	}
	if strings.TrimSpace(prompt) == "" {
		delete(next.CustomPrompts, lang)
	} else {
		next.CustomPrompts[lang] = prompt
	}
	return s.updateLocked(next)
}

func (s *RuntimeSettingsStore) updateLocked(next RuntimeSettings) (RuntimeSettings, error) {
	stored := make(map[string]string, len(s.current.Credentials))
	for _, cred := range s.current.Credentials {
		stored[cred.ID] = cred.Secret
	}
	for i, cred := range next.Credentials {
		if cred.Secret == "" || strings.HasPrefix(cred.Secret, redactedPrefix) {
			next.Credentials[i].Secret = stored[cred.ID]
		}
	}

	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	s.current = next
	return next.clone(), nil
}
