package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/icron"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - CCT_PROVIDER: gemini or openai (default: gemini)
// - CCT_API_URL: Provider base URL override (optional)
// - CCT_API_KEYS: Comma separated credentials, each "id:secret" or a bare secret
// - CCT_MODELS: Comma separated model preference (default: gemini-2.5-flash,gemini-2.5-flash-lite,gemini-2.5-pro)
// - CCT_TIMEOUT: Request timeout in seconds (default: 60)
// - CCT_TEMPERATURE: Sampling temperature, 0 keeps the provider default
// - CCT_MAX_TOKENS: Output token limit, 0 keeps the provider default
// - CCT_SITE_URL / CCT_APP_NAME: Attribution headers for OpenAI compatible gateways
// - CCT_BREAKER_THRESHOLD: Malformed answers in a row before a model is skipped (default: 3, 0 disables)
// - CCT_BREAKER_COOLDOWN_SECONDS: How long a skipped model stays skipped (default: 120)
//
// Translation:
// - CCT_BATCH_SIZE: Cues per dispatch (default: 30)
// - CCT_COOLDOWN_SECONDS: Credential pause after quota or overload (default: 60)
// - CCT_DEFAULT_RETRY_DELAY: Retry delay when the provider gives none, seconds (default: 10)
// - CCT_TARGET_LANG: Translation target (default: zh-Hant)
// - CCT_PROMPTS_FILE: YAML prompt book merged over the built-in one (optional)
//
// Segmentation:
// - CCT_PAUSE_THRESHOLD_MS (default: 500)
// - CCT_LINGUISTIC_PAUSE_MS (default: 150)
// - CCT_MULTI_SEG_RATIO (default: 0.35)
// - CCT_ADVANCED_LANGUAGE (default: ja)
// - CCT_ADVANCED_ENABLED (default: false)
//
// System:
// - CCT_DATA_DIR: Data directory (default: ./data)
// - CCT_DB_PATH: SQLite path (default: $CCT_DATA_DIR/captions.db)
// - CCT_HTTP_ADDR: HTTP listen address (default: :8080)
// - CCT_LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default: INFO)
// - CCT_WORKERS: Concurrent translation sessions (default: 2)
// - CCT_MAINTENANCE_CRON: Cache expiry schedule (default: every 10 minutes)
// - CCT_SNAPSHOT_TTL_HOURS: Cache snapshot lifetime (default: 168)
// - SETTINGS_FILE: Runtime settings file (default: $CCT_DATA_DIR/settings.json)
// - CCT_GLOSSARY_DIR: Term map directory, one term_map.<src>-<dst>.json per pair (default: $CCT_DATA_DIR/glossary)
type Config struct {
	LLM         LLMConfig         `json:"llm"`
	Translate   TranslateConfig   `json:"translate"`
	Segment     SegmentConfig     `json:"segment"`
	System      SystemConfig      `json:"system"`
	HTTP        HTTPConfig        `json:"http"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

// LLMConfig holds the provider connection settings
type LLMConfig struct {
	Provider               string  `json:"provider"`
	APIURL                 string  `json:"api_url"`
	Timeout                int     `json:"timeout"`
	Temperature            float64 `json:"temperature"`
	MaxTokens              int     `json:"max_tokens"`
	SiteURL                string  `json:"site_url"`
	AppName                string  `json:"app_name"`
	BreakerThreshold       int     `json:"breaker_threshold"`
	BreakerCooldownSeconds int     `json:"breaker_cooldown_seconds"`
}

type TranslateConfig struct {
	Credentials       []translator.Credential `json:"-"`
	Models            []string                `json:"models"`
	BatchSize         int                     `json:"batch_size"`
	CooldownSeconds   int                     `json:"cooldown_seconds"`
	DefaultRetryDelay int                     `json:"default_retry_delay"`
	TargetLanguage    language.Tag            `json:"target_language"`
	PromptsFile       string                  `json:"prompts_file"`
}

type SegmentConfig struct {
	PauseThresholdMs  int     `json:"pause_threshold_ms"`
	LinguisticPauseMs int     `json:"linguistic_pause_ms"`
	MultiSegRatio     float64 `json:"multi_seg_ratio"`
	AdvancedLanguage  string  `json:"advanced_language"`
	AdvancedEnabled   bool    `json:"advanced_enabled"`
}

type SystemConfig struct {
	DataDir      string `json:"data_dir"`
	DBFile       string `json:"db_file"`
	LogLevel     string `json:"log_level"`
	Workers      int    `json:"workers"`
	SettingsFile string `json:"settings_file"`
	GlossaryDir  string `json:"glossary_dir"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type MaintenanceConfig struct {
	CronExpr         string `json:"cron_expr"`
	SnapshotTTLHours int    `json:"snapshot_ttl_hours"`
}

// DBPath returns the SQLite file, defaulting to a file in the data directory
func (c *Config) DBPath() string {
	if c.System.DBFile != "" {
		return c.System.DBFile
	}
	return filepath.Join(c.System.DataDir, "captions.db")
}

// SettingsPath returns the runtime settings file
func (c *Config) SettingsPath() string {
	if c.System.SettingsFile != "" {
		return c.System.SettingsFile
	}
	return filepath.Join(c.System.DataDir, "settings.json")
}

// GlossaryPath returns the directory holding the per language pair term maps
func (c *Config) GlossaryPath() string {
	if c.System.GlossaryDir != "" {
		return c.System.GlossaryDir
	}
	return filepath.Join(c.System.DataDir, "glossary")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			Provider:               getEnvString("CCT_PROVIDER", "gemini"),
			APIURL:                 getEnvString("CCT_API_URL", ""),
			Timeout:                getEnvInt("CCT_TIMEOUT", 60),
			Temperature:            getEnvFloat("CCT_TEMPERATURE", 0),
			MaxTokens:              getEnvInt("CCT_MAX_TOKENS", 0),
			SiteURL:                getEnvString("CCT_SITE_URL", ""),
			AppName:                getEnvString("CCT_APP_NAME", ""),
			BreakerThreshold:       getEnvInt("CCT_BREAKER_THRESHOLD", 3),
			BreakerCooldownSeconds: getEnvInt("CCT_BREAKER_COOLDOWN_SECONDS", 120),
		},
		Translate: TranslateConfig{
			Credentials:       ParseCredentials(getEnvString("CCT_API_KEYS", "")),
			Models:            splitList(getEnvString("CCT_MODELS", strings.Join(translator.DefaultModels, ","))),
			BatchSize:         getEnvInt("CCT_BATCH_SIZE", 30),
			CooldownSeconds:   getEnvInt("CCT_COOLDOWN_SECONDS", 60),
			DefaultRetryDelay: getEnvInt("CCT_DEFAULT_RETRY_DELAY", 10),
			TargetLanguage:    getEnvLanguage("CCT_TARGET_LANG", language.TraditionalChinese),
			PromptsFile:       getEnvString("CCT_PROMPTS_FILE", ""),
		},
		Segment: SegmentConfig{
			PauseThresholdMs:  getEnvInt("CCT_PAUSE_THRESHOLD_MS", 500),
			LinguisticPauseMs: getEnvInt("CCT_LINGUISTIC_PAUSE_MS", 150),
			MultiSegRatio:     getEnvFloat("CCT_MULTI_SEG_RATIO", 0.35),
			AdvancedLanguage:  getEnvString("CCT_ADVANCED_LANGUAGE", "ja"),
			AdvancedEnabled:   getEnvBool("CCT_ADVANCED_ENABLED", false),
		},
		System: SystemConfig{
			DataDir:      getEnvString("CCT_DATA_DIR", "./data"),
			DBFile:       getEnvString("CCT_DB_PATH", ""),
			LogLevel:     getEnvString("CCT_LOG_LEVEL", "INFO"),
			Workers:      getEnvInt("CCT_WORKERS", 2),
			SettingsFile: getEnvString("SETTINGS_FILE", ""),
			GlossaryDir:  getEnvString("CCT_GLOSSARY_DIR", ""),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("CCT_HTTP_ADDR", ":8080"),
		},
		Maintenance: MaintenanceConfig{
			CronExpr:         getEnvString("CCT_MAINTENANCE_CRON", "0 */10 * * * *"),
			SnapshotTTLHours: getEnvInt("CCT_SNAPSHOT_TTL_HOURS", 168),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: provider=%s models=%v credentials=%d data_dir=%s", config.LLM.Provider, config.Translate.Models, len(config.Translate.Credentials), config.System.DataDir)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "openai":
	default:
		return fmt.Errorf("CCT_PROVIDER must be gemini or openai, got %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("CCT_TIMEOUT must be positive")
	}
	if len(c.Translate.Models) == 0 {
		return fmt.Errorf("CCT_MODELS must name at least one model")
	}
	if c.Translate.BatchSize <= 0 {
		return fmt.Errorf("CCT_BATCH_SIZE must be positive")
	}
	if c.Translate.CooldownSeconds <= 0 {
		return fmt.Errorf("CCT_COOLDOWN_SECONDS must be positive")
	}
	if c.Translate.DefaultRetryDelay <= 0 {
		return fmt.Errorf("CCT_DEFAULT_RETRY_DELAY must be positive")
	}
	if c.Segment.MultiSegRatio < 0 || c.Segment.MultiSegRatio > 1 {
		return fmt.Errorf("CCT_MULTI_SEG_RATIO must be between 0 and 1")
	}
	if c.Segment.PauseThresholdMs <= 0 || c.Segment.LinguisticPauseMs <= 0 {
		return fmt.Errorf("segmentation pauses must be positive")
	}
	if c.System.Workers <= 0 {
		return fmt.Errorf("CCT_WORKERS must be positive")
	}
	if err := icron.Validate(c.Maintenance.CronExpr); err != nil {
		return fmt.Errorf("invalid CCT_MAINTENANCE_CRON: %w", err)
	}
	seen := make(map[string]bool, len(c.Translate.Credentials))
	for _, cred := range c.Translate.Credentials {
		if seen[cred.ID] {
			return fmt.Errorf("duplicate credential id %q in CCT_API_KEYS", cred.ID)
		}
		seen[cred.ID] = true
	}
	return nil
}

// ParseCredentials reads "id:secret" or bare secrets separated by commas.
// Bare secrets get ids key-1, key-2, ... by position.
func ParseCredentials(raw string) []translator.Credential {
	ret := make([]translator.Credential, 0)
	for i, item := range splitList(raw) {
		id, secret, found := strings.Cut(item, ":")
		if !found || id == "" {
			id, secret = fmt.Sprintf("key-%d", i+1), item
		}
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		ret = append(ret, translator.Credential{ID: strings.TrimSpace(id), Name: strings.TrimSpace(id), Secret: secret})
	}
	return ret
}

func splitList(raw string) []string {
	ret := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
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
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}
