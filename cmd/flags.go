package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// Flags holds the persistent command line flags. Every flag is bound to a
// viper key so the same value can come from a flag, a CCT_ variable or the
// YAML config file.
type Flags struct {
	CfgFile    string
	EnvFile    string
	DataDir    string
	DBPath     string
	Addr       string
	LogLevel   string
	LogFile    string
	Workers    int
	Provider   string
	APIKeys    string
	Models     string
	TargetLang string
	BatchSize  int
	Advanced   bool
}

// flagKeys maps flag names to viper keys
var flagKeys = map[string]string{
	"data-dir":    "data_dir",
	"db":          "db_path",
	"addr":        "http_addr",
	"log-level":   "log_level",
	"workers":     "workers",
	"provider":    "provider",
	"api-keys":    "api_keys",
	"models":      "models",
	"target-lang": "target_lang",
	"batch-size":  "batch_size",
	"advanced":    "advanced_enabled",
}

func setupFlags(fs *pflag.FlagSet, flags *Flags) {
	fs.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.cct.yaml)")
	fs.StringVar(&flags.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.StringVar(&flags.DataDir, "data-dir", "./data", "data directory for the cache database and settings")
	fs.StringVar(&flags.DBPath, "db", "", "SQLite cache path (default is <data-dir>/captions.db)")
	fs.StringVar(&flags.Addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&flags.LogLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&flags.LogFile, "log-file", "", "also write logs to this file")
	fs.IntVar(&flags.Workers, "workers", 2, "concurrent translation sessions")
	fs.StringVar(&flags.Provider, "provider", "gemini", "LLM provider: gemini or openai")
	fs.StringVar(&flags.APIKeys, "api-keys", "", "comma separated credentials, id:secret or bare secrets")
	fs.StringVar(&flags.Models, "models", "", "comma separated model preference")
	fs.StringVar(&flags.TargetLang, "target-lang", "zh-Hant", "translation target language")
	fs.IntVar(&flags.BatchSize, "batch-size", 30, "cues per translation request")
	fs.BoolVar(&flags.Advanced, "advanced", false, "enable the advanced segmentation pipeline")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// initConfig reads the dotenv file, the CCT_ environment and the optional
// YAML config file into v
func initConfig(v *viper.Viper, flags *Flags) error {
	if flags.EnvFile != "" {
		if err := godotenv.Load(flags.EnvFile); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to load %s: %v", flags.EnvFile, err)
		}
	}

	v.SetEnvPrefix("CCT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags.CfgFile != "" {
		v.SetConfigFile(flags.CfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".cct")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && flags.CfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	log.Debug("Using config file %s", v.ConfigFileUsed())
	return nil
}

// configOptions turns the keys set in v into config overrides. Keys left
// unset keep whatever NewFromEnv read from the environment.
func configOptions(v *viper.Viper) []config.Option {
	return []config.Option{func(c *config.Config) {
		if v.IsSet("data_dir") {
			c.System.DataDir = v.GetString("data_dir")
		}
		if v.IsSet("db_path") {
			c.System.DBFile = v.GetString("db_path")
		}
		if v.IsSet("http_addr") {
			c.HTTP.Addr = v.GetString("http_addr")
		}
		if v.IsSet("log_level") {
			c.System.LogLevel = v.GetString("log_level")
		}
		if v.IsSet("workers") {
			c.System.Workers = v.GetInt("workers")
		}
		if v.IsSet("provider") {
			c.LLM.Provider = v.GetString("provider")
		}
		if v.IsSet("api_keys") {
			c.Translate.Credentials = config.ParseCredentials(v.GetString("api_keys"))
		}
		if v.IsSet("models") {
			if models := splitCSV(v.GetString("models")); len(models) > 0 {
				c.Translate.Models = models
			}
		}
		if v.IsSet("target_lang") {
			if tag, err := language.Parse(v.GetString("target_lang")); err == nil {
				c.Translate.TargetLanguage = tag
			} else {
				log.Warn("Ignoring target language %q: %v", v.GetString("target_lang"), err)
			}
		}
		if v.IsSet("batch_size") {
			c.Translate.BatchSize = v.GetInt("batch_size")
		}
		if v.IsSet("advanced_enabled") {
			c.Segment.AdvancedEnabled = v.GetBool("advanced_enabled")
		}
	}}
}

func splitCSV(raw string) []string {
	ret := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// loadConfig builds the application config for a command
func loadConfig(cmd *cobra.Command, v *viper.Viper, flags *Flags) (*config.Config, error) {
	if err := initConfig(v, flags); err != nil {
		return nil, err
	}
	cfg, err := config.NewFromEnv(configOptions(v)...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := log.ParseLevel(cfg.System.LogLevel)
	log.InitLogger(level)
	if flags.LogFile != "" {
		fl, err := log.NewFileLogger(flags.LogFile, level)
		if err != nil {
			return nil, err
		}
		log.SetLogger(fl.Logger)
		cobra.OnFinalize(func() { _ = fl.Close() })
	}
	log.Debug("Command %s using data dir %s", cmd.Name(), cfg.System.DataDir)
	return cfg, nil
}
