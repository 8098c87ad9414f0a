package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/segment"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
)

const testPayload = `{"events":[
	{"tStartMs":0,"dDurationMs":1500,"segs":[{"utf8":"hello"}]},
	{"tStartMs":2000,"dDurationMs":1000,"segs":[{"utf8":"world"}]}
]}`

func writePayload(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clip.json")
	require.NoError(t, os.WriteFile(path, []byte(testPayload), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CCT_API_KEYS", "")
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigOptions_AppliesViperKeys(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "/tmp/cct")
	v.Set("workers", 5)
	v.Set("api_keys", "main:AIza-one,AIza-two")
	v.Set("models", "gemini-2.5-pro, gemini-2.5-flash")
	v.Set("target_lang", "ja")
	v.Set("advanced_enabled", true)

	cfg, err := config.NewFromEnv(configOptions(v)...)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cct", cfg.System.DataDir)
	assert.Equal(t, filepath.Join("/tmp/cct", "captions.db"), cfg.DBPath())
	assert.Equal(t, 5, cfg.System.Workers)
	require.Len(t, cfg.Translate.Credentials, 2)
	assert.Equal(t, "main", cfg.Translate.Credentials[0].ID)
	assert.Equal(t, "key-2", cfg.Translate.Credentials[1].ID)
	assert.Equal(t, []string{"gemini-2.5-pro", "gemini-2.5-flash"}, cfg.Translate.Models)
	assert.Equal(t, language.Japanese, cfg.Translate.TargetLanguage)
	assert.True(t, cfg.Segment.AdvancedEnabled)
}

func TestConfigOptions_UnsetKeysKeepDefaults(t *testing.T) {
	cfg, err := config.NewFromEnv(configOptions(viper.New())...)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.Translate.BatchSize)
}

func TestBindFlags_ChangedFlagWins(t *testing.T) {
	var flags Flags
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	setupFlags(fs, &flags)
	require.NoError(t, bindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--workers", "7", "--addr", "127.0.0.1:9000"}))

	assert.True(t, v.IsSet("workers"))
	assert.Equal(t, 7, v.GetInt("workers"))
	assert.Equal(t, "127.0.0.1:9000", v.GetString("http_addr"))
	assert.Equal(t, 7, flags.Workers)
	assert.False(t, v.IsSet("batch_size"))
}

func TestSegmentCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir)

	out, _, err := runRoot(t, "segment", path, "--lang", "en", "--data-dir", dir)
	require.NoError(t, err)

	var res service.SegmentResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "en", res.SourceLang)
	assert.Equal(t, segment.EngineLegacy, res.Decision.Engine)
	require.Len(t, res.Cues, 2)
	assert.Equal(t, "hello", res.Cues[0].Text)
	assert.Equal(t, 0, res.Cues[0].StartMs)
	assert.Equal(t, 2000, res.Cues[0].EndMs)
	assert.Equal(t, "world", res.Cues[1].Text)
	assert.Equal(t, 3000, res.Cues[1].EndMs)
}

func TestSegmentCommand_SRT(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir)

	out, _, err := runRoot(t, "segment", path, "--lang", "en", "--format", "srt", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "00:00:00,000 --> 00:00:02,000")
	assert.Contains(t, out, "world")
}

func TestSegmentCommand_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir)

	_, _, err := runRoot(t, "segment", path, "--lang", "en", "--format", "vtt", "--data-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestTranslateCommand_WithoutKeysStopsAndLogs(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir)

	out, stderr, err := runRoot(t, "translate", path, "--lang", "en", "--data-dir", dir)
	require.Error(t, err)
	assert.True(t, service.IsErrorType(err, service.ErrPermanent))
	assert.Contains(t, stderr, "clip: permanent_stopped, 0/2 translated")
	assert.Contains(t, out, "hello")

	logs, _, err := runRoot(t, "logs", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, logs, "No API key configured")

	_, _, err = runRoot(t, "logs", "--clear", "--data-dir", dir)
	require.NoError(t, err)
	logs, _, err = runRoot(t, "logs", "--data-dir", dir)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestTranslateCommand_SaveWritesNextToPayload(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir)

	out, _, err := runRoot(t, "translate", path, "--lang", "en", "--save", "--data-dir", dir)
	require.Error(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(dir, "clip.zh-Hant.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestTranslateCommand_RequiresInput(t *testing.T) {
	_, _, err := runRoot(t, "translate", "--data-dir", t.TempDir())
	require.Error(t, err)
}

func TestDiagnoseCommand_RequiresKeys(t *testing.T) {
	_, _, err := runRoot(t, "diagnose", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}
