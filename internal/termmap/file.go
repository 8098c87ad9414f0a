package termmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
)

// Filename returns the glossary filename for a language pair, using the
// base codes so "ja-JP" and "ja" share one file
func Filename(sourceLang, targetLang string) string {
	return "term_map." + normalizeLanguageCode(sourceLang) + "-" + normalizeLanguageCode(targetLang) + ".json"
}

func FilePath(dir, sourceLang, targetLang string) string {
	return filepath.Join(dir, Filename(sourceLang, targetLang))
}

// Load reads a term map from a JSON object file
func Load(path string) (TermMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tm TermMap
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("parse term map %s: %w", path, err)
	}
	if tm == nil {
		tm = TermMap{}
	}
	return tm, nil
}

// Save writes a term map through a temp file and rename
func Save(path string, tm TermMap) error {
	if tm == nil {
		tm = TermMap{}
	}
	data, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create glossary directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
