package translator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

const (
	placeholderInput      = "{json_input_text}"
	placeholderSourceLang = "{source_lang}"
	placeholderTargetLang = "{target_lang}"
)

//go:embed prompts/default.yaml
var defaultPromptBook []byte

// LanguagePrompt is the per-language part of the prompt book
type LanguagePrompt struct {
	Name   string `yaml:"name"`
	Custom string `yaml:"custom"`
}

// PromptBook holds the core template and per-language style/glossary prompts
type PromptBook struct {
	Target    string                    `yaml:"target"`
	Core      string                    `yaml:"core"`
	Languages map[string]LanguagePrompt `yaml:"languages"`
}

// DefaultPromptBook returns the embedded prompt book
func DefaultPromptBook() *PromptBook {
	book, err := parsePromptBook(defaultPromptBook)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt book: %v", err))
	}
	return book
}

// LoadPromptBook reads a YAML prompt book and fills what it leaves out from
// the embedded default
func LoadPromptBook(path string) (*PromptBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt book: %w", err)
	}
	override, err := parsePromptBook(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt book %s: %w", path, err)
	}

	book := DefaultPromptBook()
	if override.Target != "" {
		book.Target = override.Target
	}
	if strings.TrimSpace(override.Core) != "" {
		book.Core = override.Core
	}
	for code, lp := range override.Languages {
		merged := book.Languages[code]
		if lp.Name != "" {
			merged.Name = lp.Name
		}
		if lp.Custom != "" {
			merged.Custom = lp.Custom
		}
		book.Languages[code] = merged
	}
	return book, nil
}

func parsePromptBook(data []byte) (*PromptBook, error) {
	var book PromptBook
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, err
	}
	if book.Languages == nil {
		book.Languages = make(map[string]LanguagePrompt)
	}
	return &book, nil
}

// CustomPrompt returns the style/glossary prompt configured for a language
func (b *PromptBook) CustomPrompt(lang string) string {
	return b.Languages[lang].Custom
}

// LanguageName returns the English display name of a language code. Codes
// that cannot be parsed are returned as is.
func (b *PromptBook) LanguageName(code string) string {
	if lp, ok := b.Languages[code]; ok && lp.Name != "" {
		return lp.Name
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// Build renders the prompt for one batch
func (b *PromptBook) Build(req Request) (string, error) {
	input, err := json.Marshal(req.Texts)
	if err != nil {
		return "", fmt.Errorf("encode input texts: %w", err)
	}

	if strings.TrimSpace(req.OverridePrompt) != "" {
		return strings.ReplaceAll(req.OverridePrompt, placeholderInput, string(input)), nil
	}

	target := req.TargetLang
	if target == "" {
		target = b.Target
	}

	core := strings.NewReplacer(
		placeholderSourceLang, b.LanguageName(req.SourceLang),
		placeholderTargetLang, b.LanguageName(target),
		placeholderInput, string(input),
	).Replace(b.Core)

	custom := req.CustomPrompt
	if custom == "" {
		custom = b.CustomPrompt(req.SourceLang)
	}
	if glossary := glossaryBlock(req.Glossary); glossary != "" {
		custom = strings.TrimRight(custom, "\n") + "\n\n" + glossary
	}
	return custom + "\n\n" + core, nil
}

func glossaryBlock(terms map[string]string) string {
	if len(terms) == 0 {
		return ""
	}
	sources := make([]string, 0, len(terms))
	for source := range terms {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var b strings.Builder
	b.WriteString("Glossary, always translate these terms exactly as given:")
	for _, source := range sources {
		fmt.Fprintf(&b, "\n- %s => %s", source, terms[source])
	}
	return b.String()
}
