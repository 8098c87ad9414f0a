package service

import (
	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/termmap"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// SettingsSource provides the current runtime settings
type SettingsSource interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
}

// GlossarySource provides the fixed term translations of a language pair
type GlossarySource interface {
	Lookup(sourceLang, targetLang string) (termmap.TermMap, error)
}

// RequestBuilder turns cue texts into a dispatcher request
type RequestBuilder func(texts []string) (translator.Request, error)

// settingsRequestBuilder reads the settings and the glossary on every batch
// so credentials, model preference, custom prompts and glossary edits made
// mid-session apply to the next batch
func settingsRequestBuilder(settings SettingsSource, glossary GlossarySource, sourceLang, targetLang string) RequestBuilder {
	return func(texts []string) (translator.Request, error) {
		req := translator.Request{
			Texts:      texts,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Glossary:   matchGlossary(glossary, sourceLang, targetLang, texts),
		}
		if settings == nil {
			return req, nil
		}
		current, err := settings.GetRuntimeSettings()
		if err != nil {
			return translator.Request{}, WrapError(err, ErrConfig, "failed to read runtime settings")
		}
		req.Credentials = current.Credentials
		req.Models = current.Models
		req.CustomPrompt = current.CustomPrompt(sourceLang)
		return req, nil
	}
}

// fillFromSettings completes a direct request with the configured
// credentials and, when the caller named none, the model preference
func fillFromSettings(settings SettingsSource, glossary GlossarySource, req translator.Request) (translator.Request, error) {
	if len(req.Glossary) == 0 {
		req.Glossary = matchGlossary(glossary, req.SourceLang, req.TargetLang, req.Texts)
	}
	if settings == nil {
		return req, nil
	}
	current, err := settings.GetRuntimeSettings()
	if err != nil {
		return translator.Request{}, WrapError(err, ErrConfig, "failed to read runtime settings")
	}
	req.Credentials = current.Credentials
	if len(req.Models) == 0 {
		req.Models = current.Models
	}
	if req.CustomPrompt == "" {
		req.CustomPrompt = current.CustomPrompt(req.SourceLang)
	}
	return req, nil
}

// matchGlossary returns the glossary terms used in texts. A glossary that
// cannot be read only costs consistency, so it is logged and skipped.
func matchGlossary(glossary GlossarySource, sourceLang, targetLang string, texts []string) map[string]string {
	if glossary == nil {
		return nil
	}
	tm, err := glossary.Lookup(sourceLang, targetLang)
	if err != nil {
		log.Warn("Glossary %s-%s unavailable: %v", sourceLang, targetLang, err)
		return nil
	}
	matched := termmap.Match(tm, texts).Matched
	if len(matched) == 0 {
		return nil
	}
	return matched
}
