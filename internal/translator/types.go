package translator

import (
	"context"
	"time"
)

// Credential is one API key the dispatcher may rotate through
type Credential struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Secret string `json:"secret,omitempty"`
}

// Label returns the display name, falling back to the id
func (c Credential) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Outcome is the terminal classification of one dispatch
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTemporary Outcome = "temporary_failure"
	OutcomePermanent Outcome = "permanent_failure"
	OutcomeBatch     Outcome = "batch_failure"
	OutcomeUnknown   Outcome = "unknown_failure"
)

// Request is one batch of caption texts to translate
//
// Models: ordered model preference, the dispatcher default is used when empty
// CustomPrompt: per-language style/glossary prepended to the core template,
// the prompt book entry for SourceLang is used when empty
// OverridePrompt: replaces the whole prompt; only {json_input_text} is substituted
// Glossary: fixed term translations found in this batch
type Request struct {
	Texts          []string          `json:"texts"`
	SourceLang     string            `json:"source_lang"`
	TargetLang     string            `json:"target_lang,omitempty"`
	Models         []string          `json:"models_preference,omitempty"`
	Credentials    []Credential      `json:"-"`
	CustomPrompt   string            `json:"custom_prompt,omitempty"`
	OverridePrompt string            `json:"override_prompt,omitempty"`
	Glossary       map[string]string `json:"glossary,omitempty"`
}

// Result is what a dispatch produced. Translations is only set on success
// and has the same length and order as the request texts.
type Result struct {
	Outcome      Outcome       `json:"outcome"`
	Translations []string      `json:"translations,omitempty"`
	RetryDelay   time.Duration `json:"retry_delay,omitempty"`
	Message      string        `json:"message,omitempty"`
	Model        string        `json:"model,omitempty"`
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// RetryDelaySeconds is RetryDelay rounded up to whole seconds
func (r Result) RetryDelaySeconds() int {
	secs := int(r.RetryDelay / time.Second)
	if r.RetryDelay%time.Second != 0 {
		secs++
	}
	return secs
}

// Translator translates one batch. Classified provider failures are reported
// through Result; the error is reserved for cancellation and misuse.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// Diagnosis is the health of one credential
type Diagnosis struct {
	CredentialID string `json:"credential_id"`
	Name         string `json:"name"`
	Valid        bool   `json:"valid"`
	Detail       string `json:"detail,omitempty"`
}
