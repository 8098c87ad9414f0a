package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/llm"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.5-pro"}

const (
	DefaultCooldown   = 60 * time.Second
	DefaultRetryDelay = 10 * time.Second
)

// Dispatcher sends a batch through every credential and model until one
// answer parses. Credentials that hit quota or overload are put on cooldown
// and skipped by later dispatches until the cooldown expires.
type Dispatcher struct {
	gen        llm.Generator
	cooldowns  CooldownStore
	logs       LogSink
	prompts    *PromptBook
	classifier Classifier
	models     []string
	cooldown   time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

type Option func(*Dispatcher)

func WithCooldownStore(s CooldownStore) Option {
	return func(d *Dispatcher) { d.cooldowns = s }
}

func WithLogSink(s LogSink) Option {
	return func(d *Dispatcher) { d.logs = s }
}

func WithPromptBook(b *PromptBook) Option {
	return func(d *Dispatcher) { d.prompts = b }
}

func WithClassifier(c Classifier) Option {
	return func(d *Dispatcher) { d.classifier = c }
}

// WithModels sets the model preference used when a request names none
func WithModels(models ...string) Option {
	return func(d *Dispatcher) { d.models = append([]string(nil), models...) }
}

func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) { d.cooldown = cooldown }
}

// WithDefaultRetryDelay sets the delay reported for temporary failures
// that carry no provider hint
func WithDefaultRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.retryDelay = delay }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(gen llm.Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gen:        gen,
		cooldowns:  NewMemoryCooldownStore(),
		logs:       NewMemoryLogSink(),
		classifier: DefaultClassifier(),
		models:     append([]string(nil), DefaultModels...),
		cooldown:   DefaultCooldown,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.prompts == nil {
		d.prompts = DefaultPromptBook()
	}
	return d
}

// Logs returns the event log the dispatcher writes to
func (d *Dispatcher) Logs() LogSink {
	return d.logs
}

// Cooldowns returns the cooldown store the dispatcher reads and writes
func (d *Dispatcher) Cooldowns() CooldownStore {
	return d.cooldowns
}

// Prompts returns the prompt book used to build requests
func (d *Dispatcher) Prompts() *PromptBook {
	return d.prompts
}

// tally counts what happened across one dispatch
type tally struct {
	attempts      int
	temporary     int
	permanent     int
	batch         int
	cooled        int
	minRemaining  time.Duration
	lastTemporary string
	lastDetail    string
}

func (d *Dispatcher) Translate(ctx context.Context, req Request) (Result, error) {
	if d.gen == nil || d.now == nil {
		return Result{}, errors.New("dispatcher is not configured with a generator and clock")
	}
	if len(req.Texts) == 0 {
		return Result{Outcome: OutcomeSuccess, Translations: []string{}}, nil
	}
	if len(req.Credentials) == 0 {
		d.record(ctx, LogError, "No API key configured", "", "Add at least one API key in the settings.")
		return Result{Outcome: OutcomePermanent, Message: "no credentials configured"}, nil
	}

	models := req.Models
	if len(models) == 0 {
		models = d.models
	}
	if len(models) == 0 {
		return Result{Outcome: OutcomePermanent, Message: "no models configured"}, nil
	}

	prompt, err := d.prompts.Build(req)
	if err != nil {
		return Result{}, err
	}

	cooldowns, err := d.cooldowns.Cooldowns(ctx)
	if err != nil {
		log.Warn("Failed to load credential cooldowns, treating all credentials as available: %v", err)
		cooldowns = map[string]time.Time{}
	}

	var t tally
	for _, cred := range req.Credentials {
		if skip := d.checkCooldown(ctx, cred, cooldowns, &t); skip {
			continue
		}

	modelLoop:
		for _, model := range models {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			t.attempts++

			raw, genErr := d.gen.Generate(ctx, llm.GenerateRequest{
				APIKey:       cred.Secret,
				Model:        model,
				Prompt:       prompt,
				JSONResponse: true,
			})
			if genErr == nil {
				translations, parseErr := ParseTranslations(raw, len(req.Texts))
				if parseErr == nil {
					log.Info("Translated %d lines with credential %s and model %s", len(req.Texts), cred.Label(), model)
					return Result{Outcome: OutcomeSuccess, Translations: translations, Model: model}, nil
				}
				genErr = parseErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}

			detail := genErr.Error()
			t.lastDetail = detail
			class := d.classifier.Classify(genErr)
			switch class {
			case ClassTemporary:
				t.temporary++
				t.lastTemporary = detail
				if err := d.cooldowns.SetCooldown(ctx, cred.ID, d.now()); err != nil {
					log.Warn("Failed to store cooldown for credential %s: %v", cred.Label(), err)
				}
				log.Warn("Credential %s hit a temporary failure on %s, cooling down for %s", cred.Label(), model, d.cooldown)
				d.record(ctx, LogWarn, fmt.Sprintf("Credential '%s' is rate limited (%s)", cred.Label(), model), detail, remedyFor(class))
				break modelLoop
			case ClassPermanent:
				t.permanent++
				log.Error("Credential %s failed permanently on %s: %s", cred.Label(), model, detail)
				d.record(ctx, LogError, fmt.Sprintf("Credential '%s' is not usable", cred.Label()), detail, remedyFor(class))
				break modelLoop
			default:
				t.batch++
				log.Warn("Model %s could not handle the batch with credential %s: %s", model, cred.Label(), detail)
				d.record(ctx, LogWarn, fmt.Sprintf("Model '%s' failed for this batch", model), detail, remedyFor(class))
			}
		}
	}

	return d.conclude(ctx, t), nil
}

// checkCooldown reports whether the credential is still cooling down. Expired
// entries are removed.
func (d *Dispatcher) checkCooldown(ctx context.Context, cred Credential, cooldowns map[string]time.Time, t *tally) bool {
	at, ok := cooldowns[cred.ID]
	if !ok {
		return false
	}
	now := d.now()
	expiry := at.Add(d.cooldown)
	if now.Before(expiry) {
		remaining := expiry.Sub(now)
		if t.cooled == 0 || remaining < t.minRemaining {
			t.minRemaining = remaining
		}
		t.cooled++
		log.Debug("Skipping credential %s, cooling down for another %s", cred.Label(), remaining.Round(time.Second))
		return true
	}
	if err := d.cooldowns.ClearCooldown(ctx, cred.ID); err != nil {
		log.Warn("Failed to clear expired cooldown of credential %s: %v", cred.Label(), err)
	}
	return false
}

func (d *Dispatcher) conclude(ctx context.Context, t tally) Result {
	switch {
	case t.attempts == 0 && t.cooled > 0:
		delay := ceilSeconds(t.minRemaining)
		d.record(ctx, LogWarn, "All credentials are cooling down", "", remedyFor(ClassTemporary))
		return Result{
			Outcome:    OutcomeTemporary,
			RetryDelay: delay,
			Message:    fmt.Sprintf("all credentials cooling down, retry in %s", delay),
		}
	case t.temporary > 0:
		delay, ok := ParseRetryDelay(t.lastTemporary)
		if !ok {
			delay = d.retryDelay
		}
		return Result{Outcome: OutcomeTemporary, RetryDelay: delay, Message: t.lastTemporary}
	case t.batch > 0:
		d.record(ctx, LogError, "Every model failed for this batch", t.lastDetail, "The batch is marked as failed and can be retried manually.")
		return Result{Outcome: OutcomeBatch, Message: t.lastDetail}
	case t.permanent > 0 && t.permanent == t.attempts:
		return Result{Outcome: OutcomePermanent, Message: t.lastDetail}
	default:
		d.record(ctx, LogError, "Translation failed for an unknown reason", t.lastDetail, "")
		return Result{Outcome: OutcomeUnknown, Message: t.lastDetail}
	}
}

// Diagnose makes one minimal request per credential against the first model
func (d *Dispatcher) Diagnose(ctx context.Context, creds []Credential) ([]Diagnosis, error) {
	if len(creds) == 0 {
		d.record(ctx, LogWarn, "Diagnosis skipped: no API key configured", "", "Add at least one API key in the settings.")
		return []Diagnosis{}, nil
	}
	model := DefaultModels[0]
	if len(d.models) > 0 {
		model = d.models[0]
	}

	results := make([]Diagnosis, 0, len(creds))
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		_, err := d.gen.Generate(ctx, llm.GenerateRequest{APIKey: cred.Secret, Model: model, Prompt: "test"})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}
		diag := Diagnosis{CredentialID: cred.ID, Name: cred.Label(), Valid: err == nil}
		if err != nil {
			diag.Detail = err.Error()
			d.record(ctx, LogError, fmt.Sprintf("Credential '%s' failed diagnosis", cred.Label()), diag.Detail,
				"Check that the key was copied correctly, is enabled and has not reached its quota.")
		} else {
			d.record(ctx, LogInfo, fmt.Sprintf("Credential '%s' is valid", cred.Label()), "", "")
		}
		results = append(results, diag)
	}
	return results, nil
}

func (d *Dispatcher) record(ctx context.Context, level LogLevel, message, detail, remedy string) {
	if d.logs == nil {
		return
	}
	if err := d.logs.Append(context.WithoutCancel(ctx), NewLogEntry(d.now(), level, message, detail, remedy)); err != nil {
		log.Warn("Failed to append event log entry: %v", err)
	}
}

func ceilSeconds(d time.Duration) time.Duration {
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
