package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// GenerateRequest is a single prompt sent with one credential to one model
//
// APIKey: Secret of the credential used for this call
// Model: Provider model identifier
// Prompt: Full prompt text
// JSONResponse: Ask the provider for a JSON document instead of prose
type GenerateRequest struct {
	APIKey       string
	Model        string
	Prompt       string
	JSONResponse bool
}

// Generator sends a prompt to a text generation model and returns the raw text
// of its first candidate.
//
// Implementations must be safe for concurrent use and must return provider
// failures with enough of the provider message for callers to classify them
// (quota, overload, invalid key).
//
// Example:
//
//	gen, err := llm.NewGenerator(&llm.Config{Provider: llm.ProviderGemini, Timeout: 60})
//	if err != nil {
//		log.Fatal(err)
//	}
//	text, err := gen.Generate(ctx, llm.GenerateRequest{
//		APIKey: key,
//		Model:  "gemini-2.5-flash",
//		Prompt: prompt,
//		JSONResponse: true,
//	})
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// NewGenerator creates the generator for the configured provider, wrapped in
// a per credential+model circuit breaker when a threshold is configured.
//
// tripOn decides which failures count against the breaker; nil counts every
// non-context failure.
func NewGenerator(config *Config, tripOn func(error) bool) (Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient := &http.Client{Timeout: config.timeout()}

	var gen Generator
	switch strings.ToLower(config.Provider) {
	case ProviderOpenAI:
		gen = NewOpenAIGenerator(config, httpClient)
	default:
		gen = NewGeminiGenerator(config, httpClient)
	}

	if config.BreakerThreshold > 0 {
		gen = NewBreakerGenerator(gen, BreakerSettings{
			Threshold: config.BreakerThreshold,
			Cooldown:  config.BreakerCooldown,
			TripOn:    tripOn,
		})
	}
	return gen, nil
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
