package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures BreakerGenerator
//
// Threshold: consecutive counted failures that open the breaker
// Cooldown: how long an open breaker rejects calls before probing again
// TripOn: which failures count, nil counts every non-context failure
type BreakerSettings struct {
	Threshold int
	Cooldown  time.Duration
	TripOn    func(error) bool
}

// BreakerGenerator keeps one circuit breaker per credential+model pair so a
// model that keeps returning unusable output is skipped without spending a
// request. Quota and credential failures are handled by the caller's
// cooldowns and are normally excluded through TripOn.
type BreakerGenerator struct {
	next     Generator
	settings BreakerSettings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreakerGenerator(next Generator, settings BreakerSettings) *BreakerGenerator {
	if settings.Threshold <= 0 {
		settings.Threshold = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 2 * time.Minute
	}
	return &BreakerGenerator{
		next:     next,
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakerGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	cb := b.breaker(req)
	out, err := cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%s: %w", req.Model, ErrModelSkipped)
	}
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

// State reports the breaker state of a credential+model pair
func (b *BreakerGenerator) State(apiKey, model string) gobreaker.State {
	return b.breaker(GenerateRequest{APIKey: apiKey, Model: model}).State()
}

func (b *BreakerGenerator) breaker(req GenerateRequest) *gobreaker.CircuitBreaker {
	name := fingerprint(req.APIKey) + "/" + req.Model

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[name]; ok {
		return cb
	}

	threshold := uint32(b.settings.Threshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			if b.settings.TripOn == nil {
				return false
			}
			return !b.settings.TripOn(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Model breaker %s: %s -> %s", name, from, to)
		},
	})
	b.breakers[name] = cb
	return cb
}

// fingerprint identifies a secret in logs and breaker names without exposing it
func fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}
