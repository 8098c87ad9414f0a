package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the provider answers without any text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrModelSkipped is returned while the breaker of a credential+model pair is open
	ErrModelSkipped = errors.New("model skipped after repeated malformed responses")
)

// ProviderError carries a failed provider call. Message keeps the provider
// text verbatim so quota, overload and credential problems stay recognizable.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Model, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
