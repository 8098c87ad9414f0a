package translator

import (
	"errors"
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/llm"
)

// FailureClass is how a single provider failure is handled
type FailureClass int

const (
	// ClassBatch means this batch could not be handled by this model; try the next model
	ClassBatch FailureClass = iota
	// ClassTemporary means the credential is throttled or the provider is overloaded
	ClassTemporary
	// ClassPermanent means the credential itself is unusable
	ClassPermanent
)

func (c FailureClass) String() string {
	switch c {
	case ClassTemporary:
		return "temporary"
	case ClassPermanent:
		return "permanent"
	default:
		return "batch"
	}
}

var (
	DefaultTemporaryMarkers = []string{
		"quota", "429", "503", "overloaded", "rate limit", "resource_exhausted", "unavailable",
	}
	DefaultPermanentMarkers = []string{
		"billing", "api key not valid", "api_key_invalid", "invalid api key", "permission_denied",
	}
)

// Classifier maps an error to a FailureClass by case-insensitive substring
// markers. Temporary markers are checked first.
type Classifier struct {
	Temporary []string
	Permanent []string
}

func DefaultClassifier() Classifier {
	return Classifier{
		Temporary: append([]string(nil), DefaultTemporaryMarkers...),
		Permanent: append([]string(nil), DefaultPermanentMarkers...),
	}
}

func (c Classifier) Classify(err error) FailureClass {
	if err == nil {
		return ClassBatch
	}
	if errors.Is(err, llm.ErrModelSkipped) || errors.Is(err, ErrResponseShape) {
		return ClassBatch
	}
	msg := strings.ToLower(err.Error())
	if containsMarker(msg, c.Temporary) {
		return ClassTemporary
	}
	if containsMarker(msg, c.Permanent) {
		return ClassPermanent
	}
	return ClassBatch
}

// TripOn reports whether a failure should count against a model's circuit breaker
func (c Classifier) TripOn(err error) bool {
	return c.Classify(err) == ClassBatch
}

func containsMarker(msg string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(msg, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func remedyFor(class FailureClass) string {
	switch class {
	case ClassTemporary:
		return "The credential is rate limited or the model is overloaded. It is paused and retried automatically; add more credentials to keep translating meanwhile."
	case ClassPermanent:
		return "Check that the API key was copied correctly, is enabled and has billing set up."
	default:
		return "The model answer could not be used for this batch. The next model in the preference list is tried."
	}
}
