package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrResponseShape is returned when a model answer is not a JSON array of
// strings matching the input length
var ErrResponseShape = errors.New("response shape mismatch")

// ParseTranslations extracts the translated lines from a model answer. Code
// fences and text around the outermost JSON array are ignored.
func ParseTranslations(raw string, want int) ([]string, error) {
	body := stripCodeFence(strings.TrimSpace(raw))

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array in answer %q", ErrResponseShape, preview(body))
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseShape, err)
	}

	out := make([]string, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: element %d is not a string", ErrResponseShape, i)
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d lines, want %d", ErrResponseShape, len(out), want)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var retryDelayPattern = regexp.MustCompile(`retryDelay"?\s*[:=]\s*"?(\d+)`)

// ParseRetryDelay reads the provider's suggested retry delay, e.g.
// `"retryDelay": "12s"`, from a failure detail
func ParseRetryDelay(detail string) (time.Duration, bool) {
	m := retryDelayPattern.FindStringSubmatch(detail)
	if len(m) < 2 {
		return 0, false
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func preview(s string) string {
	const limit = 80
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
