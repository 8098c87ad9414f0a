package subtitle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// JSON3Reader decodes json3 caption payloads
type JSON3Reader struct{}

func NewReader() Reader {
	return &JSON3Reader{}
}

func (r *JSON3Reader) Read(in io.Reader) (*Payload, error) {
	var payload Payload
	dec := json.NewDecoder(in)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode caption payload: %w", err)
	}
	return &payload, nil
}

// ReadBytes decodes a payload held in memory
func ReadBytes(data []byte) (*Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("caption payload is empty")
	}
	return NewReader().Read(bytes.NewReader(data))
}

// ReadFile decodes a payload stored on disk
func ReadFile(path string) (*Payload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open caption payload: %w", err)
	}
	defer file.Close()
	return NewReader().Read(file)
}

// DetectLanguage guesses the payload language from its content events.
// Short events are noisy, so each event votes once with its detected language.
func DetectLanguage(payload *Payload) language.Tag {
	if payload == nil {
		return language.Und
	}

	votes := make(map[string]int)
	var sample strings.Builder
	for _, event := range payload.Events {
		if !event.IsContent() {
			continue
		}
		text := strings.TrimSpace(event.Text())
		sample.WriteString(text)
		sample.WriteString(" ")

		info := whatlanggo.Detect(text)
		if !info.IsReliable() {
			continue
		}
		votes[info.Lang.Iso6391()]++
	}

	top, topVotes := "", 0
	for lang, n := range votes {
		if n > topVotes || (n == topVotes && lang < top) {
			top, topVotes = lang, n
		}
	}
	if top == "" {
		// fall back to the whole transcript when no single event was reliable
		if sample.Len() == 0 {
			return language.Und
		}
		top = whatlanggo.DetectLang(sample.String()).Iso6391()
	}

	tag, err := language.Parse(top)
	if err != nil {
		return language.Und
	}
	return tag
}
