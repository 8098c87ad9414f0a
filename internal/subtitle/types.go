package subtitle

import (
	"io"
	"strings"
)

// LineBreakLiteral is the two-character escape some caption sources emit
// instead of a real newline.
const LineBreakLiteral = `\n`

// Reader is the interface for reading raw caption payloads
type Reader interface {
	Read(r io.Reader) (*Payload, error)
}

// Writer is the interface for writing finalized cues
type Writer interface {
	Write(w io.Writer, cues []Cue) error
}

// Seg is one recognized fragment inside an event
type Seg struct {
	UTF8     string `json:"utf8"`
	OffsetMs *int  `json:"tOffsetMs,omitempty"`
}

// Offset returns the segment offset relative to its event, 0 when absent
func (s Seg) Offset() int {
	if s.OffsetMs == nil {
		return 0
	}
	return *s.OffsetMs
}

// IsLineBreak reports whether the text is only a line break marker
func (s Seg) IsLineBreak() bool {
	return s.UTF8 == "\n" || s.UTF8 == LineBreakLiteral
}

// RawEvent is a timestamped ASR event as delivered by the caption source.
// Optional fields are pointers so a missing start time or duration can be
// told apart from zero.
type RawEvent struct {
	StartMs    *int  `json:"tStartMs,omitempty"`
	DurationMs *int  `json:"dDurationMs,omitempty"`
	Append     int   `json:"aAppend,omitempty"`
	Segs       []Seg `json:"segs,omitempty"`
}

func (e RawEvent) IsAppend() bool {
	return e.Append == 1
}

// IsLineBreak reports an appended event whose single segment is a line break
func (e RawEvent) IsLineBreak() bool {
	return e.IsAppend() && len(e.Segs) == 1 && e.Segs[0].IsLineBreak()
}

// IsContent reports whether the event carries at least one non-empty segment
// that is not a bare line break
func (e RawEvent) IsContent() bool {
	for _, seg := range e.Segs {
		if seg.IsLineBreak() {
			continue
		}
		if strings.TrimSpace(seg.UTF8) != "" {
			return true
		}
	}
	return false
}

// Text concatenates the event segment texts
func (e RawEvent) Text() string {
	var b strings.Builder
	for _, seg := range e.Segs {
		b.WriteString(seg.UTF8)
	}
	return b.String()
}

// Payload is the json3 caption document
type Payload struct {
	Events []RawEvent `json:"events"`
}

// Cue is a finalized sentence. Only TranslatedText and TempFailed change
// after segmentation.
type Cue struct {
	StartMs        int     `json:"start"`
	EndMs          int     `json:"end"`
	Text           string  `json:"text"`
	TranslatedText *string `json:"translatedText"`
	TempFailed     bool    `json:"tempFailed,omitempty"`
}

func (c Cue) IsTranslated() bool {
	return c.TranslatedText != nil
}

// IsPending reports a cue that still waits for its first translation attempt
func (c Cue) IsPending() bool {
	return !c.IsTranslated() && !c.TempFailed
}

// Translation returns the translated text or an empty string
func (c Cue) Translation() string {
	if c.TranslatedText == nil {
		return ""
	}
	return *c.TranslatedText
}

// Progress counts translated cues
type Progress struct {
	Done   int `json:"done"`
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

func ComputeProgress(cues []Cue) Progress {
	p := Progress{Total: len(cues)}
	for _, cue := range cues {
		switch {
		case cue.IsTranslated():
			p.Done++
		case cue.TempFailed:
			p.Failed++
		}
	}
	return p
}

// CloneCues deep copies cues so callers never share translated text pointers
func CloneCues(cues []Cue) []Cue {
	if cues == nil {
		return nil
	}
	ret := make([]Cue, len(cues))
	for i, cue := range cues {
		ret[i] = cue
		if cue.TranslatedText != nil {
			text := *cue.TranslatedText
			ret[i].TranslatedText = &text
		}
	}
	return ret
}
