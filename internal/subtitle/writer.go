package subtitle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// SRTWriter writes cues as SubRip
type SRTWriter struct {
	// Bilingual keeps the original text under the translation
	Bilingual bool
}

func NewSRTWriter(bilingual bool) Writer {
	return &SRTWriter{Bilingual: bilingual}
}

func (w *SRTWriter) Write(out io.Writer, cues []Cue) error {
	buf := bufio.NewWriter(out)
	for i, cue := range cues {
		text := cue.Text
		if cue.IsTranslated() {
			text = cue.Translation()
			if w.Bilingual && cue.Text != "" {
				text = text + "\n" + cue.Text
			}
		}
		if _, err := fmt.Fprintf(buf, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatDuration(time.Duration(cue.StartMs)*time.Millisecond),
			formatDuration(time.Duration(cue.EndMs)*time.Millisecond),
			text,
		); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// JSONWriter writes cues as an indented JSON array
type JSONWriter struct{}

func NewJSONWriter() Writer {
	return &JSONWriter{}
}

func (w *JSONWriter) Write(out io.Writer, cues []Cue) error {
	if cues == nil {
		cues = []Cue{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(cues)
}

// WriteFile writes cues to path through a temp file and rename
func WriteFile(path string, w Writer, cues []Cue) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := w.Write(file, cues); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// formatDuration formats time.Duration to SRT time format
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
