package segment

import (
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// TimedSegment is a segment placed on the absolute timeline
type TimedSegment struct {
	Text    string `json:"text"`
	StartMs int    `json:"start"`
}

// CleanedBlock is one surviving event with its end clamped to the next start
type CleanedBlock struct {
	StartMs  int            `json:"start"`
	EndMs    int            `json:"end"`
	Segments []TimedSegment `json:"segments"`
}

// Clean drops structural noise from the raw events and computes true block
// boundaries.
func Clean(events []subtitle.RawEvent, params Params) []CleanedBlock {
	params = params.withDefaults()

	content := make([]subtitle.RawEvent, 0, len(events))
	for _, event := range events {
		if len(event.Segs) == 0 || event.IsLineBreak() {
			continue
		}
		content = append(content, event)
	}

	// an event dropped below for missing timing still bounds its predecessor
	blocks := make([]CleanedBlock, 0, len(content))
	for i, event := range content {
		if event.StartMs == nil {
			log.Warn("Skip caption event without start time: %q", preview(event))
			continue
		}
		if event.DurationMs == nil {
			log.Warn("Skip caption event without duration: %q", preview(event))
			continue
		}

		start := *event.StartMs
		duration := *event.DurationMs
		if duration == 0 {
			duration = params.EventDurationMs
		}
		end := start + duration
		if i+1 < len(content) && content[i+1].StartMs != nil {
			end = min(end, *content[i+1].StartMs)
		}

		segments := make([]TimedSegment, 0, len(event.Segs))
		for _, seg := range event.Segs {
			text := cleanSegmentText(seg.UTF8)
			if text == "" {
				continue
			}
			segStart := start + seg.Offset()
			if segStart >= end {
				continue
			}
			segments = append(segments, TimedSegment{Text: text, StartMs: segStart})
		}
		if len(segments) == 0 {
			continue
		}
		blocks = append(blocks, CleanedBlock{
			StartMs:  start,
			EndMs:    end,
			Segments: segments,
		})
	}
	return blocks
}

func cleanSegmentText(text string) string {
	text = strings.ReplaceAll(text, subtitle.LineBreakLiteral, "")
	text = strings.ReplaceAll(text, "\n", "")
	return strings.TrimSpace(text)
}

func preview(event subtitle.RawEvent) string {
	text := []rune(event.Text())
	if len(text) > 20 {
		text = text[:20]
	}
	return string(text)
}
