package segment

import (
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

// ParseLegacy maps every event straight to a cue and stitches neighbouring
// cues end to start. It works on any payload and is the fallback when the
// advanced pipeline does not apply.
func ParseLegacy(events []subtitle.RawEvent, params Params) []subtitle.Cue {
	params = params.withDefaults()

	cues := make([]subtitle.Cue, 0, len(events))
	durations := make([]int, 0, len(events))
	for _, event := range events {
		if event.StartMs == nil || event.IsLineBreak() {
			continue
		}
		text := strings.TrimSpace(event.Text())
		if text == "" {
			continue
		}
		duration := 0
		if event.DurationMs != nil {
			duration = *event.DurationMs
		}
		fallback := duration
		if fallback == 0 {
			fallback = params.LegacyDurationMs
		}
		cues = append(cues, subtitle.Cue{
			StartMs: *event.StartMs,
			EndMs:   *event.StartMs + fallback,
			Text:    text,
		})
		durations = append(durations, duration)
	}

	for i := 0; i < len(cues)-1; i++ {
		cues[i].EndMs = cues[i+1].StartMs
		if cues[i].EndMs < cues[i].StartMs {
			cues[i].EndMs = cues[i].StartMs + 1
		}
	}
	if n := len(cues); n > 0 && cues[n-1].EndMs < cues[n-1].StartMs {
		duration := durations[n-1]
		if duration <= 0 {
			duration = params.LastCueDurationMs
		}
		cues[n-1].EndMs = cues[n-1].StartMs + duration
	}
	return cues
}
