package segment

import (
	"testing"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacy_StitchesEnds(t *testing.T) {
	events := []subtitle.RawEvent{
		event(1000, 3000, seg("hello ", 0), seg("world", 200)),
		lineBreak(1500),
		{StartMs: intp(2000), Segs: []subtitle.Seg{{UTF8: "next"}}},
		event(1900, 200, seg("out of order", 0)),
	}

	cues := ParseLegacy(events, DefaultParams())
	require.Len(t, cues, 3)

	assert.Equal(t, subtitle.Cue{StartMs: 1000, EndMs: 2000, Text: "hello world"}, cues[0])
	// next start lies before this start, so the end is clamped
	assert.Equal(t, 2000, cues[1].StartMs)
	assert.Equal(t, 2001, cues[1].EndMs)
	assert.Equal(t, 2100, cues[2].EndMs)
	for _, cue := range cues {
		assert.Nil(t, cue.TranslatedText)
		assert.GreaterOrEqual(t, cue.EndMs, cue.StartMs)
	}
}

func TestParseLegacy_DefaultDuration(t *testing.T) {
	cues := ParseLegacy([]subtitle.RawEvent{
		{StartMs: intp(0), Segs: []subtitle.Seg{{UTF8: "only"}}},
	}, DefaultParams())
	require.Len(t, cues, 1)
	assert.Equal(t, 5000, cues[0].EndMs)
}

func TestParseLegacy_InvertedLastCue(t *testing.T) {
	cues := ParseLegacy([]subtitle.RawEvent{
		event(1000, -500, seg("broken", 0)),
	}, DefaultParams())
	require.Len(t, cues, 1)
	assert.Equal(t, 2000, cues[0].EndMs)
}

func TestParseLegacy_Empty(t *testing.T) {
	assert.Empty(t, ParseLegacy(nil, DefaultParams()))
	assert.Empty(t, ParseLegacy([]subtitle.RawEvent{lineBreak(0)}, DefaultParams()))
}

func TestParseLegacy_SkipsLineBreaksAndUntimedEvents(t *testing.T) {
	cues := ParseLegacy([]subtitle.RawEvent{
		event(0, 1000, seg("one", 0)),
		lineBreak(900),
		{DurationMs: intp(300), Segs: []subtitle.Seg{{UTF8: "untimed"}}},
		event(1500, 1000, seg("two", 0)),
	}, DefaultParams())

	require.Len(t, cues, 2)
	assert.Equal(t, subtitle.Cue{StartMs: 0, EndMs: 1500, Text: "one"}, cues[0])
	assert.Equal(t, "two", cues[1].Text)
}
