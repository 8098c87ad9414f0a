package segment

import (
	"testing"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfMultiSegPayload has four content events, two of them multi-segment
func halfMultiSegPayload() *subtitle.Payload {
	return &subtitle.Payload{Events: []subtitle.RawEvent{
		event(0, 2000, seg("今日は", 0), seg("晴れです", 300)),
		{StartMs: intp(1999), Append: 1, Segs: []subtitle.Seg{{UTF8: `\n`}}},
		event(2000, 1500, seg("明日", 0)),
		event(3500, 1000, seg("雨が", 0), seg("降ります", 400)),
		event(4500, 1000, seg("さようなら", 0)),
		{StartMs: intp(5500), Segs: []subtitle.Seg{{UTF8: " "}}},
	}}
}

func TestMultiSegRatio(t *testing.T) {
	ratio, content, multi := MultiSegRatio(halfMultiSegPayload())
	assert.Equal(t, 4, content)
	assert.Equal(t, 2, multi)
	assert.InDelta(t, 0.5, ratio, 1e-9)

	ratio, content, _ = MultiSegRatio(&subtitle.Payload{})
	assert.Zero(t, ratio)
	assert.Zero(t, content)
}

func TestPipeline_DecideIsDeterministic(t *testing.T) {
	params := DefaultParams()
	params.AdvancedEnabled = true
	p := NewPipeline(params)

	first := p.Decide(halfMultiSegPayload(), "ja")
	for range 5 {
		assert.Equal(t, first, p.Decide(halfMultiSegPayload(), "ja"))
	}
	assert.Equal(t, EngineAdvanced, first.Engine)
}

func TestPipeline_Gates(t *testing.T) {
	params := DefaultParams()
	params.AdvancedEnabled = true

	assert.Equal(t, EngineAdvanced, NewPipeline(params).Decide(halfMultiSegPayload(), "ja-JP").Engine)
	assert.Equal(t, EngineLegacy, NewPipeline(params).Decide(halfMultiSegPayload(), "ko").Engine)

	params.MultiSegRatio = 0.6
	assert.Equal(t, EngineLegacy, NewPipeline(params).Decide(halfMultiSegPayload(), "ja").Engine)
}

func TestPipeline_SegmentEndToEnd(t *testing.T) {
	enabled := DefaultParams()
	enabled.AdvancedEnabled = true

	advanced := NewPipeline(enabled).Segment(halfMultiSegPayload(), "ja")
	assert.Equal(t, EngineAdvanced, advanced.Decision.Engine)
	require.NotEmpty(t, advanced.Cues)

	legacy := NewPipeline(DefaultParams()).Segment(halfMultiSegPayload(), "ja")
	assert.Equal(t, EngineLegacy, legacy.Decision.Engine)
	require.NotEmpty(t, legacy.Cues)
	assert.Len(t, legacy.Cues, 4)

	for _, cues := range [][]subtitle.Cue{advanced.Cues, legacy.Cues} {
		for i, cue := range cues {
			assert.GreaterOrEqual(t, cue.EndMs, cue.StartMs)
			assert.Nil(t, cue.TranslatedText)
			if i > 0 {
				assert.GreaterOrEqual(t, cue.StartMs, cues[i-1].StartMs)
			}
		}
	}
}

func TestPipeline_NilPayload(t *testing.T) {
	res := NewPipeline(DefaultParams()).Segment(nil, "ja")
	assert.Empty(t, res.Cues)
	assert.Equal(t, EngineLegacy, res.Decision.Engine)
}
