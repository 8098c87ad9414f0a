package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const samplePayload = `{
  "wireMagic": "pb3",
  "events": [
    {"tStartMs": 1000, "dDurationMs": 500, "segs": [{"utf8": "こんにちは"}, {"utf8": "みなさん", "tOffsetMs": 240}]},
    {"tStartMs": 1500, "aAppend": 1, "segs": [{"utf8": "\n"}]},
    {"dDurationMs": 300, "segs": [{"utf8": "no start"}]},
    {"tStartMs": 2000, "segs": [{"utf8": "  "}]}
  ]
}`

func TestReadBytes_DecodesOptionalFields(t *testing.T) {
	payload, err := ReadBytes([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, payload.Events, 4)

	first := payload.Events[0]
	require.NotNil(t, first.StartMs)
	require.NotNil(t, first.DurationMs)
	assert.Equal(t, 1000, *first.StartMs)
	assert.Equal(t, 0, first.Segs[0].Offset())
	assert.Equal(t, 240, first.Segs[1].Offset())
	assert.True(t, first.IsContent())
	assert.Equal(t, "こんにちはみなさん", first.Text())

	assert.True(t, payload.Events[1].IsLineBreak())
	assert.False(t, payload.Events[1].IsContent())

	assert.Nil(t, payload.Events[2].StartMs)
	assert.Nil(t, payload.Events[3].DurationMs)
	assert.False(t, payload.Events[3].IsContent())
}

func TestReadBytes_Empty(t *testing.T) {
	_, err := ReadBytes([]byte("   "))
	require.Error(t, err)

	_, err = ReadBytes([]byte("{not json"))
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.json3")
	require.NoError(t, os.WriteFile(path, []byte(samplePayload), 0o644))

	payload, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, payload.Events, 4)
}

func TestRawEvent_LineBreakLiteral(t *testing.T) {
	event := RawEvent{Append: 1, Segs: []Seg{{UTF8: `\n`}}}
	assert.True(t, event.IsLineBreak())

	notAppended := RawEvent{Segs: []Seg{{UTF8: "\n"}}}
	assert.False(t, notAppended.IsLineBreak())
}

func TestDetectLanguage_Japanese(t *testing.T) {
	payload := &Payload{Events: []RawEvent{
		{Segs: []Seg{{UTF8: "こんにちは みなさん おはようございます"}}},
		{Segs: []Seg{{UTF8: "きょうは いい てんき ですね"}}},
	}}
	got := DetectLanguage(payload)
	base, _ := got.Base()
	assert.Equal(t, "ja", base.String())
}

func TestDetectLanguage_NoContent(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(&Payload{}))
	assert.Equal(t, language.Und, DetectLanguage(nil))
}

func TestComputeProgressAndClone(t *testing.T) {
	done := "hi"
	cues := []Cue{
		{Text: "a", TranslatedText: &done},
		{Text: "b", TempFailed: true},
		{Text: "c"},
	}
	assert.Equal(t, Progress{Done: 1, Total: 3, Failed: 1}, ComputeProgress(cues))
	assert.True(t, cues[2].IsPending())
	assert.False(t, cues[1].IsPending())

	cloned := CloneCues(cues)
	*cloned[0].TranslatedText = "changed"
	assert.Equal(t, "hi", cues[0].Translation())
}

func TestSRTWriter(t *testing.T) {
	hello := "你好"
	cues := []Cue{
		{StartMs: 1000, EndMs: 3723004, Text: "こんにちは", TranslatedText: &hello},
		{StartMs: 4000, EndMs: 5000, Text: "untranslated"},
	}

	var out strings.Builder
	require.NoError(t, NewSRTWriter(false).Write(&out, cues))
	assert.Equal(t,
		"1\n00:00:01,000 --> 01:02:03,004\n你好\n\n2\n00:00:04,000 --> 00:00:05,000\nuntranslated\n\n",
		out.String())

	out.Reset()
	require.NoError(t, NewSRTWriter(true).Write(&out, cues[:1]))
	assert.Contains(t, out.String(), "你好\nこんにちは\n")
}

func TestWriteFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cues.json")
	require.NoError(t, WriteFile(path, NewJSONWriter(), []Cue{{StartMs: 1, EndMs: 2, Text: "x"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"translatedText": null`)
}
