package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageEquivalent(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ja", "ja", true},
		{"ja-JP", "ja", true},
		{"zh-TW", "zh-Hant", true},
		{"zh-HK", "zh-Hant", true},
		{"zh-CN", "zh-Hans", true},
		{"zh", "zh-Hans", true},
		{"zh-TW", "zh-CN", false},
		{"ko", "ja", false},
		{"", "ja", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguageEquivalent(tt.a, tt.b))
		})
	}
}

func TestSelectTrack(t *testing.T) {
	tracks := []Track{
		{VssID: "a.ja", LanguageCode: "ja"},
		{VssID: ".en", LanguageCode: "en"},
		{VssID: ".zh-TW", LanguageCode: "zh-TW"},
	}

	got := SelectTrack(tracks, []string{"zh-Hant"}, []string{"ja"})
	assert.Equal(t, TierNative, got.Tier)
	assert.Equal(t, "zh-TW", got.Track.LanguageCode)

	got = SelectTrack(tracks[:2], []string{"zh-Hant"}, []string{"ko", "ja"})
	assert.Equal(t, TierAutoTranslate, got.Tier)
	assert.Equal(t, "a.ja", got.Track.VssID)

	got = SelectTrack(tracks[:2], []string{"zh-Hant"}, []string{"ko"})
	assert.Equal(t, TierOnDemand, got.Tier)
	assert.Equal(t, ".en", got.Track.VssID)

	got = SelectTrack(tracks[:1], nil, nil)
	assert.Equal(t, TierOnDemand, got.Tier)
	assert.Equal(t, "a.ja", got.Track.VssID)

	assert.Equal(t, TierNone, SelectTrack(nil, nil, nil).Tier)
}
