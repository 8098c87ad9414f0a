package subtitle

import (
	"strings"

	"golang.org/x/text/language"
)

// Track is a caption track offered by a video
type Track struct {
	VssID        string `json:"vss_id"`
	LanguageCode string `json:"language_code"`
	Name         string `json:"name,omitempty"`
}

// IsASR reports an automatically generated track
func (t Track) IsASR() bool {
	return strings.HasPrefix(t.VssID, "a.")
}

type Tier int

const (
	TierNone Tier = iota
	// TierNative shows a track already in one of the viewer's languages
	TierNative
	// TierAutoTranslate translates the first track matching the priority list
	TierAutoTranslate
	// TierOnDemand offers a track for manual translation
	TierOnDemand
)

func (t Tier) String() string {
	switch t {
	case TierNative:
		return "native"
	case TierAutoTranslate:
		return "auto_translate"
	case TierOnDemand:
		return "on_demand"
	default:
		return "none"
	}
}

type TrackDecision struct {
	Tier  Tier  `json:"tier"`
	Track Track `json:"track"`
}

// SelectTrack picks the track to display or translate. Native languages are
// checked first in the viewer's order, then the auto-translate priority list,
// and finally any track, preferring a human-made one.
func SelectTrack(tracks []Track, nativeLangs []string, priorityLangs []string) TrackDecision {
	for _, want := range nativeLangs {
		if track, ok := findTrack(tracks, want); ok {
			return TrackDecision{Tier: TierNative, Track: track}
		}
	}
	for _, want := range priorityLangs {
		if track, ok := findTrack(tracks, want); ok {
			return TrackDecision{Tier: TierAutoTranslate, Track: track}
		}
	}
	for _, track := range tracks {
		if !track.IsASR() {
			return TrackDecision{Tier: TierOnDemand, Track: track}
		}
	}
	if len(tracks) > 0 {
		return TrackDecision{Tier: TierOnDemand, Track: tracks[0]}
	}
	return TrackDecision{Tier: TierNone}
}

func findTrack(tracks []Track, lang string) (Track, bool) {
	for _, track := range tracks {
		if LanguageEquivalent(track.LanguageCode, lang) {
			return track, true
		}
	}
	return Track{}, false
}

// LanguageEquivalent treats two codes as the same language when base language
// and script agree, so zh-TW matches zh-Hant and ja-JP matches ja.
func LanguageEquivalent(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	if baseA != baseB {
		return false
	}
	scriptA, _ := ta.Script()
	scriptB, _ := tb.Script()
	return scriptA == scriptB
}
