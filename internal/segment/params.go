package segment

// Params holds the tuning knobs of the segmentation pipeline. The defaults
// were tuned against Japanese auto-generated captions and should not be
// assumed to carry over to other languages.
type Params struct {
	// PauseThresholdMs splits a sentence when the gap between two segment
	// starts exceeds it.
	PauseThresholdMs int `json:"pause_threshold_ms" yaml:"pause_threshold_ms"`
	// LinguisticPauseMs splits after a sentence-final marker when the gap
	// exceeds it.
	LinguisticPauseMs int `json:"linguistic_pause_ms" yaml:"linguistic_pause_ms"`
	// MultiSegRatio is the minimum share of multi-segment content events for
	// the advanced pipeline to engage.
	MultiSegRatio float64 `json:"multi_seg_ratio" yaml:"multi_seg_ratio"`

	// EventDurationMs is used by the cleaner when an event has no duration.
	EventDurationMs int `json:"event_duration_ms" yaml:"event_duration_ms"`
	// LegacyDurationMs is used by the legacy parser when an event has no duration.
	LegacyDurationMs int `json:"legacy_duration_ms" yaml:"legacy_duration_ms"`
	// LastCueDurationMs repairs an inverted final cue in the legacy parser.
	LastCueDurationMs int `json:"last_cue_duration_ms" yaml:"last_cue_duration_ms"`

	Markers   []string `json:"markers" yaml:"markers"`
	// Particles are compared with the last character of a sentence only
	Particles []string `json:"particles" yaml:"particles"`

	// AdvancedLanguage is the source language the advanced pipeline targets.
	AdvancedLanguage string `json:"advanced_language" yaml:"advanced_language"`
	AdvancedEnabled  bool   `json:"advanced_enabled" yaml:"advanced_enabled"`
}

var (
	DefaultMarkers = []string{
		"です", "でした", "ます", "ました", "ません", "ますか", "ない",
		"だ", "かな", "かしら",
		"ください",
		"。", "？", "！",
	}

	DefaultParticles = []string{
		"に", "を", "は", "で", "て", "と", "も", "の", "本当", "やっぱ", "ども", "お",
	}
)

func DefaultParams() Params {
	return Params{
		PauseThresholdMs:  500,
		LinguisticPauseMs: 150,
		MultiSegRatio:     0.35,
		EventDurationMs:   100,
		LegacyDurationMs:  5000,
		LastCueDurationMs: 1000,
		Markers:           append([]string(nil), DefaultMarkers...),
		Particles:         append([]string(nil), DefaultParticles...),
		AdvancedLanguage:  "ja",
		AdvancedEnabled:   false,
	}
}

// withDefaults fills zero values so a partially configured Params stays usable
func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.PauseThresholdMs <= 0 {
		p.PauseThresholdMs = def.PauseThresholdMs
	}
	if p.LinguisticPauseMs <= 0 {
		p.LinguisticPauseMs = def.LinguisticPauseMs
	}
	if p.MultiSegRatio <= 0 {
		p.MultiSegRatio = def.MultiSegRatio
	}
	if p.EventDurationMs <= 0 {
		p.EventDurationMs = def.EventDurationMs
	}
	if p.LegacyDurationMs <= 0 {
		p.LegacyDurationMs = def.LegacyDurationMs
	}
	if p.LastCueDurationMs <= 0 {
		p.LastCueDurationMs = def.LastCueDurationMs
	}
	if p.Markers == nil {
		p.Markers = def.Markers
	}
	if p.Particles == nil {
		p.Particles = def.Particles
	}
	if p.AdvancedLanguage == "" {
		p.AdvancedLanguage = def.AdvancedLanguage
	}
	return p
}
