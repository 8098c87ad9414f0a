package persistence

import (
	"encoding/json"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

// CacheSnapshot is the persisted cue list of one video with the state of its
// translation session
type CacheSnapshot struct {
	VideoID    string          `json:"video_id"`
	TrackID    string          `json:"track_id"`
	SourceLang string          `json:"source_lang"`
	Engine     string          `json:"engine"`
	State      string          `json:"state"`
	Error      string          `json:"error,omitempty"`
	Cues       []subtitle.Cue  `json:"cues"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (s CacheSnapshot) Progress() subtitle.Progress {
	return subtitle.ComputeProgress(s.Cues)
}

// SnapshotSummary is a snapshot without its cues
type SnapshotSummary struct {
	VideoID    string            `json:"video_id"`
	TrackID    string            `json:"track_id"`
	SourceLang string            `json:"source_lang"`
	Engine     string            `json:"engine"`
	State      string            `json:"state"`
	Error      string            `json:"error,omitempty"`
	Progress   subtitle.Progress `json:"progress"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
