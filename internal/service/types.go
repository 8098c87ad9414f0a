package service

import (
	"encoding/json"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/segment"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

// State is where a video's translation session stands
type State string

const (
	StateIdle             State = "idle"
	StateTranslating      State = "translating"
	StateRetryScheduled   State = "retry_scheduled"
	StateSuccess          State = "success"
	StatePermanentStopped State = "permanent_stopped"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether the session stopped on its own
func (s State) Terminal() bool {
	return s == StateSuccess || s == StatePermanentStopped
}

// StartRequest asks for a video's captions to be segmented and translated.
// Payload may be omitted when the video is already cached.
type StartRequest struct {
	VideoID    string            `json:"video_id"`
	TrackID    string            `json:"track_id"`
	SourceLang string            `json:"lang"`
	Payload    *subtitle.Payload `json:"payload,omitempty"`
}

// SegmentResult is a segmentation without any translation
type SegmentResult struct {
	SourceLang string           `json:"lang"`
	Decision   segment.Decision `json:"decision"`
	Cues       []subtitle.Cue   `json:"cues"`
}

// VideoStatus is the cached state of a video as shown to clients
type VideoStatus struct {
	VideoID        string            `json:"video_id"`
	TrackID        string            `json:"track_id"`
	SourceLang     string            `json:"lang"`
	Engine         string            `json:"engine"`
	State          State             `json:"state"`
	Error          string            `json:"error,omitempty"`
	PartialFailure bool              `json:"partial_failure"`
	Progress       subtitle.Progress `json:"progress"`
	JobID          string            `json:"job_id,omitempty"`
	Cues           []subtitle.Cue    `json:"cues,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// MaintenanceReport counts what one maintenance sweep removed
type MaintenanceReport struct {
	Snapshots int64     `json:"snapshots"`
	Cooldowns int64     `json:"cooldowns"`
	RanAt     time.Time `json:"ran_at"`
}

func rawPayload(payload *subtitle.Payload) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
