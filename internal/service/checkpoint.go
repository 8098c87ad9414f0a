package service

import (
	"context"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

// snapshotStore is the part of the SQLite store a session writes through
type snapshotStore interface {
	GetSnapshot(ctx context.Context, videoID string) (persistence.CacheSnapshot, bool, error)
	PutSnapshot(ctx context.Context, snap persistence.CacheSnapshot) error
}

// Checkpoint persists the cue list of a session after every state change
type Checkpoint interface {
	Save(ctx context.Context, state State, errMsg string, cues []subtitle.Cue) error
}

type snapshotCheckpoint struct {
	store snapshotStore
	base  persistence.CacheSnapshot
	now   func() time.Time
}

func newSnapshotCheckpoint(store snapshotStore, base persistence.CacheSnapshot, now func() time.Time) *snapshotCheckpoint {
	if now == nil {
		now = time.Now
	}
	return &snapshotCheckpoint{store: store, base: base, now: now}
}

// Save writes the snapshot even when ctx is already cancelled so a stopped
// session keeps its last state
func (c *snapshotCheckpoint) Save(ctx context.Context, state State, errMsg string, cues []subtitle.Cue) error {
	snap := c.base
	snap.State = string(state)
	snap.Error = errMsg
	snap.Cues = subtitle.CloneCues(cues)
	snap.UpdatedAt = c.now()
	return c.store.PutSnapshot(context.WithoutCancel(ctx), snap)
}

type nopCheckpoint struct{}

func (nopCheckpoint) Save(context.Context, State, string, []subtitle.Cue) error { return nil }
