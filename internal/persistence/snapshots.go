package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
)

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap CacheSnapshot) error {
	if snap.VideoID == "" {
		return fmt.Errorf("video id is required")
	}
	cues := snap.Cues
	if cues == nil {
		cues = []subtitle.Cue{}
	}
	cuesJSON, err := json.Marshal(cues)
	if err != nil {
		return fmt.Errorf("encode cues: %w", err)
	}
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	progress := snap.Progress()

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO cache_snapshots (
			video_id, track_id, source_lang, engine, state, error, cues_json, raw_payload_json, total, done, failed, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			track_id=excluded.track_id,
			source_lang=excluded.source_lang,
			engine=excluded.engine,
			state=excluded.state,
			error=excluded.error,
			cues_json=excluded.cues_json,
			raw_payload_json=excluded.raw_payload_json,
			total=excluded.total,
			done=excluded.done,
			failed=excluded.failed,
			updated_at_ms=excluded.updated_at_ms`,
		snap.VideoID,
		snap.TrackID,
		snap.SourceLang,
		snap.Engine,
		snap.State,
		snap.Error,
		string(cuesJSON),
		string(snap.RawPayload),
		progress.Total,
		progress.Done,
		progress.Failed,
		updatedAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, videoID string) (CacheSnapshot, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT video_id, track_id, source_lang, engine, state, error, cues_json, raw_payload_json, updated_at_ms
		 FROM cache_snapshots
		 WHERE video_id = ?`,
		videoID,
	)

	var snap CacheSnapshot
	var cuesJSON, rawJSON string
	var updatedAtMs int64
	if err := row.Scan(
		&snap.VideoID,
		&snap.TrackID,
		&snap.SourceLang,
		&snap.Engine,
		&snap.State,
		&snap.Error,
		&cuesJSON,
		&rawJSON,
		&updatedAtMs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CacheSnapshot{}, false, nil
		}
		return CacheSnapshot{}, false, err
	}
	if err := json.Unmarshal([]byte(cuesJSON), &snap.Cues); err != nil {
		return CacheSnapshot{}, false, fmt.Errorf("decode cues of %s: %w", videoID, err)
	}
	if rawJSON != "" {
		snap.RawPayload = json.RawMessage(rawJSON)
	}
	snap.UpdatedAt = time.UnixMilli(updatedAtMs)
	return snap, true, nil
}

// ListSnapshots returns summaries, most recently updated first
func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT video_id, track_id, source_lang, engine, state, error, total, done, failed, updated_at_ms
		 FROM cache_snapshots
		 ORDER BY updated_at_ms DESC, video_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]SnapshotSummary, 0)
	for rows.Next() {
		var item SnapshotSummary
		var updatedAtMs int64
		if err := rows.Scan(
			&item.VideoID,
			&item.TrackID,
			&item.SourceLang,
			&item.Engine,
			&item.State,
			&item.Error,
			&item.Progress.Total,
			&item.Progress.Done,
			&item.Progress.Failed,
			&updatedAtMs,
		); err != nil {
			return nil, err
		}
		item.UpdatedAt = time.UnixMilli(updatedAtMs)
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteSnapshot reports whether a snapshot existed
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, videoID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_snapshots WHERE video_id = ?`, videoID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) DeleteAllSnapshots(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_snapshots`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSnapshotsBefore removes snapshots not updated since cutoff
func (s *SQLiteStore) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_snapshots WHERE updated_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
