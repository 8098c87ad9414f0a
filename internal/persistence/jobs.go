package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
)

const jobColumns = `id, source, dedupe_key, video_id, action, status, error, created_at_ms, updated_at_ms`

// LoadJobs returns every persisted job, oldest first
func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranslationJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at_ms ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	ret := make([]*jobs.TranslationJob, 0)
	for rows.Next() {
		var (
			job                  jobs.TranslationJob
			action, status       string
			createdMs, updatedMs int64
		)
		if err := rows.Scan(
			&job.ID, &job.Source, &job.DedupeKey, &job.Payload.VideoID,
			&action, &status, &job.Error, &createdMs, &updatedMs,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Payload.Action = jobs.Action(action)
		job.Status = jobs.Status(status)
		job.CreatedAt = time.UnixMilli(createdMs)
		job.UpdatedAt = time.UnixMilli(updatedMs)
		ret = append(ret, &job)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranslationJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			error=excluded.error,
			updated_at_ms=excluded.updated_at_ms`,
		job.ID, job.Source, job.DedupeKey, job.Payload.VideoID,
		string(job.Payload.Action), string(job.Status), job.Error,
		job.CreatedAt.UnixMilli(), job.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}
