package persistence

import (
	"context"
	"time"
)

func (s *SQLiteStore) Cooldowns(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT credential_id, failed_at_ms FROM credential_cooldowns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var ms int64
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, err
		}
		ret[id] = time.UnixMilli(ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetCooldown records a temporary failure; an older timestamp never
// replaces a newer one
func (s *SQLiteStore) SetCooldown(ctx context.Context, credentialID string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO credential_cooldowns (credential_id, failed_at_ms) VALUES (?, ?)
		 ON CONFLICT(credential_id) DO UPDATE SET
			failed_at_ms=excluded.failed_at_ms
		 WHERE excluded.failed_at_ms > credential_cooldowns.failed_at_ms`,
		credentialID,
		at.UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) ClearCooldown(ctx context.Context, credentialID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credential_cooldowns WHERE credential_id = ?`, credentialID)
	return err
}

// DeleteCooldownsBefore removes cooldowns recorded before cutoff
func (s *SQLiteStore) DeleteCooldownsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credential_cooldowns WHERE failed_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
