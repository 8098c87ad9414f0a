package persistence

import (
	"context"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
)

// EventLog is the SQLite backed translator.LogSink
type EventLog struct {
	store *SQLiteStore
}

func (s *SQLiteStore) EventLog() *EventLog {
	return &EventLog{store: s}
}

// Append inserts the entry and trims the table to the newest
// translator.MaxLogEntries rows
func (l *EventLog) Append(ctx context.Context, entry translator.LogEntry) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO event_logs (id, timestamp_ms, level, message, detail, remedy) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UnixMilli(),
		string(entry.Level),
		entry.Message,
		entry.Detail,
		entry.Remedy,
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(
		ctx,
		`DELETE FROM event_logs WHERE seq NOT IN (SELECT seq FROM event_logs ORDER BY seq DESC LIMIT ?)`,
		translator.MaxLogEntries,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Entries returns the log newest first
func (l *EventLog) Entries(ctx context.Context) ([]translator.LogEntry, error) {
	rows, err := l.store.db.QueryContext(
		ctx,
		`SELECT id, timestamp_ms, level, message, detail, remedy FROM event_logs ORDER BY seq DESC LIMIT ?`,
		translator.MaxLogEntries,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]translator.LogEntry, 0)
	for rows.Next() {
		var entry translator.LogEntry
		var ms int64
		var level string
		if err := rows.Scan(&entry.ID, &ms, &level, &entry.Message, &entry.Detail, &entry.Remedy); err != nil {
			return nil, err
		}
		entry.Timestamp = time.UnixMilli(ms)
		entry.Level = translator.LogLevel(level)
		ret = append(ret, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (l *EventLog) Clear(ctx context.Context) error {
	_, err := l.store.db.ExecContext(ctx, `DELETE FROM event_logs`)
	return err
}
