package service

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/pkg/icron"
)

func TestMaintenance_RunExpiresOldRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.PutSnapshot(ctx, persistence.CacheSnapshot{VideoID: "old", UpdatedAt: now.Add(-200 * time.Hour)}))
	require.NoError(t, store.PutSnapshot(ctx, persistence.CacheSnapshot{VideoID: "fresh", UpdatedAt: now}))
	require.NoError(t, store.SetCooldown(ctx, "stale", now.Add(-2*time.Minute)))
	require.NoError(t, store.SetCooldown(ctx, "cooling", now.Add(-10*time.Second)))

	m := NewMaintenance(store, cron.New(cron.WithParser(icron.Parser)), "0 */10 * * * *", 168*time.Hour, time.Minute)
	m.now = func() time.Time { return now }

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Snapshots)
	assert.Equal(t, int64(1), report.Cooldowns)
	assert.Equal(t, report, m.LastRun())

	_, ok, err := store.GetSnapshot(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	cooldowns, err := store.Cooldowns(ctx)
	require.NoError(t, err)
	assert.Contains(t, cooldowns, "cooling")
	assert.NotContains(t, cooldowns, "stale")
}

func TestMaintenance_ScheduleAndReschedule(t *testing.T) {
	c := cron.New(cron.WithParser(icron.Parser))
	m := NewMaintenance(newTestStore(t), c, "0 */10 * * * *", time.Hour, time.Minute)

	require.NoError(t, m.Schedule(context.Background()))
	require.Len(t, c.Entries(), 1)

	require.NoError(t, m.Reschedule(context.Background(), "@every 1h"))
	require.Len(t, c.Entries(), 1)

	err := m.Reschedule(context.Background(), "not a cron")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))

	info, err := m.NextRun()
	require.NoError(t, err)
	assert.Equal(t, "@every 1h", info.Expression)
	assert.True(t, info.Next.After(time.Now().Add(-time.Second)))
}
