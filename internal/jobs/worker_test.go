package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitStatus(t *testing.T, q *Queue, id string, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := q.Get(id)
		return ok && got.Status == want
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Worker_RunsVideoAction(t *testing.T) {
	q := NewQueue(1, nil)
	seen := make(chan JobPayload, 1)
	q.Start(func(_ context.Context, job *TranslationJob) error {
		seen <- job.Payload
		return nil
	})
	defer q.Stop()

	job, created := q.Enqueue(VideoJob("api", "abc", ActionRetry))
	require.True(t, created)
	assert.Equal(t, "video:abc", job.DedupeKey)

	waitStatus(t, q, job.ID, StatusSuccess)
	assert.Equal(t, JobPayload{VideoID: "abc", Action: ActionRetry}, <-seen)

	_, ok := q.ActiveVideo("abc")
	assert.False(t, ok)
}

func TestQueue_Worker_TranslateAndRetryShareTheVideo(t *testing.T) {
	q := NewQueue(2, nil)
	release := make(chan struct{})
	q.Start(func(ctx context.Context, _ *TranslationJob) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	defer q.Stop()

	translate, created := q.Enqueue(VideoJob("api", "abc", ActionTranslate))
	require.True(t, created)
	retry, created := q.Enqueue(VideoJob("api", "abc", ActionRetry))
	require.False(t, created)
	assert.Equal(t, translate.ID, retry.ID)

	active, ok := q.ActiveVideo("abc")
	require.True(t, ok)
	assert.Equal(t, ActionTranslate, active.Payload.Action)

	close(release)
	waitStatus(t, q, translate.ID, StatusSuccess)
}
