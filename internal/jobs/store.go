package jobs

import "context"

// Store persists jobs so a restarted queue can pick up videos that were
// still pending or running
type Store interface {
	LoadJobs(ctx context.Context) ([]*TranslationJob, error)
	UpsertJob(ctx context.Context, job *TranslationJob) error
	DeleteJob(ctx context.Context, jobID string) error
}

// VideoKey is the dedupe key shared by every job of a video. Translate and
// retry jobs use the same key so a video never runs two sessions at once.
func VideoKey(videoID string) string {
	return "video:" + videoID
}

// VideoJob builds the request for one action on a cached video
func VideoJob(source, videoID string, action Action) EnqueueRequest {
	return EnqueueRequest{
		Source:    source,
		DedupeKey: VideoKey(videoID),
		Payload:   JobPayload{VideoID: videoID, Action: action},
	}
}

// ActiveVideo returns the pending or running job of a video
func (q *Queue) ActiveVideo(videoID string) (*TranslationJob, bool) {
	return q.Active(VideoKey(videoID))
}
