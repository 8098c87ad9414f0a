package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/internal/segment"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

const jobSource = "api"

// CaptionService owns the cache, segmentation and translation sessions of
// every video
type CaptionService struct {
	cfg        *config.Config
	store      *persistence.SQLiteStore
	settings   SettingsSource
	glossary   GlossarySource
	translator translator.Translator
	queue      *jobs.Queue

	after func(time.Duration) <-chan time.Time
	now   func() time.Time

	prepareGroup singleflight.Group
}

type Option func(*CaptionService)

// WithQueue runs sessions on a worker queue instead of only synchronously
func WithQueue(q *jobs.Queue) Option {
	return func(s *CaptionService) {
		s.queue = q
	}
}

// WithSettings makes credentials, models and custom prompts follow the
// runtime settings
func WithSettings(settings SettingsSource) Option {
	return func(s *CaptionService) {
		s.settings = settings
	}
}

// WithGlossary adds matching glossary terms to every translation request
func WithGlossary(glossary GlossarySource) Option {
	return func(s *CaptionService) {
		s.glossary = glossary
	}
}

// WithTimer replaces time.After for scheduled retries
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(s *CaptionService) {
		s.after = after
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *CaptionService) {
		s.now = now
	}
}

func NewCaptionService(
	cfg *config.Config,
	store *persistence.SQLiteStore,
	tr translator.Translator,
	opts ...Option,
) *CaptionService {
	s := &CaptionService{
		cfg:        cfg,
		store:      store,
		translator: tr,
		after:      time.After,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the queue workers with the session executor
func (s *CaptionService) Start() {
	if s.queue != nil {
		s.queue.Start(s.Execute)
	}
}

func (s *CaptionService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

func (s *CaptionService) Queue() *jobs.Queue {
	return s.queue
}

// Pipeline returns the segmentation pipeline for the current settings
func (s *CaptionService) Pipeline() *segment.Pipeline {
	params := segment.DefaultParams()
	params.PauseThresholdMs = s.cfg.Segment.PauseThresholdMs
	params.LinguisticPauseMs = s.cfg.Segment.LinguisticPauseMs
	params.MultiSegRatio = s.cfg.Segment.MultiSegRatio
	params.AdvancedLanguage = s.cfg.Segment.AdvancedLanguage
	params.AdvancedEnabled = s.cfg.Segment.AdvancedEnabled
	if s.settings != nil {
		if current, err := s.settings.GetRuntimeSettings(); err == nil {
			params.AdvancedEnabled = current.AdvancedEnabled
		}
	}
	return segment.NewPipeline(params)
}

// Segment splits a payload into cues without touching the cache. A missing
// language is detected from the payload text.
func (s *CaptionService) Segment(payload *subtitle.Payload, sourceLang string) (SegmentResult, error) {
	if payload == nil {
		return SegmentResult{}, NewError(ErrValidation, "caption payload is required")
	}
	if strings.TrimSpace(sourceLang) == "" {
		sourceLang = subtitle.DetectLanguage(payload).String()
		log.Info("Detected caption language %s", sourceLang)
	}
	res := s.Pipeline().Segment(payload, sourceLang)
	return SegmentResult{
		SourceLang: sourceLang,
		Decision:   res.Decision,
		Cues:       res.Cues,
	}, nil
}

// Prepare returns the cached snapshot of a video, segmenting the payload
// first when the cache holds no cues. Concurrent calls for the same video
// share one segmentation.
func (s *CaptionService) Prepare(ctx context.Context, req StartRequest) (persistence.CacheSnapshot, error) {
	if strings.TrimSpace(req.VideoID) == "" {
		return persistence.CacheSnapshot{}, NewError(ErrValidation, "video id is required")
	}

	v, err, _ := s.prepareGroup.Do(req.VideoID, func() (any, error) {
		snap, ok, err := s.store.GetSnapshot(ctx, req.VideoID)
		if err != nil {
			return nil, WrapError(err, ErrStorage, "failed to read cache").WithContext("video_id", req.VideoID)
		}
		if ok && len(snap.Cues) > 0 {
			log.Debug("Cache hit for video %s, %d cues", req.VideoID, len(snap.Cues))
			return snap, nil
		}
		if req.Payload == nil {
			return nil, NewError(ErrNotFound, "no cached captions and no payload").WithContext("video_id", req.VideoID)
		}

		seg, err := s.Segment(req.Payload, req.SourceLang)
		if err != nil {
			return nil, err
		}
		snap = persistence.CacheSnapshot{
			VideoID:    req.VideoID,
			TrackID:    req.TrackID,
			SourceLang: seg.SourceLang,
			Engine:     string(seg.Decision.Engine),
			State:      string(StateIdle),
			Cues:       seg.Cues,
			RawPayload: rawPayload(req.Payload),
			UpdatedAt:  s.now(),
		}
		if err := s.store.PutSnapshot(ctx, snap); err != nil {
			return nil, WrapError(err, ErrStorage, "failed to write cache").WithContext("video_id", req.VideoID)
		}
		log.Info("Segmented video %s into %d cues with the %s engine", req.VideoID, len(snap.Cues), snap.Engine)
		return snap, nil
	})
	if err != nil {
		return persistence.CacheSnapshot{}, err
	}
	return v.(persistence.CacheSnapshot), nil
}

// StartVideo prepares the video and queues its translation. The returned
// job is the one already queued when the video is in progress.
func (s *CaptionService) StartVideo(ctx context.Context, req StartRequest) (*jobs.TranslationJob, bool, error) {
	if s.queue == nil {
		return nil, false, NewError(ErrConfig, "no job queue configured")
	}
	if _, err := s.Prepare(ctx, req); err != nil {
		return nil, false, err
	}
	job, created := s.queue.Enqueue(jobs.VideoJob(jobSource, req.VideoID, jobs.ActionTranslate))
	return job, created, nil
}

// RetryVideo queues one re-dispatch of the failed cues of a cached video
func (s *CaptionService) RetryVideo(ctx context.Context, videoID string) (*jobs.TranslationJob, bool, error) {
	if s.queue == nil {
		return nil, false, NewError(ErrConfig, "no job queue configured")
	}
	if _, err := s.snapshot(ctx, videoID); err != nil {
		return nil, false, err
	}
	job, created := s.queue.Enqueue(jobs.VideoJob(jobSource, videoID, jobs.ActionRetry))
	return job, created, nil
}

// CancelVideo stops the queued or running job of a video
func (s *CaptionService) CancelVideo(videoID string) bool {
	if s.queue == nil {
		return false
	}
	job, ok := s.queue.ActiveVideo(videoID)
	if !ok {
		return false
	}
	return s.queue.Cancel(job.ID)
}

// Execute is the queue executor
func (s *CaptionService) Execute(ctx context.Context, job *jobs.TranslationJob) error {
	switch job.Payload.Action {
	case jobs.ActionRetry:
		return s.RetryFailed(ctx, job.Payload.VideoID)
	default:
		return s.Translate(ctx, job.Payload.VideoID)
	}
}

// Translate runs the batch loop of a cached video until it finishes, stops
// permanently or ctx is cancelled
func (s *CaptionService) Translate(ctx context.Context, videoID string) error {
	session, err := s.session(ctx, videoID)
	if err != nil {
		return err
	}
	return session.Run(ctx)
}

// RetryFailed re-dispatches the failed cues of a cached video once
func (s *CaptionService) RetryFailed(ctx context.Context, videoID string) error {
	session, err := s.session(ctx, videoID)
	if err != nil {
		return err
	}
	return session.RetryFailed(ctx)
}

func (s *CaptionService) session(ctx context.Context, videoID string) (*Session, error) {
	snap, err := s.snapshot(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return NewSession(SessionConfig{
		VideoID:    videoID,
		State:      State(snap.State),
		Error:      snap.Error,
		Cues:       snap.Cues,
		Translator: s.translator,
		Request:    settingsRequestBuilder(s.settings, s.glossary, snap.SourceLang, s.cfg.Translate.TargetLanguage.String()),
		BatchSize:  s.cfg.Translate.BatchSize,
		After:      s.after,
		Checkpoint: newSnapshotCheckpoint(s.store, snap, s.now),
	})
}

func (s *CaptionService) snapshot(ctx context.Context, videoID string) (persistence.CacheSnapshot, error) {
	if strings.TrimSpace(videoID) == "" {
		return persistence.CacheSnapshot{}, NewError(ErrValidation, "video id is required")
	}
	snap, ok, err := s.store.GetSnapshot(ctx, videoID)
	if err != nil {
		return persistence.CacheSnapshot{}, WrapError(err, ErrStorage, "failed to read cache").WithContext("video_id", videoID)
	}
	if !ok {
		return persistence.CacheSnapshot{}, NewError(ErrNotFound, "video is not cached").WithContext("video_id", videoID)
	}
	return snap, nil
}

// Status returns the cached state and cues of a video
func (s *CaptionService) Status(ctx context.Context, videoID string) (VideoStatus, error) {
	snap, err := s.snapshot(ctx, videoID)
	if err != nil {
		return VideoStatus{}, err
	}
	status := VideoStatus{
		VideoID:    snap.VideoID,
		TrackID:    snap.TrackID,
		SourceLang: snap.SourceLang,
		Engine:     snap.Engine,
		State:      State(snap.State),
		Error:      snap.Error,
		Progress:   snap.Progress(),
		Cues:       snap.Cues,
		UpdatedAt:  snap.UpdatedAt,
	}
	status.PartialFailure = status.Progress.Failed > 0
	if s.queue != nil {
		if job, ok := s.queue.ActiveVideo(videoID); ok {
			status.JobID = job.ID
		}
	}
	return status, nil
}

// List returns every cached video without cues, newest first
func (s *CaptionService) List(ctx context.Context) ([]VideoStatus, error) {
	summaries, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "failed to list cache")
	}
	ret := make([]VideoStatus, 0, len(summaries))
	for _, sum := range summaries {
		status := VideoStatus{
			VideoID:        sum.VideoID,
			TrackID:        sum.TrackID,
			SourceLang:     sum.SourceLang,
			Engine:         sum.Engine,
			State:          State(sum.State),
			Error:          sum.Error,
			PartialFailure: sum.Progress.Failed > 0,
			Progress:       sum.Progress,
			UpdatedAt:      sum.UpdatedAt,
		}
		if s.queue != nil {
			if job, ok := s.queue.ActiveVideo(sum.VideoID); ok {
				status.JobID = job.ID
			}
		}
		ret = append(ret, status)
	}
	return ret, nil
}

// ClearCache cancels any job of the video and drops its snapshot
func (s *CaptionService) ClearCache(ctx context.Context, videoID string) (bool, error) {
	if strings.TrimSpace(videoID) == "" {
		return false, NewError(ErrValidation, "video id is required")
	}
	s.CancelVideo(videoID)
	deleted, err := s.store.DeleteSnapshot(ctx, videoID)
	if err != nil {
		return false, WrapError(err, ErrStorage, "failed to clear cache").WithContext("video_id", videoID)
	}
	return deleted, nil
}

// ClearAllCache cancels every active job and drops every snapshot
func (s *CaptionService) ClearAllCache(ctx context.Context) (int64, error) {
	if s.queue != nil {
		for _, job := range s.queue.List() {
			if !job.Status.Terminal() {
				s.queue.Cancel(job.ID)
			}
		}
	}
	n, err := s.store.DeleteAllSnapshots(ctx)
	if err != nil {
		return 0, WrapError(err, ErrStorage, "failed to clear cache")
	}
	log.Info("Cleared %d cached videos", n)
	return n, nil
}

// TranslateTexts runs one dispatch outside any session. Credentials always
// come from the runtime settings.
func (s *CaptionService) TranslateTexts(ctx context.Context, req translator.Request) (translator.Result, error) {
	if req.TargetLang == "" {
		req.TargetLang = s.cfg.Translate.TargetLanguage.String()
	}
	req, err := fillFromSettings(s.settings, s.glossary, req)
	if err != nil {
		return translator.Result{}, err
	}
	return s.translator.Translate(ctx, req)
}
