package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
	"github.com/google/uuid"
)

const DefaultBatchSize = 30

// SessionConfig wires a session to its collaborators
//
// Cues: segmented cue list, already translated cues are kept
// Translator: dispatcher answering one batch at a time
// Request: builds the request of a batch, usually from the runtime settings
// BatchSize: cues per dispatch, DefaultBatchSize when zero
// After: timer used for scheduled retries, time.After when nil
// Checkpoint: receives the cue list after every change, nothing is stored when nil
// State/Error: state restored from a snapshot, StateIdle when empty
type SessionConfig struct {
	VideoID    string
	State      State
	Error      string
	Cues       []subtitle.Cue
	Translator translator.Translator
	Request    RequestBuilder
	BatchSize  int
	After      func(time.Duration) <-chan time.Time
	Checkpoint Checkpoint
}

// Session translates the cue list of one video batch by batch. Run and
// RetryFailed must not be called concurrently; status accessors are safe at
// any time.
type Session struct {
	id         string
	videoID    string
	translator translator.Translator
	request    RequestBuilder
	batchSize  int
	after      func(time.Duration) <-chan time.Time
	checkpoint Checkpoint

	mu      sync.RWMutex
	cues    []subtitle.Cue
	state   State
	errMsg  string
	partial bool
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Translator == nil {
		return nil, NewError(ErrConfig, "session needs a translator")
	}
	if cfg.Request == nil {
		return nil, NewError(ErrConfig, "session needs a request builder")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if cfg.Checkpoint == nil {
		cfg.Checkpoint = nopCheckpoint{}
	}

	if cfg.State == "" {
		cfg.State = StateIdle
	}

	cues := subtitle.CloneCues(cfg.Cues)
	partial := false
	for _, cue := range cues {
		if cue.TempFailed {
			partial = true
			break
		}
	}

	return &Session{
		id:         uuid.NewString(),
		videoID:    cfg.VideoID,
		translator: cfg.Translator,
		request:    cfg.Request,
		batchSize:  cfg.BatchSize,
		after:      cfg.After,
		checkpoint: cfg.Checkpoint,
		cues:       cues,
		state:      cfg.State,
		errMsg:     cfg.Error,
		partial:    partial,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the message of the failure that stopped the session
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// PartialFailure reports whether some cues are marked as temporarily failed
func (s *Session) PartialFailure() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partial
}

func (s *Session) Cues() []subtitle.Cue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtitle.CloneCues(s.cues)
}

func (s *Session) Progress() subtitle.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtitle.ComputeProgress(s.cues)
}

// Run translates pending cues until none are left, the provider fails
// permanently, or ctx is cancelled. Temporary failures are retried after the
// delay the dispatcher suggests plus one second. A batch the provider cannot
// handle is marked as temporarily failed and the loop moves on.
func (s *Session) Run(ctx context.Context) error {
	s.transition(ctx, StateTranslating, "")

	for {
		if err := ctx.Err(); err != nil {
			return s.cancelled(ctx, err)
		}

		indexes := s.nextBatch()
		if len(indexes) == 0 {
			s.transition(ctx, StateSuccess, "")
			p := s.Progress()
			log.Info("Session %s finished video %s: %d/%d translated, %d failed", s.id, s.videoID, p.Done, p.Total, p.Failed)
			return nil
		}

		res, err := s.dispatch(ctx, indexes)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(ctx, ctx.Err())
			}
			return s.halt(ctx, err.Error(), err)
		}

		switch res.Outcome {
		case translator.OutcomeSuccess:
			s.apply(indexes, res.Translations)
			s.save(ctx)

		case translator.OutcomeTemporary:
			wait := res.RetryDelay + time.Second
			log.Info("Session %s retries video %s in %s: %s", s.id, s.videoID, wait, res.Message)
			s.transition(ctx, StateRetryScheduled, "")
			select {
			case <-ctx.Done():
				return s.cancelled(ctx, ctx.Err())
			case <-s.after(wait):
			}
			if err := ctx.Err(); err != nil {
				return s.cancelled(ctx, err)
			}
			s.transition(ctx, StateTranslating, "")

		case translator.OutcomeBatch:
			log.Warn("Session %s marks %d cues of video %s as failed: %s", s.id, len(indexes), s.videoID, res.Message)
			s.markFailed(indexes)
			s.save(ctx)

		default:
			return s.halt(ctx, res.Message, nil)
		}
	}
}

// RetryFailed sends every temporarily failed cue in one dispatch. On success
// the cues are translated and their flag cleared; otherwise nothing changes.
func (s *Session) RetryFailed(ctx context.Context) error {
	indexes := s.failedIndexes()
	if len(indexes) == 0 {
		return nil
	}
	log.Info("Session %s retries %d failed cues of video %s", s.id, len(indexes), s.videoID)

	res, err := s.dispatch(ctx, indexes)
	if err != nil {
		if ctx.Err() != nil {
			return NewErrorWithCause(ErrCancelled, "retry cancelled", ctx.Err())
		}
		return WrapError(err, ErrTranslation, "retry of failed cues failed")
	}
	if !res.OK() {
		return NewError(ErrTranslation, fmt.Sprintf("retry of failed cues failed: %s", res.Message)).
			WithContext("outcome", res.Outcome).
			WithContext("retry_delay_seconds", res.RetryDelaySeconds())
	}

	s.apply(indexes, res.Translations)

	s.mu.Lock()
	s.partial = false
	done := true
	for _, cue := range s.cues {
		if cue.TempFailed {
			s.partial = true
		}
		if !cue.IsTranslated() && !cue.TempFailed {
			done = false
		}
	}
	if done && !s.partial {
		s.state = StateSuccess
		s.errMsg = ""
	}
	s.mu.Unlock()

	s.save(ctx)
	return nil
}

func (s *Session) dispatch(ctx context.Context, indexes []int) (translator.Result, error) {
	s.mu.RLock()
	texts := make([]string, len(indexes))
	for i, idx := range indexes {
		texts[i] = s.cues[idx].Text
	}
	s.mu.RUnlock()

	req, err := s.request(texts)
	if err != nil {
		return translator.Result{}, err
	}
	return s.translator.Translate(ctx, req)
}

// nextBatch returns the indexes of the first cues that are neither translated
// nor marked as failed
func (s *Session) nextBatch() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]int, 0, s.batchSize)
	for i, cue := range s.cues {
		if !cue.IsPending() {
			continue
		}
		ret = append(ret, i)
		if len(ret) == s.batchSize {
			break
		}
	}
	return ret
}

func (s *Session) failedIndexes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []int
	for i, cue := range s.cues {
		if cue.TempFailed && !cue.IsTranslated() {
			ret = append(ret, i)
		}
	}
	return ret
}

func (s *Session) apply(indexes []int, translations []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, idx := range indexes {
		if i >= len(translations) {
			break
		}
		text := translations[i]
		s.cues[idx].TranslatedText = &text
		s.cues[idx].TempFailed = false
	}
}

func (s *Session) markFailed(indexes []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, idx := range indexes {
		s.cues[idx].TempFailed = true
	}
	s.partial = true
}

func (s *Session) transition(ctx context.Context, state State, errMsg string) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.errMsg = errMsg
	s.mu.Unlock()
	if prev != state {
		log.Debug("Session %s video %s: %s -> %s", s.id, s.videoID, prev, state)
	}
	s.save(ctx)
}

func (s *Session) save(ctx context.Context) {
	s.mu.RLock()
	state, errMsg := s.state, s.errMsg
	cues := subtitle.CloneCues(s.cues)
	s.mu.RUnlock()
	if err := s.checkpoint.Save(ctx, state, errMsg, cues); err != nil {
		log.Warn("Failed to save snapshot of video %s: %v", s.videoID, err)
	}
}

func (s *Session) cancelled(ctx context.Context, cause error) error {
	log.Info("Session %s for video %s cancelled", s.id, s.videoID)
	s.transition(ctx, StateCancelled, "")
	return NewErrorWithCause(ErrCancelled, "translation cancelled", cause).WithContext("video_id", s.videoID)
}

func (s *Session) halt(ctx context.Context, message string, cause error) error {
	if message == "" {
		message = "translation failed"
	}
	log.Error("Session %s stopped video %s: %s", s.id, s.videoID, message)
	s.transition(ctx, StatePermanentStopped, message)
	return NewErrorWithCause(ErrPermanent, message, cause).WithContext("video_id", s.videoID)
}
