package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/internal/termmap"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
)

func testConfig() *config.Config {
	return &config.Config{
		Translate: config.TranslateConfig{
			Models:         []string{"gemini-2.5-flash"},
			BatchSize:      2,
			TargetLanguage: language.TraditionalChinese,
		},
		Segment: config.SegmentConfig{
			PauseThresholdMs:  500,
			LinguisticPauseMs: 150,
			MultiSegRatio:     0.35,
			AdvancedLanguage:  "ja",
		},
	}
}

func newTestStore(t *testing.T) *persistence.SQLiteStore {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "captions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSettings(t *testing.T) *config.RuntimeSettingsStore {
	t.Helper()
	settings, err := config.NewRuntimeSettingsStore(filepath.Join(t.TempDir(), "settings.json"), config.RuntimeSettings{
		Credentials:     []translator.Credential{{ID: "main", Secret: "AIza-main"}},
		Models:          []string{"gemini-2.5-flash-lite"},
		CustomPrompts:   map[string]string{"ja": "glossary"},
		NativeLangs:     []string{"zh-Hant"},
		PriorityLangs:   []string{"ja"},
		MaintenanceCron: "0 */10 * * * *",
	})
	require.NoError(t, err)
	return settings
}

func intp(v int) *int { return &v }

func testPayload() *subtitle.Payload {
	events := []subtitle.RawEvent{
		{StartMs: intp(0), DurationMs: intp(1000), Segs: []subtitle.Seg{{UTF8: "こんにちは"}}},
		{StartMs: intp(1000), DurationMs: intp(1000), Segs: []subtitle.Seg{{UTF8: "今日は"}}},
		{StartMs: intp(2000), DurationMs: intp(1000), Segs: []subtitle.Seg{{UTF8: "いい天気"}}},
	}
	return &subtitle.Payload{Events: events}
}

func TestCaptionService_PrepareSegmentsAndCaches(t *testing.T) {
	store := newTestStore(t)
	svc := NewCaptionService(testConfig(), store, &fakeTranslator{})
	ctx := context.Background()

	snap, err := svc.Prepare(ctx, StartRequest{VideoID: "abc", TrackID: "a.ja", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	require.Len(t, snap.Cues, 3)
	assert.Equal(t, "legacy", snap.Engine)
	assert.Equal(t, string(StateIdle), snap.State)
	assert.NotEmpty(t, snap.RawPayload)

	cached, err := svc.Prepare(ctx, StartRequest{VideoID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, snap.Cues, cached.Cues)
	assert.Equal(t, "a.ja", cached.TrackID)
}

func TestCaptionService_PrepareRequiresPayloadOnMiss(t *testing.T) {
	svc := NewCaptionService(testConfig(), newTestStore(t), &fakeTranslator{})

	_, err := svc.Prepare(context.Background(), StartRequest{VideoID: "abc"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrNotFound))

	_, err = svc.Prepare(context.Background(), StartRequest{Payload: testPayload()})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))
}

func TestCaptionService_TranslateUsesSettingsAndPersists(t *testing.T) {
	store := newTestStore(t)
	tr := &fakeTranslator{}
	svc := NewCaptionService(testConfig(), store, tr, WithSettings(newTestSettings(t)))
	ctx := context.Background()

	_, err := svc.Prepare(ctx, StartRequest{VideoID: "abc", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	require.NoError(t, svc.Translate(ctx, "abc"))

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"こんにちは", "今日は"}, calls[0].Texts)
	assert.Equal(t, []string{"いい天気"}, calls[1].Texts)
	assert.Equal(t, "ja", calls[0].SourceLang)
	assert.Equal(t, "zh-Hant", calls[0].TargetLang)
	assert.Equal(t, []string{"gemini-2.5-flash-lite"}, calls[0].Models)
	assert.Equal(t, "glossary", calls[0].CustomPrompt)
	require.Len(t, calls[0].Credentials, 1)
	assert.Equal(t, "AIza-main", calls[0].Credentials[0].Secret)

	status, err := svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, status.State)
	assert.Equal(t, subtitle.Progress{Done: 3, Total: 3}, status.Progress)
	assert.Equal(t, "zh:いい天気", status.Cues[2].Translation())
}

func TestCaptionService_GlossaryTermsReachTheBatchThatUsesThem(t *testing.T) {
	glossary := termmap.NewStore(t.TempDir())
	require.NoError(t, glossary.Put("ja", "zh-Hant", termmap.TermMap{
		"天気": "天氣",
		"明日": "明天",
	}))

	tr := &fakeTranslator{}
	svc := NewCaptionService(testConfig(), newTestStore(t), tr, WithGlossary(glossary))
	ctx := context.Background()

	_, err := svc.Prepare(ctx, StartRequest{VideoID: "abc", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	require.NoError(t, svc.Translate(ctx, "abc"))

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Nil(t, calls[0].Glossary)
	assert.Equal(t, map[string]string{"天気": "天氣"}, calls[1].Glossary)

	_, err = svc.TranslateTexts(ctx, translator.Request{Texts: []string{"明日も"}, SourceLang: "ja"})
	require.NoError(t, err)
	calls = tr.Calls()
	assert.Equal(t, map[string]string{"明日": "明天"}, calls[2].Glossary)
}

func TestCaptionService_ResumeSkipsTranslatedCues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done := "你好"
	require.NoError(t, store.PutSnapshot(ctx, persistence.CacheSnapshot{
		VideoID:    "abc",
		SourceLang: "ja",
		State:      string(StateCancelled),
		Cues: []subtitle.Cue{
			{StartMs: 0, EndMs: 1000, Text: "こんにちは", TranslatedText: &done},
			{StartMs: 1000, EndMs: 2000, Text: "今日は"},
		},
		UpdatedAt: time.Now(),
	}))

	tr := &fakeTranslator{}
	svc := NewCaptionService(testConfig(), store, tr)
	require.NoError(t, svc.Translate(ctx, "abc"))

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"今日は"}, calls[0].Texts)

	status, err := svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "你好", status.Cues[0].Translation())
}

func TestCaptionService_PermanentFailurePersistsError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tr := &fakeTranslator{respond: func(int, translator.Request) (translator.Result, error) {
		return translator.Result{Outcome: translator.OutcomePermanent, Message: "billing disabled"}, nil
	}}
	svc := NewCaptionService(testConfig(), store, tr)

	_, err := svc.Prepare(ctx, StartRequest{VideoID: "abc", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	err = svc.Translate(ctx, "abc")
	require.Error(t, err)

	status, err := svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StatePermanentStopped, status.State)
	assert.Equal(t, "billing disabled", status.Error)
}

func TestCaptionService_QueueRunsAndRetries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tr := &fakeTranslator{respond: func(call int, req translator.Request) (translator.Result, error) {
		if call == 0 {
			return translator.Result{Outcome: translator.OutcomeBatch, Message: "malformed"}, nil
		}
		return succeed(req), nil
	}}
	svc := NewCaptionService(testConfig(), store, tr, WithQueue(jobs.NewQueue(1, store)))
	svc.Start()
	t.Cleanup(svc.Stop)

	job, created, err := svc.StartVideo(ctx, StartRequest{VideoID: "abc", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, jobs.ActionTranslate, job.Payload.Action)

	require.Eventually(t, func() bool {
		got, ok := svc.Queue().Get(job.ID)
		return ok && got.Status == jobs.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	status, err := svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, status.PartialFailure)
	assert.Equal(t, subtitle.Progress{Done: 1, Total: 3, Failed: 2}, status.Progress)

	retry, _, err := svc.RetryVideo(ctx, "abc")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, ok := svc.Queue().Get(retry.ID)
		return ok && got.Status == jobs.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	status, err = svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, status.PartialFailure)
	assert.Equal(t, subtitle.Progress{Done: 3, Total: 3}, status.Progress)
	assert.Equal(t, StateSuccess, status.State)
}

func TestCaptionService_CancelVideo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := make(chan struct{})
	tr := &fakeTranslator{respond: func(int, translator.Request) (translator.Result, error) {
		close(started)
		return translator.Result{Outcome: translator.OutcomeTemporary, RetryDelay: time.Hour}, nil
	}}
	svc := NewCaptionService(testConfig(), store, tr, WithQueue(jobs.NewQueue(1, store)))
	svc.Start()
	t.Cleanup(svc.Stop)

	job, _, err := svc.StartVideo(ctx, StartRequest{VideoID: "abc", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	<-started

	require.Eventually(t, func() bool {
		status, err := svc.Status(ctx, "abc")
		return err == nil && status.State == StateRetryScheduled
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, svc.CancelVideo("abc"))
	require.Eventually(t, func() bool {
		got, ok := svc.Queue().Get(job.ID)
		return ok && got.Status == jobs.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	status, err := svc.Status(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, status.State)
	assert.Equal(t, 0, status.Progress.Done)
	assert.False(t, svc.CancelVideo("abc"))
}

func TestCaptionService_ListAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewCaptionService(testConfig(), store, &fakeTranslator{})

	_, err := svc.Prepare(ctx, StartRequest{VideoID: "a", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)
	_, err = svc.Prepare(ctx, StartRequest{VideoID: "b", SourceLang: "ja", Payload: testPayload()})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].Cues)
	assert.Equal(t, 3, list[0].Progress.Total)

	deleted, err := svc.ClearCache(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.Status(ctx, "a")
	assert.True(t, IsErrorType(err, ErrNotFound))

	n, err := svc.ClearAllCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCaptionService_TranslateTextsFillsCredentials(t *testing.T) {
	tr := &fakeTranslator{}
	svc := NewCaptionService(testConfig(), newTestStore(t), tr, WithSettings(newTestSettings(t)))

	res, err := svc.TranslateTexts(context.Background(), translator.Request{
		Texts:      []string{"a"},
		SourceLang: "ja",
		Models:     []string{"gemini-2.5-pro"},
	})
	require.NoError(t, err)
	assert.True(t, res.OK())

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"gemini-2.5-pro"}, calls[0].Models)
	assert.Equal(t, "zh-Hant", calls[0].TargetLang)
	require.Len(t, calls[0].Credentials, 1)
}

func TestCaptionService_SegmentDetectsLanguage(t *testing.T) {
	svc := NewCaptionService(testConfig(), newTestStore(t), &fakeTranslator{})

	res, err := svc.Segment(&subtitle.Payload{Events: []subtitle.RawEvent{
		{StartMs: intp(0), DurationMs: intp(2000), Segs: []subtitle.Seg{{UTF8: "今日はとてもいい天気ですね、散歩に行きましょう"}}},
		{StartMs: intp(2000), DurationMs: intp(2000), Segs: []subtitle.Seg{{UTF8: "そうですね、公園まで歩いて行きましょうか"}}},
	}}, "")
	require.NoError(t, err)
	assert.Equal(t, "ja", res.SourceLang)
	assert.Len(t, res.Cues, 2)

	_, err = svc.Segment(nil, "ja")
	assert.True(t, IsErrorType(err, ErrValidation))
}
