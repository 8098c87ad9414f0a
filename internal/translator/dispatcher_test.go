package translator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func call(key, model string) interface{} {
	return mock.MatchedBy(func(r llm.GenerateRequest) bool {
		return r.APIKey == key && r.Model == model
	})
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(gen llm.Generator, store CooldownStore, sink LogSink) *Dispatcher {
	return NewDispatcher(gen,
		WithCooldownStore(store),
		WithLogSink(sink),
		WithModels("m1", "m2"),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func creds(ids ...string) []Credential {
	out := make([]Credential, 0, len(ids))
	for _, id := range ids {
		out = append(out, Credential{ID: id, Name: "key " + id, Secret: "secret-" + id})
	}
	return out
}

func TestTranslate_SuccessFirstAttempt(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).Return(`["你好","再見"]`, nil).Once()

	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{
		Texts:       []string{"こんにちは", "さようなら"},
		SourceLang:  "ja",
		Credentials: creds("a"),
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"你好", "再見"}, res.Translations)
	assert.Equal(t, "m1", res.Model)
	gen.AssertExpectations(t)
}

func TestTranslate_EmptyTextsSkipsProvider(t *testing.T) {
	gen := &mockGenerator{}
	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())

	res, err := d.Translate(context.Background(), Request{Credentials: creds("a")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Translations)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslate_NoCredentialsIsPermanent(t *testing.T) {
	gen := &mockGenerator{}
	sink := NewMemoryLogSink()
	d := newTestDispatcher(gen, NewMemoryCooldownStore(), sink)

	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomePermanent, res.Outcome)

	entries, _ := sink.Entries(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, LogError, entries[0].Level)
}

func TestTranslate_BatchFailureFallsBackToNextModel(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).Return(`["only one"]`, nil).Once()
	gen.On("Generate", mock.Anything, call("secret-a", "m2")).Return(`["一","二"]`, nil).Once()

	store := NewMemoryCooldownStore()
	d := newTestDispatcher(gen, store, NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{Texts: []string{"1", "2"}, Credentials: creds("a")})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "m2", res.Model)

	cooldowns, _ := store.Cooldowns(context.Background())
	assert.Empty(t, cooldowns)
	gen.AssertExpectations(t)
}

func TestTranslate_TemporaryFailureRotatesCredential(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).
		Return("", errors.New("gemini m1: status 429: Resource has been exhausted (e.g. check quota)")).Once()
	gen.On("Generate", mock.Anything, call("secret-b", "m1")).Return(`["ok"]`, nil).Once()

	store := NewMemoryCooldownStore()
	d := newTestDispatcher(gen, store, NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}, Credentials: creds("a", "b")})
	require.NoError(t, err)
	assert.True(t, res.OK())

	cooldowns, _ := store.Cooldowns(context.Background())
	assert.Equal(t, map[string]time.Time{"a": fixedNow}, cooldowns)
	gen.AssertExpectations(t)
	// a temporary failure does not try the remaining models of that credential
	gen.AssertNotCalled(t, "Generate", mock.Anything, call("secret-a", "m2"))
}

func TestTranslate_InvalidKeyIsPermanentWithoutCooldown(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).
		Return("", errors.New("gemini m1: status 400: API key not valid. Please pass a valid API key.")).Once()

	store := NewMemoryCooldownStore()
	sink := NewMemoryLogSink()
	d := newTestDispatcher(gen, store, sink)
	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}, Credentials: creds("a")})
	require.NoError(t, err)
	assert.Equal(t, OutcomePermanent, res.Outcome)

	cooldowns, _ := store.Cooldowns(context.Background())
	assert.Empty(t, cooldowns)

	entries, _ := sink.Entries(context.Background())
	require.NotEmpty(t, entries)
	assert.NotEmpty(t, entries[0].Remedy)
	assert.Contains(t, entries[0].Detail, "API key not valid")
}

func TestTranslate_AllCredentialsCoolingReportsShortestRemaining(t *testing.T) {
	gen := &mockGenerator{}
	store := NewMemoryCooldownStore()
	ctx := context.Background()
	require.NoError(t, store.SetCooldown(ctx, "a", fixedNow.Add(-50*time.Second)))
	require.NoError(t, store.SetCooldown(ctx, "b", fixedNow.Add(-35*time.Second)))

	d := newTestDispatcher(gen, store, NewMemoryLogSink())
	res, err := d.Translate(ctx, Request{Texts: []string{"x"}, Credentials: creds("a", "b")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTemporary, res.Outcome)
	assert.Equal(t, 10*time.Second, res.RetryDelay)
	assert.Equal(t, 10, res.RetryDelaySeconds())
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslate_ExpiredCooldownIsCleared(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).Return(`["ok"]`, nil).Once()

	store := NewMemoryCooldownStore()
	ctx := context.Background()
	require.NoError(t, store.SetCooldown(ctx, "a", fixedNow.Add(-61*time.Second)))

	d := newTestDispatcher(gen, store, NewMemoryLogSink())
	res, err := d.Translate(ctx, Request{Texts: []string{"x"}, Credentials: creds("a")})
	require.NoError(t, err)
	assert.True(t, res.OK())

	cooldowns, _ := store.Cooldowns(ctx)
	assert.Empty(t, cooldowns)
}

func TestTranslate_TemporaryUsesProviderRetryDelay(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).
		Return("", errors.New(`status 429: quota exceeded {"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "27s"}`)).Once()

	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}, Credentials: creds("a")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTemporary, res.Outcome)
	assert.Equal(t, 27*time.Second, res.RetryDelay)
}

func TestTranslate_TemporaryWithoutHintUsesDefaultDelay(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).
		Return("", errors.New("status 503: The model is overloaded. Please try again later.")).Once()

	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}, Credentials: creds("a")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTemporary, res.Outcome)
	assert.Equal(t, DefaultRetryDelay, res.RetryDelay)
}

func TestTranslate_EveryModelMalformedIsBatchFailure(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("I cannot help with that", nil)

	sink := NewMemoryLogSink()
	d := newTestDispatcher(gen, NewMemoryCooldownStore(), sink)
	res, err := d.Translate(context.Background(), Request{Texts: []string{"x"}, Credentials: creds("a", "b")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBatch, res.Outcome)
	gen.AssertNumberOfCalls(t, "Generate", 4)

	entries, _ := sink.Entries(context.Background())
	require.Len(t, entries, 5)
	assert.Equal(t, "Every model failed for this batch", entries[0].Message)
}

func TestTranslate_PermanentWhileOtherKeyCoolsIsPermanent(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-b", "m1")).
		Return("", errors.New("API key not valid. Please pass a valid API key.")).Once()

	store := NewMemoryCooldownStore()
	ctx := context.Background()
	require.NoError(t, store.SetCooldown(ctx, "a", fixedNow.Add(-30*time.Second)))

	d := newTestDispatcher(gen, store, NewMemoryLogSink())
	res, err := d.Translate(ctx, Request{Texts: []string{"x"}, Credentials: creds("a", "b")})
	require.NoError(t, err)
	assert.Equal(t, OutcomePermanent, res.Outcome)
	assert.Zero(t, res.RetryDelay)
	gen.AssertNumberOfCalls(t, "Generate", 1)

	cooldowns, err := store.Cooldowns(ctx)
	require.NoError(t, err)
	assert.NotContains(t, cooldowns, "b")
}

func TestTranslate_CancelledContext(t *testing.T) {
	gen := &mockGenerator{}
	ctx, cancel := context.WithCancel(context.Background())
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())
	_, err := d.Translate(ctx, Request{Texts: []string{"x"}, Credentials: creds("a", "b")})
	require.ErrorIs(t, err, context.Canceled)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestTranslate_OverridePromptReachesProvider(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.GenerateRequest) bool {
		return r.Prompt == `Translate: ["a"]` && r.JSONResponse
	})).Return(`["甲"]`, nil).Once()

	d := newTestDispatcher(gen, NewMemoryCooldownStore(), NewMemoryLogSink())
	res, err := d.Translate(context.Background(), Request{
		Texts:          []string{"a"},
		Credentials:    creds("a"),
		OverridePrompt: "Translate: {json_input_text}",
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	gen.AssertExpectations(t)
}

func TestDiagnose(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, call("secret-a", "m1")).Return("ok", nil).Once()
	gen.On("Generate", mock.Anything, call("secret-b", "m1")).Return("", errors.New("API key not valid")).Once()

	sink := NewMemoryLogSink()
	d := newTestDispatcher(gen, NewMemoryCooldownStore(), sink)
	results, err := d.Diagnose(context.Background(), creds("a", "b"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Detail, "API key not valid")

	entries, _ := sink.Entries(context.Background())
	require.Len(t, entries, 2)
	assert.Equal(t, LogError, entries[0].Level)
	assert.Equal(t, LogInfo, entries[1].Level)
}

func TestDiagnose_NoCredentials(t *testing.T) {
	d := newTestDispatcher(&mockGenerator{}, NewMemoryCooldownStore(), NewMemoryLogSink())
	results, err := d.Diagnose(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
