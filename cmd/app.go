package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/httpapi"
	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/llm"
	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/internal/termmap"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
	"github.com/MimeLyc/contextual-caption-translator/pkg/icron"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// app wires the storage, translation and caption layers for one command
type app struct {
	cfg        *config.Config
	store      *persistence.SQLiteStore
	settings   *config.RuntimeSettingsStore
	glossary   *termmap.Store
	dispatcher *translator.Dispatcher
	captions   *service.CaptionService
}

func newApp(cfg *config.Config, withQueue bool) (*app, error) {
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	dispatcher, err := newDispatcher(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	settings, err := config.NewRuntimeSettingsStore(cfg.SettingsPath(), cfg.RuntimeSettings())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load runtime settings: %w", err)
	}

	glossary := termmap.NewStore(cfg.GlossaryPath())
	opts := []service.Option{service.WithSettings(settings), service.WithGlossary(glossary)}
	if withQueue {
		opts = append(opts, service.WithQueue(jobs.NewQueue(cfg.System.Workers, store)))
	}

	return &app{
		cfg:        cfg,
		store:      store,
		settings:   settings,
		glossary:   glossary,
		dispatcher: dispatcher,
		captions:   service.NewCaptionService(cfg, store, dispatcher, opts...),
	}, nil
}

func newDispatcher(cfg *config.Config, store *persistence.SQLiteStore) (*translator.Dispatcher, error) {
	prompts := translator.DefaultPromptBook()
	if cfg.Translate.PromptsFile != "" {
		book, err := translator.LoadPromptBook(cfg.Translate.PromptsFile)
		if err != nil {
			return nil, fmt.Errorf("load prompt book: %w", err)
		}
		prompts = book
	}

	classifier := translator.DefaultClassifier()
	gen, err := llm.NewGenerator(&llm.Config{
		Provider:         cfg.LLM.Provider,
		APIURL:           cfg.LLM.APIURL,
		Timeout:          cfg.LLM.Timeout,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		SiteURL:          cfg.LLM.SiteURL,
		AppName:          cfg.LLM.AppName,
		BreakerThreshold: cfg.LLM.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.LLM.BreakerCooldownSeconds) * time.Second,
	}, classifier.TripOn)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	return translator.NewDispatcher(gen,
		translator.WithCooldownStore(store),
		translator.WithLogSink(store.EventLog()),
		translator.WithPromptBook(prompts),
		translator.WithClassifier(classifier),
		translator.WithModels(cfg.Translate.Models...),
		translator.WithCooldown(time.Duration(cfg.Translate.CooldownSeconds)*time.Second),
		translator.WithDefaultRetryDelay(time.Duration(cfg.Translate.DefaultRetryDelay)*time.Second),
	), nil
}

// maintenance builds the cache sweep on its own cron engine, using the
// schedule from the runtime settings when one is saved there
func (a *app) maintenance() (*service.Maintenance, *cron.Cron) {
	expr := a.cfg.Maintenance.CronExpr
	if current, err := a.settings.GetRuntimeSettings(); err == nil && current.MaintenanceCron != "" {
		expr = current.MaintenanceCron
	}
	engine := cron.New(cron.WithParser(icron.Parser))
	m := service.NewMaintenance(
		a.store,
		engine,
		expr,
		time.Duration(a.cfg.Maintenance.SnapshotTTLHours)*time.Hour,
		time.Duration(a.cfg.Translate.CooldownSeconds)*time.Second,
	)
	return m, engine
}

func (a *app) server(ctx context.Context, m *service.Maintenance) *httpapi.Server {
	apply := func(next config.RuntimeSettings) error {
		if next.MaintenanceCron == "" {
			return nil
		}
		return m.Reschedule(ctx, next.MaintenanceCron)
	}
	return httpapi.NewServer(a.captions,
		httpapi.WithRuntimeSettingsStore(a.settings),
		httpapi.WithRuntimeSettingsApplier(apply),
		httpapi.WithDiagnoser(a.dispatcher),
		httpapi.WithLogSink(a.store.EventLog()),
		httpapi.WithGlossary(a.glossary),
	)
}

func (a *app) Close() {
	a.captions.Stop()
	if err := a.store.Close(); err != nil {
		log.Warn("Failed to close cache: %v", err)
	}
}
