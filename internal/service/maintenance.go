package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/contextual-caption-translator/internal/persistence"
	"github.com/MimeLyc/contextual-caption-translator/pkg/icron"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// Maintenance expires old cache snapshots and credential cooldowns on a cron
// schedule
type Maintenance struct {
	store       *persistence.SQLiteStore
	cron        *cron.Cron
	cronExpr    string
	snapshotTTL time.Duration
	cooldown    time.Duration
	now         func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entryID cron.EntryID
	last    MaintenanceReport
}

func NewMaintenance(
	store *persistence.SQLiteStore,
	c *cron.Cron,
	cronExpr string,
	snapshotTTL time.Duration,
	cooldown time.Duration,
) *Maintenance {
	return &Maintenance{
		store:       store,
		cron:        c,
		cronExpr:    cronExpr,
		snapshotTTL: snapshotTTL,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Schedule registers the sweep on the cron scheduler
func (m *Maintenance) Schedule(ctx context.Context) error {
	log.Info("Schedule cache maintenance %q", m.cronExpr)

	runFunc := func() {
		if _, err := m.Run(ctx); err != nil {
			log.Error("Cache maintenance failed: %v", err)
		}
	}
	id, err := m.cron.AddFunc(m.cronExpr, runFunc)
	if err != nil {
		return WrapError(err, ErrConfig, "invalid maintenance schedule").WithContext("cron", m.cronExpr)
	}

	m.mu.Lock()
	m.entryID = id
	m.mu.Unlock()
	return nil
}

// Reschedule swaps the sweep onto a new expression
func (m *Maintenance) Reschedule(ctx context.Context, cronExpr string) error {
	if err := icron.Validate(cronExpr); err != nil {
		return WrapError(err, ErrValidation, "invalid maintenance schedule")
	}
	m.mu.Lock()
	if m.cronExpr == cronExpr && m.entryID != 0 {
		m.mu.Unlock()
		return nil
	}
	if m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}
	m.cronExpr = cronExpr
	m.mu.Unlock()
	return m.Schedule(ctx)
}

// Run performs one sweep; overlapping calls share the same sweep
func (m *Maintenance) Run(ctx context.Context) (MaintenanceReport, error) {
	v, err, _ := m.group.Do("sweep", func() (any, error) {
		now := m.now()
		report := MaintenanceReport{RanAt: now}

		if m.snapshotTTL > 0 {
			n, err := m.store.DeleteSnapshotsBefore(ctx, now.Add(-m.snapshotTTL))
			if err != nil {
				return nil, WrapError(err, ErrStorage, "failed to expire snapshots")
			}
			report.Snapshots = n
		}
		if m.cooldown > 0 {
			n, err := m.store.DeleteCooldownsBefore(ctx, now.Add(-m.cooldown))
			if err != nil {
				return nil, WrapError(err, ErrStorage, "failed to expire cooldowns")
			}
			report.Cooldowns = n
		}

		m.mu.Lock()
		m.last = report
		m.mu.Unlock()
		if report.Snapshots > 0 || report.Cooldowns > 0 {
			log.Info("Cache maintenance removed %d snapshots and %d cooldowns", report.Snapshots, report.Cooldowns)
		}
		return report, nil
	})
	if err != nil {
		return MaintenanceReport{}, err
	}
	return v.(MaintenanceReport), nil
}

// LastRun returns the report of the latest sweep
func (m *Maintenance) LastRun() MaintenanceReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// NextRun reports the previous and next activation of the schedule
func (m *Maintenance) NextRun() (*icron.TriggerInfo, error) {
	m.mu.RLock()
	expr := m.cronExpr
	m.mu.RUnlock()
	return icron.GetTriggerInfo(expr, m.now())
}
