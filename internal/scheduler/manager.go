package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/allocation"
	"carbon-market/marketplace/marketplace-backend/internal/metrics"
)

const refreshTimeout = 10 * time.Second

// Manager runs the periodic housekeeping jobs of the marketplace.
type Manager struct {
	cron    *cron.Cron
	pool    *allocation.Pool
	metrics *metrics.Recorder
	logger  *zap.Logger
	spec    string

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// NewManager creates a manager that refreshes the auditor pool gauge on spec.
func NewManager(pool *allocation.Pool, rec *metrics.Recorder, logger *zap.Logger, spec string) *Manager {
	return &Manager{
		cron:    cron.New(),
		pool:    pool,
		metrics: rec,
		logger:  logger,
		spec:    spec,
	}
}

// Start registers the jobs and starts the cron scheduler. Jobs stop seeing ctx as live
// once it is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("scheduler already running")
	}

	m.ctx = ctx
	if _, err := m.cron.AddFunc(m.spec, m.refreshPool); err != nil {
		return fmt.Errorf("invalid pool refresh schedule %q: %w", m.spec, err)
	}

	m.logger.Info("Starting scheduler", zap.String("pool_refresh", m.spec))
	m.cron.Start()
	m.running = true

	// Initial refresh so the gauge is populated before the first tick.
	go m.refreshPool()

	return nil
}

// Stop waits for running jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.logger.Info("Stopping scheduler")
	done := m.cron.Stop()
	<-done.Done()
	m.running = false
}

func (m *Manager) refreshPool() {
	if err := m.RefreshPoolGauge(m.ctx); err != nil {
		m.logger.Warn("Auditor pool refresh failed", zap.Error(err))
	}
}

// RefreshPoolGauge sets the auditor pool gauge to the current pool size.
func (m *Manager) RefreshPoolGauge(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	ids, err := m.pool.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch auditor pool: %w", err)
	}

	m.metrics.AuditorPoolSize.Set(float64(len(ids)))
	m.logger.Debug("Auditor pool refreshed", zap.Int("auditors", len(ids)))
	return nil
}
