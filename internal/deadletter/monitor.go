package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
)

// Monitor raises an operator alert when dead-letters pile up faster than the
// configured threshold.
type Monitor struct {
	repo    *Repository
	cfg     config.DeadLetterConfig
	logger  *logger.Logger
	metrics *metrics.TaskMetrics

	now func() time.Time
}

// NewMonitor constructs the monitor.
func NewMonitor(repo *Repository, cfg config.DeadLetterConfig, logg *logger.Logger, taskMetrics *metrics.TaskMetrics) (*Monitor, error) {
	if repo == nil {
		return nil, fmt.Errorf("deadletter repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 5
	}
	if cfg.AlertWindow <= 0 {
		cfg.AlertWindow = time.Hour
	}
	return &Monitor{repo: repo, cfg: cfg, logger: logg, metrics: taskMetrics, now: time.Now}, nil
}

// Check counts recent dead-letters and logs an alert above the threshold.
func (m *Monitor) Check(ctx context.Context) error {
	cutoff := m.now().Add(-m.cfg.AlertWindow)
	count, err := m.repo.CountFailedSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count recent dead-letters: %w", err)
	}
	m.metrics.SetDeadLetterRecent(count)
	if count > int64(m.cfg.AlertThreshold) {
		m.logger.Error(ctx, fmt.Sprintf("dead-letter alert: %d failures in the last %s", count, m.cfg.AlertWindow),
			fmt.Errorf("dead-letter threshold %d exceeded", m.cfg.AlertThreshold))
		return nil
	}
	m.logger.Debug(ctx, fmt.Sprintf("dead-letter check: %d recent failures", count))
	return nil
}
