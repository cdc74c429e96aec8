package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/ordercache"
)

// ReconcileJob periodically re-checks every cached order against the
// authoritative store and evicts entries that reached a terminal state
// or no longer exist. It bounds cache growth under churn and recovers
// from missed eviction events.
type ReconcileJob struct {
	cache    *ordercache.Cache
	orders   domain.OrderRepository
	logger   logging.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewReconcileJob(cache *ordercache.Cache, orders domain.OrderRepository, logger logging.Logger, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReconcileJob{
		cache:    cache,
		orders:   orders,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(logging.Internal, logging.Reconciliation, "reconcile job started", map[logging.ExtraKey]any{
		logging.Latency: j.interval.String(),
	})

	for {
		select {
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error(logging.Internal, logging.Reconciliation, "reconcile cycle failed, retrying next cycle", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		case <-j.stopChan:
			j.logger.Info(logging.Internal, logging.Reconciliation, "reconcile job stopped", nil)
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop is safe to call from multiple shutdown paths.
func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
}

// RunOnce walks the cache once. Store errors on individual orders are
// skipped so one bad entry never aborts the sweep; the entry gets
// another chance next cycle.
func (j *ReconcileJob) RunOnce(ctx context.Context) error {
	started := time.Now()

	snaps, err := j.cache.List()
	if err != nil {
		return err
	}

	evicted := 0
	for _, snap := range snaps {
		order, err := j.orders.GetByID(ctx, snap.TenantID, snap.OrderID)

		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			// fallthrough to eviction
		case err != nil:
			j.logger.Warn(logging.Internal, logging.Reconciliation, "order lookup failed, skipping", map[logging.ExtraKey]any{
				logging.OrderID:      snap.OrderID,
				logging.ErrorMessage: err.Error(),
			})
			continue
		case !order.Status.Terminal():
			continue
		}

		if err := j.cache.Remove(snap.TenantID, snap.OrderID); err != nil {
			j.logger.Warn(logging.Internal, logging.Reconciliation, "eviction failed", map[logging.ExtraKey]any{
				logging.OrderID:      snap.OrderID,
				logging.ErrorMessage: err.Error(),
			})
			continue
		}
		evicted++
	}

	j.logger.Info(logging.Internal, logging.Reconciliation, "reconcile cycle completed", map[logging.ExtraKey]any{
		logging.Latency: time.Since(started).String(),
		"scanned":       len(snaps),
		"evicted":       evicted,
	})

	return nil
}
