// Package cleanup enforces the opportunities table's retention rules: a
// periodic loop that removes expired, pending, and deadline-passed rows.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/swapscan/backend/internal/metrics"
	"github.com/swapscan/backend/internal/store"
)

// Loop runs the deletion passes on a fixed interval.
type Loop struct {
	store    *store.Store
	chainID  int64
	interval time.Duration

	now func() time.Time
}

// NewLoop builds a cleanup loop.
func NewLoop(st *store.Store, chainID int64, interval time.Duration) *Loop {
	return &Loop{store: st, chainID: chainID, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is
// canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.sweep(ctx)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

// sweep runs the four deletion passes and logs the combined count.
// Pass order matters only for accounting; each pass is independent.
func (l *Loop) sweep(ctx context.Context) {
	var total int64

	// 1. Expired verdicts.
	if n, err := l.store.DeleteByStatus(ctx, l.chainID, store.StatusExpired); err != nil {
		slog.Error("cleanup: delete expired failed", "error", err)
	} else {
		metrics.CleanupDeleted.WithLabelValues("expired").Add(float64(n))
		total += n
	}

	// 2. Pending rows are pruned unconditionally every sweep.
	if n, err := l.store.DeleteByStatus(ctx, l.chainID, store.StatusPending); err != nil {
		slog.Error("cleanup: delete pending failed", "error", err)
	} else {
		metrics.CleanupDeleted.WithLabelValues("pending").Add(float64(n))
		total += n
	}

	// 3. Detected rows already flagged expired in metadata.
	if n, err := l.store.DeleteDetectedFlaggedExpired(ctx, l.chainID); err != nil {
		slog.Error("cleanup: delete flagged-expired failed", "error", err)
	} else {
		metrics.CleanupDeleted.WithLabelValues("flagged").Add(float64(n))
		total += n
	}

	// 4. Detected rows whose deadline has passed but were never flagged.
	// JSON-numeric comparison in the store is unreliable, so the deadline
	// check happens in-process on the fetched rows.
	if n, err := l.sweepDeadlines(ctx); err != nil {
		slog.Error("cleanup: deadline sweep failed", "error", err)
	} else {
		metrics.CleanupDeleted.WithLabelValues("deadline").Add(float64(n))
		total += n
	}

	slog.Info("cleanup sweep complete", "deleted", total)
}

func (l *Loop) sweepDeadlines(ctx context.Context) (int64, error) {
	rows, err := l.store.ListDetected(ctx, l.chainID)
	if err != nil {
		return 0, err
	}
	now := l.now().Unix()
	var ids []int64
	for _, o := range rows {
		if d, ok := deadlineTimestamp(o.Metadata); ok && d < now {
			ids = append(ids, o.ID)
		}
	}
	return l.store.DeleteByIDs(ctx, ids)
}

// deadlineTimestamp extracts metadata.deadlineTimestamp, tolerating the
// numeric types JSON decoding may produce.
func deadlineTimestamp(meta map[string]interface{}) (int64, bool) {
	v, ok := meta["deadlineTimestamp"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
