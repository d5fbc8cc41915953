package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sweepBikesFlipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_sweep_bikes_flipped_total",
		Help: "Bikes moved into maintenance by the sweep",
	})
	sweepBikesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_sweep_bikes_skipped_total",
		Help: "Sweep candidates skipped because their status changed",
	})
	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_sweep_errors_total",
		Help: "Per-bike sweep failures",
	})
)

// Scheduler periodically promotes bikes whose next-maintenance date has
// passed into the maintenance state. Each bike's transition is independent;
// the selection predicate is idempotent, so a sweep interrupted partway
// simply re-runs at the next tick without double-effecting bikes.
type Scheduler struct {
	repo     *Repository
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(repo *Repository, interval time.Duration, logger *slog.Logger, reg *prometheus.Registry) *Scheduler {
	reg.MustRegister(sweepBikesFlipped, sweepBikesSkipped, sweepErrors)
	return &Scheduler{
		repo:     repo,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass. A failure on one bike is logged and does not
// abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()

	candidates, err := s.repo.OverdueBikes(ctx, now)
	if err != nil {
		s.logger.Error("maintenance sweep: failed to select overdue bikes", "error", err)
		return
	}

	var flipped int
	for _, b := range candidates {
		ok, err := s.repo.MarkUnderMaintenance(ctx, b.ID, now)
		if err != nil {
			sweepErrors.Inc()
			s.logger.Error("maintenance sweep: failed to mark bike", "bike", b.Label, "error", err)
			continue
		}
		if !ok {
			sweepBikesSkipped.Inc()
			s.logger.Info("maintenance sweep: bike busy, deferred", "bike", b.Label)
			continue
		}
		sweepBikesFlipped.Inc()
		flipped++
	}

	s.logger.Info("maintenance sweep completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("flipped", flipped),
	)
}
