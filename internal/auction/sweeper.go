package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sweeper periodically applies the lifecycle's time-based transitions. It is
// the in-process replacement for an external cron caller; deployments that
// drive ticks over HTTP run with the sweeper disabled.
type Sweeper struct {
	life     *Lifecycle
	interval time.Duration
	ops      OperatorNotifier
	logger   *slog.Logger

	now func() time.Time
}

// NewSweeper creates a Sweeper that ticks every interval.
func NewSweeper(life *Lifecycle, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		life:     life,
		interval: interval,
		ops:      nopOperatorNotifier{},
		logger:   logger.With(slog.String("component", "sweeper")),
		now:      time.Now,
	}
}

// SetOperatorNotifier routes sweep failures to an operator channel.
func (s *Sweeper) SetOperatorNotifier(ops OperatorNotifier) {
	if ops != nil {
		s.ops = ops
	}
}

// Run ticks until ctx is cancelled. An immediate tick runs on startup so
// transitions missed during downtime are applied without waiting a full
// interval.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started", slog.Duration("interval", s.interval))

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	started, ended, err := s.life.Tick(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
		if !errors.Is(err, context.Canceled) {
			if nerr := s.ops.Notify(ctx, "sweep_error", "Sweep failed", err.Error()); nerr != nil {
				s.logger.ErrorContext(ctx, "operator notification failed",
					slog.String("error", nerr.Error()))
			}
		}
		return
	}
	if started > 0 || ended > 0 {
		s.logger.InfoContext(ctx, "sweep applied transitions",
			slog.Int("started", started),
			slog.Int("ended", ended),
		)
	}
}
