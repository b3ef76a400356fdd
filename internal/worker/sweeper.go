// Package worker hosts the background loops that run alongside the
// HTTP server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-class-booking/internal/logger"
	"github.com/iliyamo/studio-class-booking/internal/service"
)

// Sweeper periodically expires overdue waitlist offers so that seats
// do not sit behind an unanswered invitation longer than the accept
// window.  Lazy expiry on the accept path handles the same entries;
// the sweeper is the eager counterpart that also re-extends the next
// offer.
type Sweeper struct {
	waitlist *service.WaitlistService
	interval time.Duration
}

// NewSweeper constructs a Sweeper ticking at the given interval.
func NewSweeper(waitlist *service.WaitlistService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{waitlist: waitlist, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.  Each
// pass gets its own timeout so one stuck database call cannot stall
// the loop forever.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Log.Info("waitlist sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("waitlist sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := s.waitlist.SweepExpired(sweepCtx)
	if err != nil {
		logger.Log.Error("waitlist sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		logger.Log.Info("waitlist sweep expired offers", zap.Int("count", expired))
	}
}
