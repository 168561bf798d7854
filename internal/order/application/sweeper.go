package application

import (
	"context"
	"log/slog"
	"time"
)

// ReleaseSweeper periodically finishes stock releases that a workflow could
// not complete.
type ReleaseSweeper struct {
	log       *slog.Logger
	svc       *Service
	batchSize int
	interval  time.Duration
}

func NewReleaseSweeper(log *slog.Logger, svc *Service, interval time.Duration) *ReleaseSweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReleaseSweeper{log: log, svc: svc, batchSize: 50, interval: interval}
}

func (s *ReleaseSweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("release sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.svc.ResumePendingReleases(ctx, s.batchSize)
			if err != nil {
				s.log.Error("release sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("release sweep finished orders", "count", n)
			}
		}
	}
}
