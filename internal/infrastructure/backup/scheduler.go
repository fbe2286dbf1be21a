package backup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the archiver on an interval.
type Scheduler struct {
	archiver *Archiver
	interval time.Duration
	logger   *zap.SugaredLogger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(archiver *Archiver, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		archiver: archiver,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs an initial sweep and then keeps archiving until Stop or
// context cancellation. Blocks; run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *Scheduler) sweep(ctx context.Context) {
	if err := s.archiver.Run(ctx); err != nil {
		s.logger.Warnw("archive sweep finished with errors", "error", err)
	}
}
