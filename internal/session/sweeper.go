package session

import (
	"context"
	"time"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
)

// SweeperConfig controls idle session cleanup
type SweeperConfig struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

// Sweeper periodically purges idle sessions from a registry
type Sweeper struct {
	Registry *Registry
	Conf     SweeperConfig
	Logger   *logging.Logger
}

// Run sweeps on every interval until ctx is cancelled. A zero interval
// disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Conf.Interval <= 0 || s.Conf.IdleTimeout <= 0 {
		return
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ticker := time.NewTicker(s.Conf.Interval)
	defer ticker.Stop()

	logger.WithFields(map[string]interface{}{
		"interval":     s.Conf.Interval.String(),
		"idle_timeout": s.Conf.IdleTimeout.String(),
	}).Info("session sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs one sweep pass and returns the number of purged sessions
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	return s.Registry.PurgeIdle(ctx, s.Conf.IdleTimeout)
}
