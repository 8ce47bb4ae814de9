package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mediaserver/internal/domain"
)

const staleMessage = "generation timed out waiting for a result"

// Sweeper force-fails jobs stuck in processing. A job stays stuck when the
// generator never calls back or the process died mid-flight; without the
// sweep such records would poll as processing forever.
type Sweeper struct {
	History  domain.HistoryRepository
	Logger   zerolog.Logger
	Interval time.Duration
	TTL      time.Duration
}

func New(history domain.HistoryRepository, logger zerolog.Logger, interval, ttl time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sweeper{History: history, Logger: logger, Interval: interval, TTL: ttl}
}

// Run loops until the context is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Logger.Info().Dur("interval", s.Interval).Dur("ttl", s.TTL).Msg("sweeper: started")
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info().Msg("sweeper: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.TTL)
	n, err := s.History.FailStale(ctx, cutoff, staleMessage)
	if err != nil {
		s.Logger.Error().Err(err).Msg("sweeper: fail stale jobs errored")
		return
	}
	if n > 0 {
		s.Logger.Warn().Int64("count", n).Time("cutoff", cutoff).Msg("sweeper: failed stale jobs")
	}
}
