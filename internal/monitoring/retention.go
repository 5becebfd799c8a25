package monitoring

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/davitr/userhub-be/internal/services"
)

// RetentionSweeper periodically prunes audit events older than the
// retention window.
type RetentionSweeper struct {
	events        services.EventServiceProvider
	schedule      string
	retentionDays int
	cron          *cron.Cron
}

// NewRetentionSweeper creates a new sweeper. The schedule is a standard
// 5-field cron expression.
func NewRetentionSweeper(events services.EventServiceProvider, schedule string, retentionDays int) *RetentionSweeper {
	return &RetentionSweeper{
		events:        events,
		schedule:      schedule,
		retentionDays: retentionDays,
		cron:          cron.New(),
	}
}

// Start registers the sweep job and starts the cron runner in its own
// goroutine.
func (s *RetentionSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Int("retention_days", s.retentionDays).Msg("Starting audit retention sweeper")
	return nil
}

// Stop halts the sweeper, waiting for an in-flight sweep to finish.
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Stopping audit retention sweeper")
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	pruned, err := s.events.PruneOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Sweeper: failed to prune audit events")
		return
	}
	if pruned > 0 {
		log.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("Pruned old audit events")
	}
}
