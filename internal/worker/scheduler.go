package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"

	"github.com/cipulse/cipulse-api/internal/temporal"
	"github.com/cipulse/cipulse-api/internal/temporal/workflows"
)

// Scheduler periodically starts a run-sync workflow covering every tracked
// build. Manual per-build syncs go through the HTTP API instead.
type Scheduler struct {
	client   tc.Client
	interval time.Duration
	logger   zerolog.Logger
}

func NewScheduler(client tc.Client, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		client:   client,
		interval: interval,
		logger:   logger.With().Str("component", "sync_scheduler").Logger(),
	}
}

// Start blocks until ctx is cancelled, firing one sync workflow per tick.
// The first tick happens after a full interval so restarts do not stampede.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("Sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sync scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	options := tc.StartWorkflowOptions{
		ID:        temporal.SyncWorkflowIDPrefix + "scheduled-" + uuid.NewString(),
		TaskQueue: temporal.TaskQueueName,
	}
	run, err := s.client.ExecuteWorkflow(ctx, options, workflows.SyncWorkflow, temporal.SyncParams{})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to start scheduled sync workflow")
		return
	}
	s.logger.Info().Str("workflow_id", run.GetID()).Msg("Scheduled sync workflow started")
}
