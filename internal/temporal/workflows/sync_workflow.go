package workflows

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/cipulse/cipulse-api/internal/temporal"
	"github.com/cipulse/cipulse-api/internal/temporal/activities"
)

// SyncWorkflow ingests workflow runs from GitHub for one build, or for every
// tracked build when params.BuildID is empty. Builds sync independently; one
// failing build does not stop the rest.
func SyncWorkflow(ctx workflow.Context, params temporal.SyncParams) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		HeartbeatTimeout:    30 * time.Second,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting sync workflow", "TenantID", params.TenantID, "BuildID", params.BuildID)

	// The actual implementation lives on the worker; this is just a proxy.
	var a *activities.Activities

	var targets []temporal.BuildRef
	err := workflow.ExecuteActivity(ctx, a.ListSyncTargetsActivity, params).Get(ctx, &targets)
	if err != nil {
		logger.Error("Failed to list sync targets.", "error", err)
		return err
	}

	for _, target := range targets {
		var result temporal.SyncBuildResult
		err := workflow.ExecuteActivity(ctx, a.SyncBuildActivity, target).Get(ctx, &result)
		if err != nil {
			logger.Error("Build sync failed.", "BuildID", target.BuildID, "error", err)
			notifyErr := workflow.ExecuteActivity(ctx, a.NotifySyncFailedActivity, target, err.Error()).Get(ctx, nil)
			if notifyErr != nil {
				logger.Error("Failed to publish sync failure notification.", "BuildID", target.BuildID, "error", notifyErr)
			}
			continue
		}

		err = workflow.ExecuteActivity(ctx, a.HandleSyncResultActivity, result).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed during post-sync processing.", "BuildID", target.BuildID, "error", err)
		}
	}

	logger.Info("Sync workflow completed.", "Builds", len(targets))
	return nil
}
