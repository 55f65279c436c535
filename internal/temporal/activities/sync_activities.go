package activities

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"go.temporal.io/sdk/activity"
	sdklog "go.temporal.io/sdk/log"

	"github.com/cipulse/cipulse-api/internal/github"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/notification"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/stats"
	"github.com/cipulse/cipulse-api/internal/temporal"
	"github.com/cipulse/cipulse-api/internal/token"
)

const syncTagLimit = 20

// syncOverlap is subtracted from last_synced_at so runs that were in
// progress during the previous sync get their final status picked up.
const syncOverlap = 24 * time.Hour

// testSummaryLimit caps per-run job fetches in one sync; the trend window
// only consumes recent runs anyway.
const testSummaryLimit = 50

type Activities struct {
	BuildRepo     repository.BuildRepository
	RunRepo       repository.RunRepository
	TestRepo      repository.TestResultRepository
	Resolver      *token.Resolver
	Clients       stats.ClientFactory
	Notifications notification.Service
}

// ListSyncTargetsActivity resolves the workflow input into concrete builds.
// A named build syncs alone; empty input means every build across tenants.
func (a *Activities) ListSyncTargetsActivity(ctx context.Context, params temporal.SyncParams) ([]temporal.BuildRef, error) {
	logger := activity.GetLogger(ctx)

	if params.BuildID != "" {
		build, err := a.BuildRepo.GetBuildByID(params.TenantID, params.BuildID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch build")
		}
		return []temporal.BuildRef{{TenantID: build.TenantID, BuildID: build.ID, Name: build.Name}}, nil
	}

	builds, err := a.BuildRepo.ListAllBuilds()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list builds")
	}
	refs := make([]temporal.BuildRef, 0, len(builds))
	for _, build := range builds {
		refs = append(refs, temporal.BuildRef{TenantID: build.TenantID, BuildID: build.ID, Name: build.Name})
	}
	logger.Info("Resolved sync targets", "count", len(refs))
	return refs, nil
}

// SyncBuildActivity fetches runs from GitHub since the last sync, filters
// them through the build's selectors, upserts them together with per-run
// test summaries, and records whether the build's latest run flipped
// between passing and failing so the completion handler can notify.
func (a *Activities) SyncBuildActivity(ctx context.Context, ref temporal.BuildRef) (*temporal.SyncBuildResult, error) {
	return a.syncBuild(ctx, ref, activity.GetLogger(ctx))
}

func (a *Activities) syncBuild(ctx context.Context, ref temporal.BuildRef, logger sdklog.Logger) (*temporal.SyncBuildResult, error) {
	logger.Info("Syncing build", "tenantID", ref.TenantID, "buildID", ref.BuildID)

	build, err := a.BuildRepo.GetBuildByID(ref.TenantID, ref.BuildID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch build")
	}

	plaintext, err := a.Resolver.Resolve(build)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve access token")
	}
	client := a.Clients(plaintext)

	tagSet := map[string]struct{}{}
	tags, err := client.Tags(ctx, build.Organization, build.Repository, syncTagLimit)
	if err != nil {
		logger.Warn("Tag fetch for selector matching failed", "error", err)
	}
	for _, tag := range tags {
		tagSet[tag] = struct{}{}
	}

	previous, err := a.RunRepo.GetLatestRun(ref.TenantID, ref.BuildID)
	hadPrevious := err == nil
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to read latest run")
	}

	fetched, err := client.RunsSince(ctx, build.Organization, build.Repository, a.sinceFor(build))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch workflow runs")
	}

	matched := make([]models.WorkflowRunRecord, 0, len(fetched))
	for _, run := range fetched {
		if stats.MatchesAny(run, build.Selectors, tagSet) {
			run.TenantID = ref.TenantID
			run.BuildID = ref.BuildID
			matched = append(matched, run)
		}
	}

	if err := a.RunRepo.UpsertRuns(matched); err != nil {
		return nil, errors.Wrap(err, "failed to upsert runs")
	}
	if err := a.BuildRepo.UpdateLastSyncedAt(ref.TenantID, ref.BuildID); err != nil {
		logger.Warn("Failed to record sync timestamp", "error", err)
	}

	result := &temporal.SyncBuildResult{
		TenantID:     ref.TenantID,
		BuildID:      ref.BuildID,
		Name:         build.Name,
		RunsUpserted: len(matched),
	}
	result.TestResultsUpserted = a.attachTestSummaries(ctx, client, build, matched, logger)

	latest, err := a.RunRepo.GetLatestRun(ref.TenantID, ref.BuildID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return nil, errors.Wrap(err, "failed to read latest run after sync")
	}

	// Status transitions only fire on a new run; re-observing the same
	// failing run must not re-notify.
	if !hadPrevious || latest.RunID == previous.RunID {
		return result, nil
	}
	switch {
	case latest.Status == models.RunStatusFailure && previous.Status != models.RunStatusFailure:
		result.LatestFailed = true
	case latest.Status == models.RunStatusSuccess && previous.Status == models.RunStatusFailure:
		result.Recovered = true
	}
	return result, nil
}

// attachTestSummaries joins each newly synced completed run to a test-result
// record derived from its job steps. Summaries already on record are left
// alone; per-run failures are logged and skipped so one bad run does not
// fail the sync.
func (a *Activities) attachTestSummaries(ctx context.Context, client github.Client, build models.Build, runs []models.WorkflowRunRecord, logger sdklog.Logger) int {
	attached := 0
	visited := 0
	for _, run := range runs {
		if run.Status != models.RunStatusSuccess && run.Status != models.RunStatusFailure {
			continue
		}
		if visited >= testSummaryLimit {
			break
		}
		visited++

		if _, err := a.TestRepo.FindByWorkflowRunID(run.TenantID, run.RunID); err == nil {
			continue
		} else if !stderrors.Is(err, repository.ErrTestResultNotFound) {
			logger.Warn("Test result lookup failed", "runID", run.RunID, "error", err)
			continue
		}

		summary, ok, err := client.RunTestSummary(ctx, build.Organization, build.Repository, run.RunID)
		if err != nil {
			logger.Warn("Test summary fetch failed", "runID", run.RunID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		summary.TenantID = run.TenantID
		summary.BuildID = run.BuildID
		if _, err := a.TestRepo.Upsert(summary); err != nil {
			logger.Warn("Test summary upsert failed", "runID", run.RunID, "error", err)
			continue
		}
		attached++
	}
	return attached
}

// sinceFor picks the fetch window start: a small overlap behind the last
// sync, or the full monthly aggregation window for a first sync.
func (a *Activities) sinceFor(build models.Build) time.Time {
	if build.LastSyncedAt != nil {
		return build.LastSyncedAt.Add(-syncOverlap)
	}
	now := time.Now().Local()
	return time.Date(now.Year(), now.Month()-time.Month(stats.MonthlyWindowMonths-1), 1, 0, 0, 0, 0, time.Local)
}

func (a *Activities) HandleSyncResultActivity(ctx context.Context, result temporal.SyncBuildResult) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Handling sync result",
		"buildID", result.BuildID,
		"runsUpserted", result.RunsUpserted,
		"testResultsUpserted", result.TestResultsUpserted)

	if err := a.Notifications.NotifySyncCompleted(ctx, result.TenantID, result.BuildID, result.Name, result.RunsUpserted); err != nil {
		logger.Error("Failed to publish sync completion notification", "error", err)
	}

	latest, err := a.RunRepo.GetLatestRun(result.TenantID, result.BuildID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return errors.Wrap(err, "failed to read latest run")
	}

	switch {
	case result.LatestFailed:
		return a.Notifications.NotifyRunFailed(ctx, result.TenantID, result.BuildID, result.Name, latest.RunID)
	case result.Recovered:
		return a.Notifications.NotifyRunRecovered(ctx, result.TenantID, result.BuildID, result.Name, latest.RunID)
	}
	return nil
}

func (a *Activities) NotifySyncFailedActivity(ctx context.Context, ref temporal.BuildRef, reason string) error {
	return a.Notifications.NotifySyncFailed(ctx, ref.TenantID, ref.BuildID, ref.Name, reason)
}
