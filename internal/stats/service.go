package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/github"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/token"
)

// ClientFactory builds a GitHub client for a resolved plaintext token. A nil
// factory means no GitHub capability is configured; metadata degrades to
// zero values.
type ClientFactory func(token string) github.Client

// Service assembles the dashboard statistics object from runs, test
// results, and repository metadata. Two orchestration variants exist: live
// (runs fetched from GitHub and selector-filtered here) and stored (runs
// read from the database, already selector-scoped by the sync worker).
type Service struct {
	builds   repository.BuildRepository
	runs     repository.RunRepository
	tests    repository.TestResultRepository
	resolver *token.Resolver
	clients  ClientFactory
	gate     *MetadataGate
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	builds repository.BuildRepository,
	runs repository.RunRepository,
	tests repository.TestResultRepository,
	resolver *token.Resolver,
	clients ClientFactory,
	logger zerolog.Logger,
) *Service {
	return &Service{
		builds:   builds,
		runs:     runs,
		tests:    tests,
		resolver: resolver,
		clients:  clients,
		gate:     NewMetadataGate(builds, logger),
		logger:   logger.With().Str("component", "stats_service").Logger(),
		now:      time.Now,
	}
}

// ComputeLiveStatistics fetches runs straight from GitHub, filters them
// through the build's selectors, and aggregates. Token validation and
// decryption errors propagate; individual metadata fetch failures degrade.
func (s *Service) ComputeLiveStatistics(ctx context.Context, tenantID, buildID string) (models.BuildStatistics, error) {
	build, err := s.builds.GetBuildByID(tenantID, buildID)
	if err != nil {
		return models.BuildStatistics{}, err
	}

	plaintext, err := s.resolver.Resolve(build)
	if err != nil {
		return models.BuildStatistics{}, err
	}

	var client github.Client
	if s.clients != nil {
		client = s.clients(plaintext)
	}

	anchor := s.now()
	var (
		filtered []models.WorkflowRunRecord
		tagSet   = map[string]struct{}{}
	)
	if client != nil {
		tags, err := client.Tags(ctx, build.Organization, build.Repository, tagFetchLimit)
		if err != nil {
			s.logger.Warn().Err(err).Str("build_id", build.ID).Msg("tag fetch for selector matching failed")
		}
		for _, tag := range tags {
			tagSet[tag] = struct{}{}
		}

		fetched, err := client.RunsSince(ctx, build.Organization, build.Repository, monthlyWindowStart(anchor))
		if err != nil {
			return models.BuildStatistics{}, err
		}
		for _, run := range fetched {
			if MatchesAny(run, build.Selectors, tagSet) {
				filtered = append(filtered, run)
			}
		}
	}

	return s.assemble(ctx, client, build, filtered, anchor, false), nil
}

// ComputeStoredStatistics aggregates persisted runs. refresh forces the
// metadata cache cold regardless of the commit SHA.
func (s *Service) ComputeStoredStatistics(ctx context.Context, tenantID, buildID string, refresh bool) (models.BuildStatistics, error) {
	build, err := s.builds.GetBuildByID(tenantID, buildID)
	if err != nil {
		return models.BuildStatistics{}, err
	}

	anchor := s.now()
	runs, err := s.runs.ListRunsSince(tenantID, buildID, monthlyWindowStart(anchor))
	if err != nil {
		return models.BuildStatistics{}, err
	}

	client := s.clientFor(build)
	return s.assemble(ctx, client, build, runs, anchor, refresh), nil
}

// clientFor resolves the build's token into a GitHub client for metadata
// refreshes. Stored aggregation still works without one; resolution errors
// only cost the metadata block, so they are logged rather than propagated.
func (s *Service) clientFor(build models.Build) github.Client {
	if s.clients == nil {
		return nil
	}
	plaintext, err := s.resolver.Resolve(build)
	if err != nil {
		s.logger.Warn().Err(err).Str("build_id", build.ID).Msg("token resolution failed; metadata will be empty or cached")
		return nil
	}
	return s.clients(plaintext)
}

func (s *Service) assemble(ctx context.Context, client github.Client, build models.Build, runs []models.WorkflowRunRecord, anchor time.Time, refresh bool) models.BuildStatistics {
	sevenStart := dayStart(anchor.AddDate(0, 0, -(HealthWindowDays - 1)))
	var recent []models.WorkflowRunRecord
	for _, run := range runs {
		if !run.WorkflowCreatedAt.Before(sevenStart) {
			recent = append(recent, run)
		}
	}

	var source github.MetadataSource
	if client != nil {
		source = client
	}

	stats := models.BuildStatistics{
		BuildID:       build.ID,
		Health:        AggregateHealth(recent, anchor, HealthWindowDays),
		MonthlyRuns:   AggregateMonthlyRuns(runs, anchor, MonthlyWindowMonths),
		DurationTrend: AggregateDurationTrend(runs, anchor, MonthlyWindowMonths),
		TestTrend:     s.testTrend(build, runs),
		Metadata:      s.gate.Resolve(ctx, source, build, refresh),
		LastFetchedAt: anchor,
	}
	return stats
}

// testTrend joins the (newest-first) runs to their test results. A missing
// result for a run is not an error; the run is simply absent from the trend.
func (s *Service) testTrend(build models.Build, runs []models.WorkflowRunRecord) []models.TestTrendPoint {
	results, err := s.tests.FindRecentByBuildID(build.TenantID, build.ID, len(runs))
	if err != nil {
		s.logger.Warn().Err(err).Str("build_id", build.ID).Msg("test result lookup failed; trend will be empty")
		return []models.TestTrendPoint{}
	}
	byRunID := make(map[int64]models.TestResultRecord, len(results))
	for _, result := range results {
		byRunID[result.WorkflowRunID] = result
	}
	return ReconstructTestTrend(runs, byRunID)
}

func monthlyWindowStart(anchor time.Time) time.Time {
	anchor = anchor.Local()
	return time.Date(anchor.Year(), anchor.Month()-time.Month(MonthlyWindowMonths-1), 1, 0, 0, 0, 0, time.Local)
}

func dayStart(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
