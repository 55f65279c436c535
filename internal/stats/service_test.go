package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/github"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/token"
)

// fakeClient augments the canned metadata source with a run listing.
type fakeClient struct {
	*fakeMetadataSource
	runs    []models.WorkflowRunRecord
	runsErr error
}

func (f *fakeClient) RunsSince(ctx context.Context, org, repo string, since time.Time) ([]models.WorkflowRunRecord, error) {
	if f.runsErr != nil {
		return nil, f.runsErr
	}
	return f.runs, nil
}

func (f *fakeClient) RunsInRange(ctx context.Context, org, repo string, start, end time.Time) ([]models.WorkflowRunRecord, error) {
	return f.RunsSince(ctx, org, repo, start)
}

func (f *fakeClient) RunTestSummary(ctx context.Context, org, repo string, runID int64) (models.TestResultRecord, bool, error) {
	return models.TestResultRecord{}, false, nil
}

type serviceBuildStore struct {
	fakeBuildStore
	build models.Build
}

func (s *serviceBuildStore) GetBuildByID(_, _ string) (models.Build, error) {
	return s.build, nil
}

type fakeRunStore struct {
	runs []models.WorkflowRunRecord
	err  error
}

func (f *fakeRunStore) UpsertRuns(_ []models.WorkflowRunRecord) error { return nil }
func (f *fakeRunStore) ListRunsSince(_, _ string, since time.Time) ([]models.WorkflowRunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.WorkflowRunRecord
	for _, run := range f.runs {
		if !run.WorkflowCreatedAt.Before(since) {
			out = append(out, run)
		}
	}
	return out, nil
}
func (f *fakeRunStore) ListRunsInRange(_, _ string, start, end time.Time) ([]models.WorkflowRunRecord, error) {
	return f.ListRunsSince("", "", start)
}
func (f *fakeRunStore) GetLatestRun(_, _ string) (models.WorkflowRunRecord, error) {
	if len(f.runs) == 0 {
		return models.WorkflowRunRecord{}, errors.New("no rows")
	}
	return f.runs[0], nil
}

type fakeTestStore struct {
	results []models.TestResultRecord
}

func (f *fakeTestStore) Upsert(r models.TestResultRecord) (models.TestResultRecord, error) {
	return r, nil
}
func (f *fakeTestStore) FindByWorkflowRunID(_ string, runID int64) (models.TestResultRecord, error) {
	for _, r := range f.results {
		if r.WorkflowRunID == runID {
			return r, nil
		}
	}
	return models.TestResultRecord{}, errors.New("not found")
}
func (f *fakeTestStore) FindRecentByBuildID(_, _ string, _ int) ([]models.TestResultRecord, error) {
	return f.results, nil
}

type unusedTokenStore struct{}

func (unusedTokenStore) CreateToken(_, _ string, _ []byte) (models.SavedToken, error) {
	return models.SavedToken{}, errors.New("unused")
}
func (unusedTokenStore) GetToken(_, _ string) (models.SavedToken, error) {
	return models.SavedToken{}, errors.New("unused")
}
func (unusedTokenStore) ListTokens(_ string) ([]models.SavedToken, error) { return nil, nil }
func (unusedTokenStore) DeleteToken(_, _ string) error                    { return nil }
func (unusedTokenStore) TouchLastUsed(_, _ string) error                  { return nil }

func inlineTokenBuild(sha string) models.Build {
	tok := "ghp_inline"
	return models.Build{
		ID:           "build-1",
		TenantID:     "tenant-1",
		Name:         "widgets ci",
		Organization: "acme",
		Repository:   "widgets",
		Selectors:    []models.Selector{{Kind: models.SelectorKindBranch, Pattern: "main"}},
		InlineToken:  &tok,
		LastAnalyzedCommitSHA: func() *string {
			if sha == "" {
				return nil
			}
			return &sha
		}(),
	}
}

func newTestService(builds *serviceBuildStore, runs *fakeRunStore, tests *fakeTestStore, client github.Client, anchor time.Time) *Service {
	resolver := token.NewResolverWithDecryptor(unusedTokenStore{}, func([]byte) (string, error) {
		return "", errors.New("unused")
	}, zerolog.Nop())

	var factory ClientFactory
	if client != nil {
		factory = func(string) github.Client { return client }
	}

	svc := NewService(builds, runs, tests, resolver, factory, zerolog.Nop())
	svc.now = func() time.Time { return anchor }
	svc.gate.now = svc.now
	return svc
}

func storedRun(id int64, status string, createdAt time.Time) models.WorkflowRunRecord {
	return models.WorkflowRunRecord{
		TenantID:          "tenant-1",
		BuildID:           "build-1",
		RunID:             id,
		Status:            status,
		HeadBranch:        "main",
		WorkflowCreatedAt: createdAt,
		WorkflowUpdatedAt: createdAt,
	}
}

func TestComputeStoredStatistics(t *testing.T) {
	anchor := time.Date(2025, 8, 30, 15, 0, 0, 0, time.Local)
	runs := &fakeRunStore{runs: []models.WorkflowRunRecord{
		storedRun(5, models.RunStatusFailure, anchor.Add(-2*time.Hour)),
		storedRun(4, models.RunStatusSuccess, anchor.AddDate(0, 0, -1)),
		storedRun(3, models.RunStatusSuccess, anchor.AddDate(0, 0, -3)),
		storedRun(2, models.RunStatusSuccess, anchor.AddDate(0, 0, -20)),
		storedRun(1, models.RunStatusFailure, anchor.AddDate(0, -3, 0)),
	}}
	tests := &fakeTestStore{results: []models.TestResultRecord{
		{WorkflowRunID: 5, TotalTests: 12, PassedTests: 11, FailedTests: 1},
		{WorkflowRunID: 3, TotalTests: 10, PassedTests: 10},
	}}
	builds := &serviceBuildStore{build: inlineTokenBuild("")}
	client := &fakeClient{fakeMetadataSource: newFakeSource("sha-1")}

	svc := newTestService(builds, runs, tests, client, anchor)

	result, err := svc.ComputeStoredStatistics(context.Background(), "tenant-1", "build-1", false)
	if err != nil {
		t.Fatalf("ComputeStoredStatistics: %v", err)
	}

	if result.BuildID != "build-1" {
		t.Errorf("BuildID = %q", result.BuildID)
	}

	// Health covers the trailing seven days: runs 5, 4, 3.
	if result.Health.Total != 3 {
		t.Errorf("health total = %d, want 3", result.Health.Total)
	}
	if result.Health.HealthPercentage != 67 {
		t.Errorf("health percentage = %d, want 67", result.Health.HealthPercentage)
	}
	if len(result.Health.PerDay) != HealthWindowDays {
		t.Errorf("per-day buckets = %d, want %d", len(result.Health.PerDay), HealthWindowDays)
	}

	if len(result.MonthlyRuns) != MonthlyWindowMonths {
		t.Fatalf("monthly buckets = %d, want %d", len(result.MonthlyRuns), MonthlyWindowMonths)
	}
	var monthlyTotal int
	for _, bucket := range result.MonthlyRuns {
		monthlyTotal += bucket.Total
	}
	if monthlyTotal != 5 {
		t.Errorf("monthly total = %d, want 5", monthlyTotal)
	}

	// Trend is oldest first, joined on run ID; runs without results are skipped.
	if len(result.TestTrend) != 2 {
		t.Fatalf("test trend points = %d, want 2", len(result.TestTrend))
	}
	if result.TestTrend[0].TotalTests != 10 || result.TestTrend[1].TotalTests != 12 {
		t.Errorf("trend order wrong: %+v", result.TestTrend)
	}

	if result.Metadata.TotalCommits != 250 {
		t.Errorf("metadata total commits = %d, want 250", result.Metadata.TotalCommits)
	}
	if !result.LastFetchedAt.Equal(anchor) {
		t.Errorf("LastFetchedAt = %v, want %v", result.LastFetchedAt, anchor)
	}
}

func TestComputeStoredStatisticsWithoutClient(t *testing.T) {
	anchor := time.Date(2025, 8, 30, 15, 0, 0, 0, time.Local)
	runs := &fakeRunStore{runs: []models.WorkflowRunRecord{
		storedRun(1, models.RunStatusSuccess, anchor.AddDate(0, 0, -1)),
	}}
	builds := &serviceBuildStore{build: inlineTokenBuild("")}

	svc := newTestService(builds, runs, &fakeTestStore{}, nil, anchor)

	result, err := svc.ComputeStoredStatistics(context.Background(), "tenant-1", "build-1", false)
	if err != nil {
		t.Fatalf("ComputeStoredStatistics: %v", err)
	}
	if result.Health.Total != 1 {
		t.Errorf("health total = %d, want 1", result.Health.Total)
	}
	// No GitHub capability: metadata degrades to zero values.
	if result.Metadata.TotalCommits != 0 || result.Metadata.Tags == nil {
		t.Errorf("expected empty metadata, got %+v", result.Metadata)
	}
}

func TestComputeLiveStatisticsFiltersSelectors(t *testing.T) {
	anchor := time.Date(2025, 8, 30, 15, 0, 0, 0, time.Local)
	client := &fakeClient{
		fakeMetadataSource: newFakeSource("sha-1"),
		runs: []models.WorkflowRunRecord{
			{RunID: 3, Status: models.RunStatusSuccess, HeadBranch: "main", WorkflowCreatedAt: anchor.Add(-time.Hour)},
			{RunID: 2, Status: models.RunStatusFailure, HeadBranch: "feature/x", WorkflowCreatedAt: anchor.Add(-2 * time.Hour)},
			{RunID: 1, Status: models.RunStatusSuccess, HeadBranch: "main", WorkflowCreatedAt: anchor.AddDate(0, 0, -2)},
		},
	}
	builds := &serviceBuildStore{build: inlineTokenBuild("")}

	svc := newTestService(builds, &fakeRunStore{}, &fakeTestStore{}, client, anchor)

	result, err := svc.ComputeLiveStatistics(context.Background(), "tenant-1", "build-1")
	if err != nil {
		t.Fatalf("ComputeLiveStatistics: %v", err)
	}
	// Only the two main-branch runs match the selector.
	if result.Health.Total != 2 {
		t.Errorf("health total = %d, want 2", result.Health.Total)
	}
	if result.Health.Failed != 0 {
		t.Errorf("failure count = %d, want 0 (feature branch excluded)", result.Health.Failed)
	}
}

func TestComputeLiveStatisticsRunFetchErrorPropagates(t *testing.T) {
	anchor := time.Date(2025, 8, 30, 15, 0, 0, 0, time.Local)
	client := &fakeClient{
		fakeMetadataSource: newFakeSource("sha-1"),
		runsErr:            fmt.Errorf("api rate limited"),
	}
	builds := &serviceBuildStore{build: inlineTokenBuild("")}

	svc := newTestService(builds, &fakeRunStore{}, &fakeTestStore{}, client, anchor)

	if _, err := svc.ComputeLiveStatistics(context.Background(), "tenant-1", "build-1"); err == nil {
		t.Fatal("expected run fetch error to propagate")
	}
}

func TestComputeLiveStatisticsTokenConfigError(t *testing.T) {
	anchor := time.Date(2025, 8, 30, 15, 0, 0, 0, time.Local)
	build := inlineTokenBuild("")
	build.InlineToken = nil // neither token source set
	builds := &serviceBuildStore{build: build}

	svc := newTestService(builds, &fakeRunStore{}, &fakeTestStore{}, &fakeClient{fakeMetadataSource: newFakeSource("sha-1")}, anchor)

	_, err := svc.ComputeLiveStatistics(context.Background(), "tenant-1", "build-1")
	if !errors.Is(err, token.ErrTokenConfig) {
		t.Fatalf("err = %v, want ErrTokenConfig", err)
	}
}
