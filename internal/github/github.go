package github

import (
	"context"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

// CommitRef identifies a repository commit returned by the metadata source.
type CommitRef struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	AuthoredAt time.Time `json:"authored_at"`
}

// RunSource lists workflow runs for a repository, newest first.
type RunSource interface {
	RunsSince(ctx context.Context, org, repo string, since time.Time) ([]models.WorkflowRunRecord, error)
	RunsInRange(ctx context.Context, org, repo string, start, end time.Time) ([]models.WorkflowRunRecord, error)
}

// MetadataSource exposes the repository metadata queries consumed by the
// cache gate. Implementations own retry policy; callers never retry.
type MetadataSource interface {
	LatestCommit(ctx context.Context, org, repo string) (CommitRef, error)
	Tags(ctx context.Context, org, repo string, limit int) ([]string, error)
	CommitCount(ctx context.Context, org, repo string, since, until *time.Time) (int, error)
	ContributorCount(ctx context.Context, org, repo string, since *time.Time) (int, error)
	Contributors(ctx context.Context, org, repo string, limit int) ([]models.Contributor, error)
	MostActiveFiles(ctx context.Context, org, repo string, limit int) ([]models.FileActivity, error)
	CommitDates(ctx context.Context, org, repo string, since, until time.Time) ([]time.Time, error)
}

// TestResultSource summarises per-run test outcomes. The boolean is false
// when the run produced nothing to summarise (still in flight, or no
// completed steps).
type TestResultSource interface {
	RunTestSummary(ctx context.Context, org, repo string, runID int64) (models.TestResultRecord, bool, error)
}

// Client is the full GitHub capability surface.
type Client interface {
	RunSource
	MetadataSource
	TestResultSource
}
