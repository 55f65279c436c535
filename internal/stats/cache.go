package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/github"
	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
)

const (
	tagFetchLimit         = 20
	contributorFetchLimit = 10
	fileFetchLimit        = 10
)

// MetadataGate decides whether expensive GitHub repository metadata can be
// served from the cache attached to the build record or must be refetched.
// The cache key is the repository's latest commit SHA, not a wall-clock TTL:
// a repository that has not moved cannot have changed its metadata.
type MetadataGate struct {
	builds repository.BuildRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewMetadataGate(builds repository.BuildRepository, logger zerolog.Logger) *MetadataGate {
	return &MetadataGate{
		builds: builds,
		logger: logger.With().Str("component", "metadata_gate").Logger(),
		now:    time.Now,
	}
}

// Resolve serves the metadata block for a build. A nil source yields
// all-zero metadata with no cache transition and no error. force skips the
// SHA comparison and behaves as a cold cache.
//
// Warm with a complete cache costs exactly one GitHub call (the head SHA lookup)
// and performs no write-back. Cold refreshes fan out concurrently; each
// failed sub-fetch degrades to its empty value, and the refreshed fields are
// persisted together with the new SHA in a single write-back.
func (g *MetadataGate) Resolve(ctx context.Context, source github.MetadataSource, build models.Build, force bool) models.RepositoryMetadata {
	if source == nil {
		return emptyMetadata()
	}

	head, err := source.LatestCommit(ctx, build.Organization, build.Repository)
	if err != nil {
		g.logger.Warn().Err(err).Str("build_id", build.ID).Msg("latest commit lookup failed")
		// Cannot validate the cache; serve what we have rather than fail.
		if build.CachedMetadata != nil {
			return metadataFromCache(build)
		}
		return emptyMetadata()
	}

	warm := !force &&
		build.LastAnalyzedCommitSHA != nil &&
		*build.LastAnalyzedCommitSHA == head.SHA &&
		build.CachedMetadata.Complete()

	if warm {
		meta := metadataFromCache(build)
		if build.SevenDayActivity == nil {
			// SHA matches but the bounded-window sub-cache is absent:
			// fetch only the 7-day figures, leave the rest untouched.
			activity := g.fetchSevenDayActivity(ctx, source, build)
			meta.SevenDayCommits = activity.Commits
			meta.SevenDayContributors = activity.Contributors
			if err := g.builds.UpdateSevenDayActivity(build.TenantID, build.ID, activity); err != nil {
				g.logger.Warn().Err(err).Str("build_id", build.ID).Msg("seven-day cache write-back failed")
			}
		}
		return meta
	}

	meta, activity := g.refresh(ctx, source, build)
	if err := g.builds.UpdateCachedMetadata(build.TenantID, build.ID, meta, &activity, head.SHA); err != nil {
		// Serving a fresh-but-uncached result beats failing the request.
		g.logger.Warn().Err(err).Str("build_id", build.ID).Msg("metadata cache write-back failed")
	}

	return models.RepositoryMetadata{
		Tags:                 meta.Tags,
		TotalCommits:         meta.TotalCommits,
		TotalContributors:    meta.TotalContributors,
		MonthlyCommits:       meta.MonthlyCommits,
		Contributors:         meta.Contributors,
		MostUpdatedFiles:     meta.MostUpdatedFiles,
		SevenDayCommits:      activity.Commits,
		SevenDayContributors: activity.Contributors,
	}
}

// refresh fans out the independent metadata fetches and joins them before
// returning. The write-back in Resolve therefore happens-after every
// constituent fetch; a partial SHA update with missing fields cannot occur.
func (g *MetadataGate) refresh(ctx context.Context, source github.MetadataSource, build models.Build) (models.CachedMetadata, models.SevenDayActivity) {
	org, repo := build.Organization, build.Repository
	anchor := g.now()
	monthStart := time.Date(anchor.Year(), anchor.Month()-time.Month(MonthlyWindowMonths-1), 1, 0, 0, 0, 0, time.Local)

	meta := models.CachedMetadata{
		Tags:             []string{},
		MonthlyCommits:   []models.MonthlyCount{},
		Contributors:     []models.Contributor{},
		MostUpdatedFiles: []models.FileActivity{},
	}
	var activity models.SevenDayActivity

	var wg sync.WaitGroup
	wg.Add(6)

	go func() {
		defer wg.Done()
		tags, err := source.Tags(ctx, org, repo, tagFetchLimit)
		if err != nil {
			g.logFetchFailure(err, build, "tags")
			return
		}
		if tags != nil {
			meta.Tags = tags
		}
	}()

	go func() {
		defer wg.Done()
		count, err := source.CommitCount(ctx, org, repo, nil, nil)
		if err != nil {
			g.logFetchFailure(err, build, "total commits")
			return
		}
		meta.TotalCommits = count
	}()

	go func() {
		defer wg.Done()
		count, err := source.ContributorCount(ctx, org, repo, nil)
		if err != nil {
			g.logFetchFailure(err, build, "total contributors")
			return
		}
		meta.TotalContributors = count
	}()

	go func() {
		defer wg.Done()
		contributors, err := source.Contributors(ctx, org, repo, contributorFetchLimit)
		if err != nil {
			g.logFetchFailure(err, build, "contributors")
			return
		}
		if contributors != nil {
			meta.Contributors = contributors
		}
	}()

	go func() {
		defer wg.Done()
		files, err := source.MostActiveFiles(ctx, org, repo, fileFetchLimit)
		if err != nil {
			g.logFetchFailure(err, build, "most active files")
			return
		}
		if files != nil {
			meta.MostUpdatedFiles = files
		}
	}()

	go func() {
		defer wg.Done()
		dates, err := source.CommitDates(ctx, org, repo, monthStart, anchor)
		if err != nil {
			g.logFetchFailure(err, build, "commit dates")
			return
		}
		meta.MonthlyCommits = bucketCommitDates(dates, anchor, MonthlyWindowMonths)
	}()

	wg.Wait()

	activity = g.fetchSevenDayActivity(ctx, source, build)
	return meta, activity
}

func (g *MetadataGate) fetchSevenDayActivity(ctx context.Context, source github.MetadataSource, build models.Build) models.SevenDayActivity {
	since := g.now().AddDate(0, 0, -HealthWindowDays)
	var activity models.SevenDayActivity

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, err := source.CommitCount(ctx, build.Organization, build.Repository, &since, nil)
		if err != nil {
			g.logFetchFailure(err, build, "seven-day commits")
			return
		}
		activity.Commits = count
	}()

	go func() {
		defer wg.Done()
		count, err := source.ContributorCount(ctx, build.Organization, build.Repository, &since)
		if err != nil {
			g.logFetchFailure(err, build, "seven-day contributors")
			return
		}
		activity.Contributors = count
	}()

	wg.Wait()
	return activity
}

func (g *MetadataGate) logFetchFailure(err error, build models.Build, field string) {
	g.logger.Warn().Err(err).
		Str("build_id", build.ID).
		Str("field", field).
		Msg("metadata fetch degraded to empty value")
}

// bucketCommitDates folds raw commit timestamps into the trailing monthly
// histogram, zero-filled and oldest first.
func bucketCommitDates(dates []time.Time, anchor time.Time, months int) []models.MonthlyCount {
	keys := MonthlyKeys(anchor, months)
	index := keyIndex(keys)

	counts := make([]models.MonthlyCount, len(keys))
	for i, key := range keys {
		counts[i] = models.MonthlyCount{Month: key}
	}
	for _, date := range dates {
		if i, ok := index[MonthKey(date)]; ok {
			counts[i].Count++
		}
	}
	return counts
}

func metadataFromCache(build models.Build) models.RepositoryMetadata {
	meta := models.RepositoryMetadata{FromCache: true}
	if cached := build.CachedMetadata; cached != nil {
		meta.Tags = cached.Tags
		meta.TotalCommits = cached.TotalCommits
		meta.TotalContributors = cached.TotalContributors
		meta.MonthlyCommits = cached.MonthlyCommits
		meta.Contributors = cached.Contributors
		meta.MostUpdatedFiles = cached.MostUpdatedFiles
	}
	if activity := build.SevenDayActivity; activity != nil {
		meta.SevenDayCommits = activity.Commits
		meta.SevenDayContributors = activity.Contributors
	}
	return meta
}

func emptyMetadata() models.RepositoryMetadata {
	return models.RepositoryMetadata{
		Tags:             []string{},
		MonthlyCommits:   []models.MonthlyCount{},
		Contributors:     []models.Contributor{},
		MostUpdatedFiles: []models.FileActivity{},
	}
}
