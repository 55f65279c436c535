package models

import "time"

type SelectorKind string

const (
	SelectorKindTag      SelectorKind = "tag"
	SelectorKindBranch   SelectorKind = "branch"
	SelectorKindWorkflow SelectorKind = "workflow"
)

// IsValidSelectorKind reports whether the kind is one of the three tracked variants.
func IsValidSelectorKind(kind SelectorKind) bool {
	switch kind {
	case SelectorKindTag, SelectorKindBranch, SelectorKindWorkflow:
		return true
	}
	return false
}

// Selector is a glob-pattern rule deciding which workflow runs belong to a build.
// The pattern supports `*` wildcards; matching is case-sensitive and anchored.
type Selector struct {
	Kind    SelectorKind `json:"kind" db:"kind"`
	Pattern string       `json:"pattern" db:"pattern"`
}

// Build is a tracked (organization, repository, selector-set) monitoring target.
type Build struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	Name         string     `json:"name" db:"name"`
	Organization string     `json:"organization" db:"organization"`
	Repository   string     `json:"repository" db:"repository"`
	Selectors    []Selector `json:"selectors" db:"selectors"`

	// Token configuration: exactly one of SavedTokenID / InlineToken is set.
	SavedTokenID *string `json:"saved_token_id,omitempty" db:"saved_token_id"`
	InlineToken  *string `json:"-" db:"inline_token"`

	// Cache fields, mutated only by the metadata cache gate.
	LastAnalyzedCommitSHA *string           `json:"last_analyzed_commit_sha,omitempty" db:"last_analyzed_commit_sha"`
	CachedMetadata        *CachedMetadata   `json:"cached_metadata,omitempty" db:"cached_metadata"`
	SevenDayActivity      *SevenDayActivity `json:"seven_day_activity,omitempty" db:"seven_day_activity"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// CachedMetadata is the commit-SHA-keyed snapshot of expensive GitHub
// repository metadata. Absent (nil on Build) means never fetched; present
// with empty slices means fetched and genuinely empty.
type CachedMetadata struct {
	Tags              []string       `json:"tags"`
	TotalCommits      int            `json:"total_commits"`
	TotalContributors int            `json:"total_contributors"`
	MonthlyCommits    []MonthlyCount `json:"monthly_commits"`
	Contributors      []Contributor  `json:"contributors"`
	MostUpdatedFiles  []FileActivity `json:"most_updated_files"`
}

// Complete reports whether every sub-field required to serve a warm cache
// without refetching is populated. Nil slices mean "never fetched" and force
// a refresh; empty non-nil slices mean "fetched, genuinely empty" and do not.
func (m *CachedMetadata) Complete() bool {
	if m == nil {
		return false
	}
	return m.Contributors != nil &&
		m.MostUpdatedFiles != nil &&
		m.MonthlyCommits != nil &&
		m.Tags != nil
}

// SevenDayActivity caches the trailing-7-day commit/contributor counts.
// It is keyed by the same commit SHA as CachedMetadata but refreshed
// independently because it answers a bounded-window query.
type SevenDayActivity struct {
	Commits      int `json:"commits"`
	Contributors int `json:"contributors"`
}

// MonthlyCount is one month's commit tally in the monthly histogram.
type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// Contributor is a repository contributor with their commit count.
type Contributor struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Contributions int    `json:"contributions"`
}

// FileActivity is a frequently-changed file and its change count.
type FileActivity struct {
	Path    string `json:"path"`
	Changes int    `json:"changes"`
}
