package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/cipulse/cipulse-api/internal/models"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPageMax     = 100
	maxPages       = 10
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *ResponseCache
}

// Option configures the REST client.
type Option func(*apiClient)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *apiClient) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *apiClient) { c.httpClient = hc }
}

// WithCache attaches a response cache; GET bodies are served from it when
// fresh.
func WithCache(cache *ResponseCache) Option {
	return func(c *apiClient) { c.cache = cache }
}

// NewClient builds a GitHub REST client authenticated with the given token.
func NewClient(token string, opts ...Option) Client {
	c := &apiClient{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	HeadBranch   string    `json:"head_branch"`
	Event        string    `json:"event"`
	HeadSHA      string    `json:"head_sha"`
	RunStartedAt time.Time `json:"run_started_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HeadCommit   struct {
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
		Author    struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"head_commit"`
}

type apiRunList struct {
	TotalCount   int      `json:"total_count"`
	WorkflowRuns []apiRun `json:"workflow_runs"`
}

type apiJobStep struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

type apiJob struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	Conclusion string       `json:"conclusion"`
	Steps      []apiJobStep `json:"steps"`
}

type apiJobList struct {
	TotalCount int      `json:"total_count"`
	Jobs       []apiJob `json:"jobs"`
}

type apiCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Files []struct {
		Filename string `json:"filename"`
	} `json:"files"`
}

type apiContributor struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

func (c *apiClient) RunsSince(ctx context.Context, org, repo string, since time.Time) ([]models.WorkflowRunRecord, error) {
	created := fmt.Sprintf(">=%s", since.UTC().Format("2006-01-02"))
	return c.listRuns(ctx, org, repo, created)
}

func (c *apiClient) RunsInRange(ctx context.Context, org, repo string, start, end time.Time) ([]models.WorkflowRunRecord, error) {
	created := fmt.Sprintf("%s..%s", start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
	return c.listRuns(ctx, org, repo, created)
}

func (c *apiClient) listRuns(ctx context.Context, org, repo, created string) ([]models.WorkflowRunRecord, error) {
	var runs []models.WorkflowRunRecord
	for page := 1; page <= maxPages; page++ {
		query := url.Values{
			"created":  {created},
			"per_page": {strconv.Itoa(perPageMax)},
			"page":     {strconv.Itoa(page)},
		}
		var list apiRunList
		if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/actions/runs", org, repo), query, &list); err != nil {
			return nil, errors.Wrap(err, "list workflow runs")
		}
		for _, run := range list.WorkflowRuns {
			runs = append(runs, toRunRecord(run))
		}
		if len(list.WorkflowRuns) < perPageMax {
			break
		}
	}
	return runs, nil
}

// toRunRecord flattens the Actions API run into the record shape the stats
// engine consumes. Completed runs report the conclusion; in-flight runs
// report the status itself.
func toRunRecord(run apiRun) models.WorkflowRunRecord {
	status := run.Status
	if run.Status == "completed" && run.Conclusion != "" {
		status = run.Conclusion
	}

	record := models.WorkflowRunRecord{
		RunID:             run.ID,
		Name:              run.Name,
		Status:            status,
		HeadBranch:        run.HeadBranch,
		Event:             run.Event,
		CommitSHA:         run.HeadSHA,
		CommitAuthor:      run.HeadCommit.Author.Name,
		CommitMessage:     run.HeadCommit.Message,
		CommitDate:        run.HeadCommit.Timestamp,
		WorkflowCreatedAt: run.CreatedAt,
		WorkflowUpdatedAt: run.UpdatedAt,
	}

	if run.Status == "completed" && !run.RunStartedAt.IsZero() && run.UpdatedAt.After(run.RunStartedAt) {
		millis := run.UpdatedAt.Sub(run.RunStartedAt).Milliseconds()
		record.DurationMillis = &millis
	}
	return record
}

// RunTestSummary tallies the completed job steps of a workflow run into a
// test-result record. Step conclusions map to pass/fail/skip counts.
func (c *apiClient) RunTestSummary(ctx context.Context, org, repo string, runID int64) (models.TestResultRecord, bool, error) {
	query := url.Values{"per_page": {strconv.Itoa(perPageMax)}}
	var list apiJobList
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs", org, repo, runID), query, &list); err != nil {
		return models.TestResultRecord{}, false, errors.Wrap(err, "list run jobs")
	}
	record := summarizeJobSteps(runID, list.Jobs)
	return record, record.TotalTests > 0, nil
}

func summarizeJobSteps(runID int64, jobs []apiJob) models.TestResultRecord {
	record := models.TestResultRecord{WorkflowRunID: runID}
	for _, job := range jobs {
		for _, step := range job.Steps {
			if step.Status != "completed" {
				continue
			}
			record.TotalTests++
			switch step.Conclusion {
			case "success":
				record.PassedTests++
			case "skipped":
				record.SkippedTests++
			default:
				record.FailedTests++
			}
		}
	}
	return record
}

func (c *apiClient) LatestCommit(ctx context.Context, org, repo string) (CommitRef, error) {
	query := url.Values{"per_page": {"1"}}
	var commits []apiCommit
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/commits", org, repo), query, &commits); err != nil {
		return CommitRef{}, errors.Wrap(err, "latest commit")
	}
	if len(commits) == 0 {
		return CommitRef{}, errors.New("repository has no commits")
	}
	head := commits[0]
	return CommitRef{
		SHA:        head.SHA,
		Author:     head.Commit.Author.Name,
		Message:    head.Commit.Message,
		AuthoredAt: head.Commit.Author.Date,
	}, nil
}

func (c *apiClient) Tags(ctx context.Context, org, repo string, limit int) ([]string, error) {
	query := url.Values{"per_page": {strconv.Itoa(limit)}}
	var tags []struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/tags", org, repo), query, &tags); err != nil {
		return nil, errors.Wrap(err, "list tags")
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names, nil
}

func (c *apiClient) CommitCount(ctx context.Context, org, repo string, since, until *time.Time) (int, error) {
	query := url.Values{"per_page": {"1"}}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	if until != nil {
		query.Set("until", until.UTC().Format(time.RFC3339))
	}
	count, err := c.countViaLinkHeader(ctx, fmt.Sprintf("/repos/%s/%s/commits", org, repo), query)
	if err != nil {
		return 0, errors.Wrap(err, "count commits")
	}
	return count, nil
}

func (c *apiClient) ContributorCount(ctx context.Context, org, repo string, since *time.Time) (int, error) {
	if since == nil {
		query := url.Values{"per_page": {"1"}, "anon": {"true"}}
		count, err := c.countViaLinkHeader(ctx, fmt.Sprintf("/repos/%s/%s/contributors", org, repo), query)
		if err != nil {
			return 0, errors.Wrap(err, "count contributors")
		}
		return count, nil
	}

	// The contributors endpoint cannot be windowed; list windowed commits
	// and count distinct authors instead.
	commits, err := c.listCommits(ctx, org, repo, since, nil)
	if err != nil {
		return 0, errors.Wrap(err, "count windowed contributors")
	}
	authors := make(map[string]struct{})
	for _, commit := range commits {
		name := commit.Commit.Author.Name
		if commit.Author != nil && commit.Author.Login != "" {
			name = commit.Author.Login
		}
		if name != "" {
			authors[name] = struct{}{}
		}
	}
	return len(authors), nil
}

func (c *apiClient) Contributors(ctx context.Context, org, repo string, limit int) ([]models.Contributor, error) {
	query := url.Values{"per_page": {strconv.Itoa(limit)}}
	var raw []apiContributor
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/contributors", org, repo), query, &raw); err != nil {
		return nil, errors.Wrap(err, "list contributors")
	}
	contributors := make([]models.Contributor, 0, len(raw))
	for _, item := range raw {
		contributors = append(contributors, models.Contributor{
			Login:         item.Login,
			AvatarURL:     item.AvatarURL,
			Contributions: item.Contributions,
		})
	}
	return contributors, nil
}

// MostActiveFiles tallies file paths across recent commits. Individual
// commit-detail failures are skipped so one bad commit does not sink the
// whole aggregate.
func (c *apiClient) MostActiveFiles(ctx context.Context, org, repo string, limit int) ([]models.FileActivity, error) {
	query := url.Values{"per_page": {"25"}}
	var recent []apiCommit
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/commits", org, repo), query, &recent); err != nil {
		return nil, errors.Wrap(err, "list recent commits")
	}

	changes := make(map[string]int)
	for _, commit := range recent {
		var detail apiCommit
		if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/commits/%s", org, repo, commit.SHA), nil, &detail); err != nil {
			continue
		}
		for _, file := range detail.Files {
			changes[file.Filename]++
		}
	}

	files := make([]models.FileActivity, 0, len(changes))
	for path, count := range changes {
		files = append(files, models.FileActivity{Path: path, Changes: count})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Changes != files[j].Changes {
			return files[i].Changes > files[j].Changes
		}
		return files[i].Path < files[j].Path
	})
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (c *apiClient) CommitDates(ctx context.Context, org, repo string, since, until time.Time) ([]time.Time, error) {
	commits, err := c.listCommits(ctx, org, repo, &since, &until)
	if err != nil {
		return nil, errors.Wrap(err, "list commit dates")
	}
	dates := make([]time.Time, 0, len(commits))
	for _, commit := range commits {
		dates = append(dates, commit.Commit.Author.Date)
	}
	return dates, nil
}

func (c *apiClient) listCommits(ctx context.Context, org, repo string, since, until *time.Time) ([]apiCommit, error) {
	var all []apiCommit
	for page := 1; page <= maxPages; page++ {
		query := url.Values{
			"per_page": {strconv.Itoa(perPageMax)},
			"page":     {strconv.Itoa(page)},
		}
		if since != nil {
			query.Set("since", since.UTC().Format(time.RFC3339))
		}
		if until != nil {
			query.Set("until", until.UTC().Format(time.RFC3339))
		}
		var commits []apiCommit
		if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/commits", org, repo), query, &commits); err != nil {
			return nil, err
		}
		all = append(all, commits...)
		if len(commits) < perPageMax {
			break
		}
	}
	return all, nil
}

var lastPageRe = regexp.MustCompile(`[?&]page=(\d+)>; rel="last"`)

// countViaLinkHeader requests one item per page and reads the total from the
// pagination Link header, avoiding a full listing.
func (c *apiClient) countViaLinkHeader(ctx context.Context, path string, query url.Values) (int, error) {
	body, header, err := c.do(ctx, path, query)
	if err != nil {
		return 0, err
	}
	if match := lastPageRe.FindStringSubmatch(header.Get("Link")); match != nil {
		return strconv.Atoi(match[1])
	}
	// No Link header: everything fits on the single page.
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	key := c.baseURL + path + "?" + query.Encode()
	if body, ok := c.cache.Get(key); ok {
		return json.Unmarshal(body, out)
	}

	body, _, err := c.do(ctx, path, query)
	if err != nil {
		return err
	}
	c.cache.Set(key, body)
	return json.Unmarshal(body, out)
}

func (c *apiClient) do(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("github: GET %s returned %d", path, resp.StatusCode)
	}
	return body, resp.Header, nil
}
