package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-token", WithBaseURL(server.URL))
}

func TestRunsSinceStatusMapping(t *testing.T) {
	body := `{
		"total_count": 3,
		"workflow_runs": [
			{
				"id": 101, "name": "CI", "status": "completed", "conclusion": "success",
				"head_branch": "main", "event": "push", "head_sha": "abc123",
				"run_started_at": "2025-08-01T10:00:00Z",
				"created_at": "2025-08-01T09:59:00Z",
				"updated_at": "2025-08-01T10:05:00Z",
				"head_commit": {"message": "fix", "timestamp": "2025-08-01T09:58:00Z", "author": {"name": "dev"}}
			},
			{
				"id": 102, "name": "CI", "status": "completed", "conclusion": "failure",
				"head_branch": "main", "event": "push", "head_sha": "def456",
				"created_at": "2025-08-02T09:00:00Z",
				"updated_at": "2025-08-02T09:01:00Z",
				"head_commit": {"message": "break", "timestamp": "2025-08-02T08:58:00Z", "author": {"name": "dev"}}
			},
			{
				"id": 103, "name": "CI", "status": "in_progress", "conclusion": "",
				"head_branch": "main", "event": "push", "head_sha": "0a0b0c",
				"run_started_at": "2025-08-03T09:00:00Z",
				"created_at": "2025-08-03T09:00:00Z",
				"updated_at": "2025-08-03T09:02:00Z",
				"head_commit": {"message": "wip", "timestamp": "2025-08-03T08:58:00Z", "author": {"name": "dev"}}
			}
		]
	}`
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/runs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if created := r.URL.Query().Get("created"); created == "" {
			t.Error("expected created filter in query")
		}
		fmt.Fprint(w, body)
	}))

	runs, err := client.RunsSince(context.Background(), "acme", "widgets", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunsSince: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}

	if runs[0].Status != "success" {
		t.Errorf("completed run status = %q, want success", runs[0].Status)
	}
	if runs[0].DurationMillis == nil || *runs[0].DurationMillis != int64(5*time.Minute/time.Millisecond) {
		t.Errorf("run 101 duration = %v, want 300000", runs[0].DurationMillis)
	}
	if runs[1].Status != "failure" {
		t.Errorf("failed run status = %q, want failure", runs[1].Status)
	}
	if runs[1].DurationMillis != nil {
		t.Errorf("run without run_started_at should have nil duration, got %v", *runs[1].DurationMillis)
	}
	if runs[2].Status != "in_progress" {
		t.Errorf("in-flight run status = %q, want in_progress", runs[2].Status)
	}
	if runs[2].DurationMillis != nil {
		t.Error("in-flight run should have nil duration")
	}
	if runs[0].CommitAuthor != "dev" || runs[0].CommitSHA != "abc123" {
		t.Errorf("commit fields not mapped: %+v", runs[0])
	}
}

func TestCommitCountFromLinkHeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://api.github.com/repos/acme/widgets/commits?per_page=1&page=2>; rel="next", <https://api.github.com/repos/acme/widgets/commits?per_page=1&page=1234>; rel="last"`)
		fmt.Fprint(w, `[{"sha": "abc"}]`)
	}))

	count, err := client.CommitCount(context.Background(), "acme", "widgets", nil, nil)
	if err != nil {
		t.Fatalf("CommitCount: %v", err)
	}
	if count != 1234 {
		t.Errorf("count = %d, want 1234", count)
	}
}

func TestCommitCountSinglePage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"sha": "abc"}, {"sha": "def"}]`)
	}))

	count, err := client.CommitCount(context.Background(), "acme", "widgets", nil, nil)
	if err != nil {
		t.Fatalf("CommitCount: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestWindowedContributorCountDistinctAuthors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") == "" {
			t.Error("expected since filter")
		}
		fmt.Fprint(w, `[
			{"sha": "a", "commit": {"author": {"name": "Alice"}}, "author": {"login": "alice"}},
			{"sha": "b", "commit": {"author": {"name": "Alice B"}}, "author": {"login": "alice"}},
			{"sha": "c", "commit": {"author": {"name": "Bob"}}}
		]`)
	}))

	since := time.Now().AddDate(0, 0, -7)
	count, err := client.ContributorCount(context.Background(), "acme", "widgets", &since)
	if err != nil {
		t.Fatalf("ContributorCount: %v", err)
	}
	// alice counted once via login, Bob via commit author name.
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestLatestCommit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "1" {
			t.Errorf("per_page = %q, want 1", got)
		}
		fmt.Fprint(w, `[{"sha": "headsha", "commit": {"message": "latest", "author": {"name": "dev", "date": "2025-08-30T12:00:00Z"}}}]`)
	}))

	head, err := client.LatestCommit(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatalf("LatestCommit: %v", err)
	}
	if head.SHA != "headsha" || head.Author != "dev" || head.Message != "latest" {
		t.Errorf("unexpected head: %+v", head)
	}
}

func TestLatestCommitEmptyRepo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))

	if _, err := client.LatestCommit(context.Background(), "acme", "empty"); err == nil {
		t.Fatal("expected error for repository with no commits")
	}
}

func TestMostActiveFilesSkipsFailedDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/commits":
			fmt.Fprint(w, `[{"sha": "c1"}, {"sha": "c2"}, {"sha": "c3"}]`)
		case "/repos/acme/widgets/commits/c1":
			fmt.Fprint(w, `{"sha": "c1", "files": [{"filename": "main.go"}, {"filename": "util.go"}]}`)
		case "/repos/acme/widgets/commits/c2":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/repos/acme/widgets/commits/c3":
			fmt.Fprint(w, `{"sha": "c3", "files": [{"filename": "main.go"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	files, err := client.MostActiveFiles(context.Background(), "acme", "widgets", 10)
	if err != nil {
		t.Fatalf("MostActiveFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Path != "main.go" || files[0].Changes != 2 {
		t.Errorf("top file = %+v, want main.go with 2 changes", files[0])
	}
	if files[1].Path != "util.go" || files[1].Changes != 1 {
		t.Errorf("second file = %+v, want util.go with 1 change", files[1])
	}
}

func TestTags(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "v1.2.0"}, {"name": "v1.1.0"}]`)
	}))

	tags, err := client.Tags(context.Background(), "acme", "widgets", 20)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "v1.2.0" {
		t.Errorf("tags = %v", tags)
	}
}

func TestGetJSONUsesCache(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `[{"name": "v1.0.0"}]`)
	}))
	defer server.Close()

	client := NewClient("tok", WithBaseURL(server.URL), WithCache(NewResponseCache(time.Minute)))

	for i := 0; i < 3; i++ {
		if _, err := client.Tags(context.Background(), "acme", "widgets", 20); err != nil {
			t.Fatalf("Tags call %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (remaining calls cached)", hits)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))

	if _, err := client.Tags(context.Background(), "acme", "widgets", 20); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestRunTestSummaryCountsSteps(t *testing.T) {
	body := `{
		"total_count": 2,
		"jobs": [
			{
				"id": 1, "name": "unit", "status": "completed", "conclusion": "failure",
				"steps": [
					{"name": "checkout", "status": "completed", "conclusion": "success"},
					{"name": "test", "status": "completed", "conclusion": "failure"},
					{"name": "upload", "status": "completed", "conclusion": "skipped"}
				]
			},
			{
				"id": 2, "name": "lint", "status": "in_progress", "conclusion": "",
				"steps": [
					{"name": "checkout", "status": "completed", "conclusion": "success"},
					{"name": "lint", "status": "in_progress", "conclusion": ""}
				]
			}
		]
	}`
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/runs/42/jobs" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))

	summary, ok, err := client.RunTestSummary(context.Background(), "acme", "widgets", 42)
	if err != nil {
		t.Fatalf("RunTestSummary: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if summary.WorkflowRunID != 42 {
		t.Errorf("workflow run id = %d, want 42", summary.WorkflowRunID)
	}
	if summary.TotalTests != 4 || summary.PassedTests != 2 || summary.FailedTests != 1 || summary.SkippedTests != 1 {
		t.Errorf("summary = %+v, want total 4, passed 2, failed 1, skipped 1", summary)
	}
}

func TestRunTestSummaryEmptyRun(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count": 0, "jobs": []}`))
	}))

	_, ok, err := client.RunTestSummary(context.Background(), "acme", "widgets", 7)
	if err != nil {
		t.Fatalf("RunTestSummary: %v", err)
	}
	if ok {
		t.Fatal("ok = true, want false for a run with no completed steps")
	}
}
