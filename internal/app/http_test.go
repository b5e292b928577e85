package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskpilot/api/internal/config"
	"taskpilot/api/internal/ghub"
	"taskpilot/api/internal/store"
)

func newTestServer(t *testing.T, cfg config.Config, st *fakeStore, gh *fakeGitHub) *httptest.Server {
	t.Helper()
	svc := New(cfg, st, newFakeSessions(), gh, nil, nil, nil)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("expected ok true, got %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Get(server.URL + "/api/ready")
	if err != nil {
		t.Fatalf("GET /api/ready failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestProjectsRequireSession(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Get(server.URL + "/api/projects")
	if err != nil {
		t.Fatalf("GET /api/projects failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED code, got %v", body)
	}
}

func TestProjectsRejectGarbageToken(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for malformed token, got %d", resp.StatusCode)
	}
}

func TestSessionEndpointAnonymous(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Get(server.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["authenticated"] != false {
		t.Errorf("expected authenticated false, got %v", body)
	}
}

func TestLoginThenAuthorizedRequest(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Post(server.URL+"/api/session/login", "application/json",
		strings.NewReader(`{"name":"Octo"}`))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 login, got %d", resp.StatusCode)
	}
	var login map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	token, _ := login["token"].(string)
	if token == "" {
		t.Fatal("expected access token in login response")
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authorized request failed: %v", err)
	}
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d", listResp.StatusCode)
	}
}

const issueClosedPayload = `{
	"action": "closed",
	"issue": {"number": 7, "title": "Build API", "state": "closed"},
	"repository": {"id": 42, "full_name": "octo/app"}
}`

func webhookRequest(t *testing.T, url, event, secret, payload string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/webhooks/github", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	if secret != "" {
		req.Header.Set("X-Hub-Signature-256", ghub.SignBody([]byte(secret), []byte(payload)))
	}
	return req
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubWebhookSecret = "hook-secret"
	updated := false
	st := &fakeStore{
		updateTaskStatusIfChanged: func(ctx context.Context, taskID, status string) (bool, error) {
			updated = true
			return true, nil
		},
	}
	server := newTestServer(t, cfg, st, &fakeGitHub{})

	req := webhookRequest(t, server.URL, "issues", "wrong-secret", issueClosedPayload)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad signature, got %d", resp.StatusCode)
	}
	if updated {
		t.Error("rejected delivery must not touch the store")
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubWebhookSecret = "hook-secret"
	server := newTestServer(t, cfg, &fakeStore{}, &fakeGitHub{})

	req := webhookRequest(t, server.URL, "issues", "", issueClosedPayload)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing signature, got %d", resp.StatusCode)
	}
}

func TestWebhookIssueClosedUpdatesTask(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubWebhookSecret = "hook-secret"
	var gotStatus string
	st := &fakeStore{
		getProjectByRepoID: func(ctx context.Context, repoID int64) (store.Project, error) {
			if repoID != 42 {
				t.Errorf("expected repo id 42, got %d", repoID)
			}
			return store.Project{ID: "prj_1"}, nil
		},
		getTaskByIssueNumber: func(ctx context.Context, projectID string, issueNumber int) (store.Task, error) {
			return store.Task{ID: "tsk_1"}, nil
		},
		updateTaskStatusIfChanged: func(ctx context.Context, taskID, status string) (bool, error) {
			gotStatus = status
			return true, nil
		},
	}
	server := newTestServer(t, cfg, st, &fakeGitHub{})

	req := webhookRequest(t, server.URL, "issues", "hook-secret", issueClosedPayload)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if gotStatus != "DONE" {
		t.Errorf("expected DONE, got %q", gotStatus)
	}
}

func TestWebhookCommentCreated(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubWebhookSecret = "hook-secret"
	payload := `{
		"action": "created",
		"issue": {"number": 7},
		"comment": {"id": 9001, "body": "Ship it", "user": {"login": "octocat"}},
		"repository": {"id": 42, "full_name": "octo/app"}
	}`
	var gotComment store.TaskComment
	st := &fakeStore{
		getProjectByRepoID: func(ctx context.Context, repoID int64) (store.Project, error) {
			return store.Project{ID: "prj_1"}, nil
		},
		getTaskByIssueNumber: func(ctx context.Context, projectID string, issueNumber int) (store.Task, error) {
			return store.Task{ID: "tsk_1"}, nil
		},
		upsertTaskComment: func(ctx context.Context, comment store.TaskComment) (bool, error) {
			gotComment = comment
			return true, nil
		},
	}
	server := newTestServer(t, cfg, st, &fakeGitHub{})

	req := webhookRequest(t, server.URL, "issue_comment", "hook-secret", payload)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if gotComment.Author != "octocat" || gotComment.Content != "Ship it" {
		t.Errorf("unexpected comment: %+v", gotComment)
	}
}

func TestWebhookPingAccepted(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubWebhookSecret = "hook-secret"
	server := newTestServer(t, cfg, &fakeStore{}, &fakeGitHub{})

	req := webhookRequest(t, server.URL, "ping", "hook-secret", `{"zen":"Keep it simple."}`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for ping, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(t, testConfig(), &fakeStore{}, &fakeGitHub{})

	resp, err := http.Post(server.URL+"/api/session/login", "application/json",
		strings.NewReader(`{"name":"Octo"}`))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	defer resp.Body.Close()
	var login map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	token, _ := login["token"].(string)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	missResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer missResp.Body.Close()
	if missResp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missResp.StatusCode)
	}
}
