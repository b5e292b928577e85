// Package ghub is a minimal GitHub REST v3 client covering the calls the sync
// engine needs: file contents, issue listing, docs folder listing, and issue
// write-back.
package ghub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrNotFound = errors.New("github: not found")

type Issue struct {
	Number int
	Title  string
	State  string
	Labels []string
}

type RepoFile struct {
	Name    string
	Path    string
	HTMLURL string
}

type Repo struct {
	ID       int64
	FullName string
	HTMLURL  string
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of the client using a different access token, for
// per-session credentials.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// GetRepo fetches repository metadata.
func (c *Client) GetRepo(ctx context.Context, repoFullName string) (Repo, error) {
	body, err := c.get(ctx, "/repos/"+repoFullName)
	if err != nil {
		return Repo{}, err
	}
	parsed := gjson.ParseBytes(body)
	return Repo{
		ID:       parsed.Get("id").Int(),
		FullName: parsed.Get("full_name").String(),
		HTMLURL:  parsed.Get("html_url").String(),
	}, nil
}

// FileContent fetches a file through the contents API and decodes its base64
// payload.
func (c *Client) FileContent(ctx context.Context, repoFullName, path string) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/contents/%s", repoFullName, path))
	if err != nil {
		return "", err
	}

	parsed := gjson.ParseBytes(body)
	if parsed.Get("encoding").String() != "base64" {
		return parsed.Get("content").String(), nil
	}
	raw := strings.ReplaceAll(parsed.Get("content").String(), "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s content: %w", path, err)
	}
	return string(decoded), nil
}

// ListIssues returns every issue in the repository, any state, fully
// paginated. Pull requests are excluded.
func (c *Client) ListIssues(ctx context.Context, repoFullName string) ([]Issue, error) {
	const perPage = 100
	issues := make([]Issue, 0)
	for page := 1; ; page++ {
		body, err := c.get(ctx, fmt.Sprintf("/repos/%s/issues?state=all&per_page=%d&page=%d", repoFullName, perPage, page))
		if err != nil {
			return nil, err
		}

		items := gjson.ParseBytes(body).Array()
		for _, item := range items {
			if item.Get("pull_request").Exists() {
				continue
			}
			issue := Issue{
				Number: int(item.Get("number").Int()),
				Title:  item.Get("title").String(),
				State:  item.Get("state").String(),
			}
			for _, label := range item.Get("labels").Array() {
				issue.Labels = append(issue.Labels, label.Get("name").String())
			}
			issues = append(issues, issue)
		}
		if len(items) < perPage {
			return issues, nil
		}
	}
}

// ListDocsFolder lists the repository's docs/ directory. A missing folder
// returns ErrNotFound; callers degrade to "no docs".
func (c *Client) ListDocsFolder(ctx context.Context, repoFullName string) ([]RepoFile, error) {
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/contents/docs", repoFullName))
	if err != nil {
		return nil, err
	}

	items := gjson.ParseBytes(body).Array()
	files := make([]RepoFile, 0, len(items))
	for _, item := range items {
		if item.Get("type").String() != "file" {
			continue
		}
		files = append(files, RepoFile{
			Name:    item.Get("name").String(),
			Path:    item.Get("path").String(),
			HTMLURL: item.Get("html_url").String(),
		})
	}
	return files, nil
}

// SetIssueState opens or closes an issue ("open"/"closed").
func (c *Client) SetIssueState(ctx context.Context, repoFullName string, issueNumber int, state string) error {
	payload, err := sjson.Set("", "state", state)
	if err != nil {
		return fmt.Errorf("build issue state payload: %w", err)
	}
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/%d", repoFullName, issueNumber), payload)
}

// CreateIssueComment posts a comment on an issue.
func (c *Client) CreateIssueComment(ctx context.Context, repoFullName string, issueNumber int, body string) error {
	payload, err := sjson.Set("", "body", body)
	if err != nil {
		return fmt.Errorf("build comment payload: %w", err)
	}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repoFullName, issueNumber), payload)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("github request %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read github response: %w", err)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path, payload string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("github request %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
