package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskpilot/api/internal/auth"
	"taskpilot/api/internal/config"
	"taskpilot/api/internal/crosslink"
	"taskpilot/api/internal/ghub"
	"taskpilot/api/internal/search"
	"taskpilot/api/internal/store"
	"taskpilot/api/internal/taskdoc"
	"taskpilot/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type CreateProjectInput struct {
	Name         string `json:"name"`
	RepoFullName string `json:"repoFullName"`
}

type UpdateTaskInput struct {
	Title     *string `json:"title"`
	Objective *string `json:"objective"`
	Status    *string `json:"status"`
	Hours     *int    `json:"hours"`
	Branch    *string `json:"branch"`
}

type BreakdownInput struct {
	Description string `json:"description"`
}

type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SetUserGitHubToken(context.Context, string, string) error
	ListProjects(context.Context) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	GetProjectByRepoFullName(context.Context, string) (store.Project, error)
	GetProjectByRepoID(context.Context, int64) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	TouchProjectSynced(context.Context, string) error
	GetTask(context.Context, string) (store.Task, error)
	GetTaskByIssueNumber(context.Context, string, int) (store.Task, error)
	ListProjectTasks(context.Context, string) ([]store.Task, error)
	GetTaskTree(context.Context, string) ([]store.TaskTreeNode, error)
	ReconcileProjectTree(context.Context, string, []store.TaskInput) (store.ReconcileStats, error)
	UpdateTaskStatusIfChanged(context.Context, string, string) (bool, error)
	UpdateTaskFields(context.Context, string, store.TaskPatch) error
	UpsertTaskComment(context.Context, store.TaskComment) (bool, error)
	InsertTaskDocument(context.Context, store.TaskDocument) error
	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. Redis when configured, Postgres
// otherwise.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type githubClient interface {
	GetRepo(ctx context.Context, repoFullName string) (ghub.Repo, error)
	FileContent(ctx context.Context, repoFullName, path string) (string, error)
	ListIssues(ctx context.Context, repoFullName string) ([]ghub.Issue, error)
	ListDocsFolder(ctx context.Context, repoFullName string) ([]ghub.RepoFile, error)
	SetIssueState(ctx context.Context, repoFullName string, issueNumber int, state string) error
	CreateIssueComment(ctx context.Context, repoFullName string, issueNumber int, body string) error
}

type breakdownPlanner interface {
	BreakdownDocument(ctx context.Context, projectName, description string) (string, error)
}

type snapshotService interface {
	RecordSnapshot(projectID, document, author, message string) (store.CommitInfo, error)
	History(projectID string, limit int) ([]store.CommitInfo, error)
	SnapshotContent(projectID, hash string) (string, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexProject(p search.ProjectRecord)
	IndexTasks(tasks []search.TaskRecord)
	DeleteTasks(ids []string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	github   githubClient
	planner  breakdownPlanner
	snap     snapshotService
	search   searchService
}

// New wires the service. sessions falls back to the data store when nil;
// planner, snap and search are optional.
func New(cfg config.Config, dataStore dataStore, sessions sessionStore, github githubClient, planner breakdownPlanner, snap snapshotService, searchSvc searchService) *Service {
	if sessions == nil {
		if fallback, ok := dataStore.(sessionStore); ok {
			sessions = fallback
		}
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		github:   github,
		planner:  planner,
		snap:     snap,
		search:   searchSvc,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) WebhookSecret() string {
	return s.cfg.GitHubWebhookSecret
}

func (s *Service) Login(ctx context.Context, name, githubToken string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}
	if githubToken != "" {
		if err := s.store.SetUserGitHubToken(ctx, user.ID, githubToken); err != nil {
			return Session{}, err
		}
	}

	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Session backends store only the user id.
	user, err = s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) ListProjects(ctx context.Context) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectPayload(project))
	}
	return items, nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, input CreateProjectInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	repoFullName := strings.TrimSpace(input.RepoFullName)

	project := store.Project{
		ID:           util.NewID("prj"),
		Name:         name,
		RepoFullName: repoFullName,
		CreatedBy:    session.UserName,
	}

	if repoFullName != "" {
		if repo, err := s.githubFor(ctx, session).GetRepo(ctx, repoFullName); err == nil {
			project.GitHubRepoID = repo.ID
			project.RepoURL = repo.HTMLURL
		} else {
			log.Printf("project %s: repo lookup %s failed: %v", project.ID, repoFullName, err)
		}
	}

	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: project.ID, Name: project.Name, RepoFullName: project.RepoFullName})
	}

	created, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return projectPayload(created), nil
}

func (s *Service) GetProjectTree(ctx context.Context, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tree, err := s.store.GetTaskTree(ctx, projectID)
	if err != nil {
		return nil, err
	}

	payload := projectPayload(project)
	phases := make([]map[string]any, 0, len(tree))
	for _, node := range tree {
		phases = append(phases, treeNodePayload(node))
	}
	payload["phases"] = phases
	return payload, nil
}

// SyncProjectByRef resolves the sync target by project id or repository name.
func (s *Service) SyncProjectByRef(ctx context.Context, session Session, projectID, repoFullName string) (map[string]any, error) {
	if projectID == "" {
		repoFullName = strings.TrimSpace(repoFullName)
		if repoFullName == "" {
			return nil, validationError("projectId or repoFullName is required")
		}
		project, err := s.store.GetProjectByRepoFullName(ctx, repoFullName)
		if err != nil {
			return nil, err
		}
		projectID = project.ID
	}
	return s.SyncProject(ctx, session, projectID)
}

// SyncProject fetches the repository's TASKS.md, parses it, enriches the
// forest with live issues and docs, and reconciles the result into the
// project's persisted tree.
func (s *Service) SyncProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.RepoFullName == "" {
		return nil, validationError("project has no linked repository")
	}

	gh := s.githubFor(ctx, session)

	document, err := gh.FileContent(ctx, project.RepoFullName, "TASKS.md")
	if err != nil {
		if errors.Is(err, ghub.ErrNotFound) {
			return nil, notFoundError("TASKS.md not found in repository")
		}
		return nil, fmt.Errorf("fetch TASKS.md: %w", err)
	}

	phases := taskdoc.Parse(document)

	// Issue and docs fetches degrade to nothing on failure; only the primary
	// document fetch is fatal.
	issues, err := gh.ListIssues(ctx, project.RepoFullName)
	if err != nil {
		log.Printf("sync %s: list issues failed: %v", projectID, err)
		issues = nil
	}
	docs, err := gh.ListDocsFolder(ctx, project.RepoFullName)
	if err != nil {
		if !errors.Is(err, ghub.ErrNotFound) {
			log.Printf("sync %s: list docs failed: %v", projectID, err)
		}
		docs = nil
	}

	phases = crosslink.Enrich(phases, issues, docs)
	crosslink.RewriteLocalDocURLs(phases, project.RepoURL)

	stats, err := s.store.ReconcileProjectTree(ctx, projectID, phasesToInputs(phases))
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchProjectSynced(ctx, projectID); err != nil {
		return nil, err
	}

	if s.snap != nil {
		message := fmt.Sprintf("sync from %s", project.RepoFullName)
		if _, err := s.snap.RecordSnapshot(projectID, document, session.UserName, message); err != nil {
			log.Printf("sync %s: snapshot failed: %v", projectID, err)
		}
	}
	s.reindexProjectTasks(ctx, projectID, stats.DeletedIDs)

	return map[string]any{
		"projectId": projectID,
		"phases":    stats.Phases,
		"tasks":     stats.Tasks,
		"subtasks":  stats.Subtasks,
		"documents": stats.Documents,
		"deleted":   stats.Deleted,
	}, nil
}

func (s *Service) reindexProjectTasks(ctx context.Context, projectID string, deletedIDs []string) {
	if s.search == nil {
		return
	}
	s.search.DeleteTasks(deletedIDs)

	tasks, err := s.store.ListProjectTasks(ctx, projectID)
	if err != nil {
		log.Printf("search: load tasks for %s: %v", projectID, err)
		return
	}
	records := make([]search.TaskRecord, 0, len(tasks))
	for _, task := range tasks {
		records = append(records, search.TaskRecord{
			ID:          task.ID,
			Title:       task.Title,
			Objective:   task.Objective,
			Description: task.Description,
			Status:      task.Status,
			ProjectID:   task.ProjectID,
		})
	}
	s.search.IndexTasks(records)
}

// HandleIssueEvent projects a GitHub issues webhook event onto the linked
// task's status. Unknown repos, issues and actions are no-ops.
func (s *Service) HandleIssueEvent(ctx context.Context, event ghub.IssueEvent) error {
	status, ok := statusForIssueAction(event.Action)
	if !ok {
		return nil
	}

	project, err := s.projectForRepo(ctx, event.RepoID, event.RepoFullName)
	if err != nil {
		log.Printf("webhook: no project for repo %s (%d)", event.RepoFullName, event.RepoID)
		return nil
	}

	task, err := s.store.GetTaskByIssueNumber(ctx, project.ID, event.IssueNumber)
	if err != nil {
		log.Printf("webhook: no task for issue #%d in project %s", event.IssueNumber, project.ID)
		return nil
	}

	changed, err := s.store.UpdateTaskStatusIfChanged(ctx, task.ID, status)
	if err != nil {
		return err
	}
	if changed {
		log.Printf("webhook: task %s status -> %s (issue #%d %s)", task.ID, status, event.IssueNumber, event.Action)
	}
	return nil
}

// HandleCommentEvent stores a GitHub issue comment on the linked task.
// Redelivered events are deduplicated by the GitHub comment id.
func (s *Service) HandleCommentEvent(ctx context.Context, event ghub.CommentEvent) error {
	if event.Action != "created" {
		return nil
	}

	project, err := s.projectForRepo(ctx, event.RepoID, event.RepoFullName)
	if err != nil {
		log.Printf("webhook: no project for repo %s (%d)", event.RepoFullName, event.RepoID)
		return nil
	}

	task, err := s.store.GetTaskByIssueNumber(ctx, project.ID, event.IssueNumber)
	if err != nil {
		log.Printf("webhook: no task for issue #%d in project %s", event.IssueNumber, project.ID)
		return nil
	}

	commentID := event.CommentID
	inserted, err := s.store.UpsertTaskComment(ctx, store.TaskComment{
		TaskID:          task.ID,
		Author:          event.Author,
		Content:         event.Body,
		GitHubCommentID: &commentID,
	})
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("webhook: duplicate comment %d on task %s ignored", commentID, task.ID)
	}
	return nil
}

func (s *Service) projectForRepo(ctx context.Context, repoID int64, repoFullName string) (store.Project, error) {
	if repoID != 0 {
		if project, err := s.store.GetProjectByRepoID(ctx, repoID); err == nil {
			return project, nil
		}
	}
	return s.store.GetProjectByRepoFullName(ctx, repoFullName)
}

func (s *Service) GetTask(ctx context.Context, taskID string) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskPayload(task), nil
}

// UpdateTask patches task fields. A status change on an issue-linked task is
// written back to GitHub, best effort.
func (s *Service) UpdateTask(ctx context.Context, session Session, taskID string, input UpdateTaskInput) (map[string]any, error) {
	if input.Status != nil {
		normalized := taskdoc.NormalizeStatus(*input.Status)
		if !taskdoc.IsCanonicalStatus(normalized) {
			return nil, validationError("invalid status")
		}
		input.Status = &normalized
	}
	if input.Hours != nil && *input.Hours < 0 {
		return nil, validationError("hours must not be negative")
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateTaskFields(ctx, taskID, store.TaskPatch{
		Title:     input.Title,
		Objective: input.Objective,
		Status:    input.Status,
		Hours:     input.Hours,
		Branch:    input.Branch,
	}); err != nil {
		return nil, err
	}

	if input.Status != nil && *input.Status != task.Status && task.GitHubIssueNumber != nil {
		s.pushStatusToGitHub(ctx, session, task, *input.Status)
	}

	updated, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexTasks([]search.TaskRecord{{
			ID:          updated.ID,
			Title:       updated.Title,
			Objective:   updated.Objective,
			Description: updated.Description,
			Status:      updated.Status,
			ProjectID:   updated.ProjectID,
		}})
	}
	return taskPayload(updated), nil
}

func (s *Service) pushStatusToGitHub(ctx context.Context, session Session, task store.Task, status string) {
	project, err := s.store.GetProject(ctx, task.ProjectID)
	if err != nil || project.RepoFullName == "" {
		return
	}

	gh := s.githubFor(ctx, session)
	issueNumber := *task.GitHubIssueNumber

	state := "open"
	if status == taskdoc.StatusDone {
		state = "closed"
	}
	if err := gh.SetIssueState(ctx, project.RepoFullName, issueNumber, state); err != nil {
		log.Printf("task %s: set issue #%d state %s failed: %v", task.ID, issueNumber, state, err)
		return
	}
	comment := fmt.Sprintf("Status changed to %s by %s via TaskPilot.", status, session.UserName)
	if err := gh.CreateIssueComment(ctx, project.RepoFullName, issueNumber, comment); err != nil {
		log.Printf("task %s: comment on issue #%d failed: %v", task.ID, issueNumber, err)
	}
}

// GenerateBreakdown asks the AI planner for a draft TASKS.md and returns it
// with a parsed preview. Nothing is persisted; the caller reviews the draft
// and commits it to the repository.
func (s *Service) GenerateBreakdown(ctx context.Context, projectID string, input BreakdownInput) (map[string]any, error) {
	if s.planner == nil {
		return nil, unavailableError("PLANNER_UNAVAILABLE", "AI planner is not configured")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, validationError("description is required")
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	document, err := s.planner.BreakdownDocument(ctx, project.Name, input.Description)
	if err != nil {
		return nil, fmt.Errorf("generate breakdown: %w", err)
	}

	phases := taskdoc.Parse(document)
	preview := make([]map[string]any, 0, len(phases))
	for _, phase := range phases {
		preview = append(preview, map[string]any{
			"title":  phase.Title,
			"status": phase.Status,
			"tasks":  len(phase.Tasks),
		})
	}

	return map[string]any{
		"projectId": projectID,
		"document":  document,
		"phases":    preview,
	}, nil
}

func (s *Service) ProjectSnapshots(ctx context.Context, projectID string, limit int) (map[string]any, error) {
	if s.snap == nil {
		return nil, unavailableError("SNAPSHOTS_UNAVAILABLE", "snapshot history is not configured")
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	commits, err := s.snap.History(projectID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, map[string]any{
			"hash":      commit.Hash,
			"message":   strings.TrimSpace(commit.Message),
			"author":    commit.Author,
			"createdAt": commit.CreatedAt,
		})
	}
	return map[string]any{"projectId": projectID, "snapshots": items}, nil
}

func (s *Service) ProjectSnapshotContent(ctx context.Context, projectID, hash string) (map[string]any, error) {
	if s.snap == nil {
		return nil, unavailableError("SNAPSHOTS_UNAVAILABLE", "snapshot history is not configured")
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	content, err := s.snap.SnapshotContent(projectID, hash)
	if err != nil {
		return nil, notFoundError("snapshot not found")
	}
	return map[string]any{"projectId": projectID, "hash": hash, "document": content}, nil
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// githubFor returns a client authenticated as the session's user when they
// have a stored token, falling back to the service token.
func (s *Service) githubFor(ctx context.Context, session Session) githubClient {
	tc, ok := s.github.(interface {
		WithToken(token string) *ghub.Client
	})
	if !ok || session.UserID == "" {
		return s.github
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil || user.GitHubToken == "" {
		return s.github
	}
	return tc.WithToken(user.GitHubToken)
}

// statusForIssueAction maps webhook issue actions onto canonical statuses.
func statusForIssueAction(action string) (string, bool) {
	switch action {
	case "closed":
		return taskdoc.StatusDone, true
	case "reopened":
		return taskdoc.StatusInProgress, true
	case "opened":
		return taskdoc.StatusPending, true
	}
	return "", false
}

func phasesToInputs(phases []taskdoc.Phase) []store.TaskInput {
	inputs := make([]store.TaskInput, 0, len(phases))
	for _, phase := range phases {
		input := store.TaskInput{
			Title:  phase.Title,
			Status: phase.Status,
			Hours:  phase.Hours,
			Branch: phase.Branch,
		}
		for _, task := range phase.Tasks {
			input.Children = append(input.Children, taskToInput(task))
		}
		inputs = append(inputs, input)
	}
	return inputs
}

func taskToInput(task taskdoc.Task) store.TaskInput {
	input := store.TaskInput{
		Title:       task.Title,
		Status:      task.Status,
		Hours:       task.Hours,
		Branch:      task.Branch,
		Objective:   task.Objective,
		Description: task.Description,
		AIPrompt:    task.AIPrompt,
	}
	for _, doc := range task.Documents {
		input.Documents = append(input.Documents, store.DocumentInput{
			Title: doc.Title,
			URL:   doc.URL,
			Type:  doc.Type,
		})
	}
	for _, sub := range task.Subtasks {
		child := store.TaskInput{
			Title:  sub.Title,
			Status: sub.Status,
		}
		if sub.IssueNumber > 0 {
			issueNumber := sub.IssueNumber
			child.GitHubIssueNumber = &issueNumber
		}
		input.Children = append(input.Children, child)
	}
	return input
}

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":           project.ID,
		"name":         project.Name,
		"repoFullName": project.RepoFullName,
		"repoUrl":      project.RepoURL,
		"githubRepoId": project.GitHubRepoID,
		"createdBy":    project.CreatedBy,
		"lastSyncedAt": project.LastSyncedAt,
		"createdAt":    project.CreatedAt,
		"updatedAt":    project.UpdatedAt,
	}
}

func taskPayload(task store.Task) map[string]any {
	return map[string]any{
		"id":                task.ID,
		"projectId":         task.ProjectID,
		"parentId":          task.ParentID,
		"level":             task.Level,
		"slug":              task.Slug,
		"title":             task.Title,
		"status":            task.Status,
		"hours":             task.Hours,
		"branch":            task.Branch,
		"githubIssueNumber": task.GitHubIssueNumber,
		"sortOrder":         task.SortOrder,
		"objective":         task.Objective,
		"description":       task.Description,
		"aiPrompt":          task.AIPrompt,
		"createdAt":         task.CreatedAt,
		"updatedAt":         task.UpdatedAt,
	}
}

func treeNodePayload(node store.TaskTreeNode) map[string]any {
	payload := taskPayload(node.Task)

	documents := make([]map[string]any, 0, len(node.Documents))
	for _, doc := range node.Documents {
		documents = append(documents, map[string]any{
			"id":    doc.ID,
			"title": doc.Title,
			"url":   doc.URL,
			"type":  doc.Type,
		})
	}
	payload["documents"] = documents

	comments := make([]map[string]any, 0, len(node.Comments))
	for _, comment := range node.Comments {
		comments = append(comments, map[string]any{
			"id":              comment.ID,
			"author":          comment.Author,
			"content":         comment.Content,
			"githubCommentId": comment.GitHubCommentID,
			"createdAt":       comment.CreatedAt,
		})
	}
	payload["comments"] = comments

	children := make([]map[string]any, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, treeNodePayload(child))
	}
	payload["children"] = children
	return payload
}
