package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskpilot/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, github_login, github_token FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.GitHubLogin, &user.GitHubToken)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	user = User{ID: util.NewID("usr"), DisplayName: name}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (display_name) DO NOTHING
	`, user.ID, user.DisplayName); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.GitHubLogin, &user.GitHubToken); err != nil {
		return User{}, fmt.Errorf("reload user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, github_login, github_token FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.GitHubLogin, &user.GitHubToken)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SetUserGitHubToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET github_token=$2 WHERE id=$1`, userID, token)
	if err != nil {
		return fmt.Errorf("set github token: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.github_login, u.github_token
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.GitHubLogin, &user.GitHubToken)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, repo_full_name, repo_url, github_repo_id, created_by, last_synced_at, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.RepoFullName, &item.RepoURL, &item.GitHubRepoID, &item.CreatedBy, &item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, repo_full_name, repo_url, github_repo_id, created_by, last_synced_at, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.RepoFullName, &item.RepoURL, &item.GitHubRepoID, &item.CreatedBy, &item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetProjectByRepoFullName(ctx context.Context, repoFullName string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, repo_full_name, repo_url, github_repo_id, created_by, last_synced_at, created_at, updated_at
		FROM projects
		WHERE repo_full_name=$1
	`, repoFullName).Scan(&item.ID, &item.Name, &item.RepoFullName, &item.RepoURL, &item.GitHubRepoID, &item.CreatedBy, &item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetProjectByRepoID(ctx context.Context, githubRepoID int64) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, repo_full_name, repo_url, github_repo_id, created_by, last_synced_at, created_at, updated_at
		FROM projects
		WHERE github_repo_id=$1
	`, githubRepoID).Scan(&item.ID, &item.Name, &item.RepoFullName, &item.RepoURL, &item.GitHubRepoID, &item.CreatedBy, &item.LastSyncedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, repo_full_name, repo_url, github_repo_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, project.ID, project.Name, project.RepoFullName, project.RepoURL, project.GitHubRepoID, project.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchProjectSynced(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET last_synced_at=NOW(), updated_at=NOW() WHERE id=$1
	`, projectID)
	if err != nil {
		return fmt.Errorf("touch project synced: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, taskSelect+` WHERE id=$1`, taskID).Scan(taskFields(&item)...)
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetTaskByIssueNumber(ctx context.Context, projectID string, issueNumber int) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, taskSelect+` WHERE project_id=$1 AND github_issue_number=$2`, projectID, issueNumber).Scan(taskFields(&item)...)
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

const taskSelect = `
	SELECT id, project_id, parent_id, level, slug, title, status, hours, branch,
		github_issue_number, sort_order, objective, description, ai_prompt, created_at, updated_at
	FROM tasks`

func taskFields(item *Task) []any {
	return []any{
		&item.ID, &item.ProjectID, &item.ParentID, &item.Level, &item.Slug, &item.Title,
		&item.Status, &item.Hours, &item.Branch, &item.GitHubIssueNumber, &item.SortOrder,
		&item.Objective, &item.Description, &item.AIPrompt, &item.CreatedAt, &item.UpdatedAt,
	}
}

func (s *PostgresStore) ListProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+`
		WHERE project_id=$1
		ORDER BY level ASC, sort_order ASC, title ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		if err := rows.Scan(taskFields(&item)...); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// GetTaskTree returns the project's phases with nested tasks, subtasks and
// documents, in sort order.
func (s *PostgresStore) GetTaskTree(ctx context.Context, projectID string) ([]TaskTreeNode, error) {
	tasks, err := s.ListProjectTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	documents, err := s.listProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	comments, err := s.listProjectComments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*TaskTreeNode, len(tasks))
	order := make([]string, 0, len(tasks))
	for _, task := range tasks {
		nodes[task.ID] = &TaskTreeNode{Task: task}
		order = append(order, task.ID)
	}
	for _, doc := range documents {
		if node, ok := nodes[doc.TaskID]; ok {
			node.Documents = append(node.Documents, doc)
		}
	}
	for _, comment := range comments {
		if node, ok := nodes[comment.TaskID]; ok {
			node.Comments = append(node.Comments, comment)
		}
	}

	// Children attach deepest-first so phase nodes end up complete. Tasks are
	// already sorted by level then sort_order.
	roots := make([]TaskTreeNode, 0)
	for i := len(order) - 1; i >= 0; i-- {
		node := nodes[order[i]]
		if node.ParentID == nil {
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			continue
		}
		parent.Children = append([]TaskTreeNode{*node}, parent.Children...)
	}
	for _, id := range order {
		node := nodes[id]
		if node.ParentID == nil {
			roots = append(roots, *node)
		}
	}
	return roots, nil
}

func (s *PostgresStore) listProjectDocuments(ctx context.Context, projectID string) ([]TaskDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.task_id, d.title, d.url, d.doc_type, d.created_at
		FROM task_documents d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.project_id=$1
		ORDER BY d.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}
	defer rows.Close()

	items := make([]TaskDocument, 0)
	for rows.Next() {
		var item TaskDocument
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Title, &item.URL, &item.Type, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) listProjectComments(ctx context.Context, projectID string) ([]TaskComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.author, c.content, c.github_comment_id, c.created_at
		FROM task_comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.project_id=$1
		ORDER BY c.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project comments: %w", err)
	}
	defer rows.Close()

	items := make([]TaskComment, 0)
	for rows.Next() {
		var item TaskComment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Author, &item.Content, &item.GitHubCommentID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task comments: %w", err)
	}
	return items, nil
}

// UpdateTaskStatusIfChanged writes the new status only when it differs from
// the current one, leaving updated_at untouched on a no-op.
func (s *PostgresStore) UpdateTaskStatusIfChanged(ctx context.Context, taskID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status=$2, updated_at=NOW()
		WHERE id=$1 AND status <> $2
	`, taskID, status)
	if err != nil {
		return false, fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task status rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateTaskFields(ctx context.Context, taskID string, patch TaskPatch) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = COALESCE($2, title),
			objective = COALESCE($3, objective),
			status = COALESCE($4, status),
			hours = COALESCE($5, hours),
			branch = COALESCE($6, branch),
			updated_at = NOW()
		WHERE id=$1
	`, taskID, patch.Title, patch.Objective, patch.Status, patch.Hours, patch.Branch)
	if err != nil {
		return fmt.Errorf("update task fields: %w", err)
	}
	return nil
}

// UpsertTaskComment inserts a comment unless one with the same GitHub comment
// id already exists, making duplicate webhook delivery idempotent.
func (s *PostgresStore) UpsertTaskComment(ctx context.Context, comment TaskComment) (bool, error) {
	if comment.ID == "" {
		comment.ID = util.NewID("cmt")
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, author, content, github_comment_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (github_comment_id) WHERE github_comment_id IS NOT NULL DO NOTHING
	`, comment.ID, comment.TaskID, comment.Author, comment.Content, comment.GitHubCommentID)
	if err != nil {
		return false, fmt.Errorf("upsert task comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert task comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertTaskDocument(ctx context.Context, doc TaskDocument) error {
	if doc.ID == "" {
		doc.ID = util.NewID("doc")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_documents (id, task_id, title, url, doc_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id, url) DO NOTHING
	`, doc.ID, doc.TaskID, doc.Title, doc.URL, doc.Type)
	if err != nil {
		return fmt.Errorf("insert task document: %w", err)
	}
	return nil
}
