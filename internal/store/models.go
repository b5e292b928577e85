package store

import "time"

type User struct {
	ID          string
	DisplayName string
	GitHubLogin string
	GitHubToken string
	CreatedAt   time.Time
}

type Project struct {
	ID           string
	Name         string
	RepoFullName string
	RepoURL      string
	GitHubRepoID int64
	CreatedBy    string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Task is one node of the project tree. Level 0 is a phase, level 1 a task,
// level 2 a subtask. Slug is the stable reconciliation key derived from the
// node's title path; it survives resyncs so ids, comments and issue links do.
type Task struct {
	ID                string
	ProjectID         string
	ParentID          *string
	Level             int
	Slug              string
	Title             string
	Status            string
	Hours             int
	Branch            string
	GitHubIssueNumber *int
	SortOrder         int
	Objective         string
	Description       string
	AIPrompt          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type TaskDocument struct {
	ID        string
	TaskID    string
	Title     string
	URL       string
	Type      string
	CreatedAt time.Time
}

type TaskComment struct {
	ID              string
	TaskID          string
	Author          string
	Content         string
	GitHubCommentID *int64
	CreatedAt       time.Time
}

// TaskTreeNode is a task with its children and documents resolved, for API
// responses.
type TaskTreeNode struct {
	Task
	Documents []TaskDocument
	Comments  []TaskComment
	Children  []TaskTreeNode
}

// TaskInput is one node of a parsed forest headed for reconciliation.
type TaskInput struct {
	Title             string
	Status            string
	Hours             int
	Branch            string
	Objective         string
	Description       string
	AIPrompt          string
	GitHubIssueNumber *int
	Documents         []DocumentInput
	Children          []TaskInput
}

type DocumentInput struct {
	Title string
	URL   string
	Type  string
}

// ReconcileStats summarizes one reconciliation run.
type ReconcileStats struct {
	Phases    int
	Tasks     int
	Subtasks  int
	Documents int
	Deleted   int
	// DeletedIDs lists the removed task ids so downstream indexes can evict
	// them.
	DeletedIDs []string
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type TaskPatch struct {
	Title     *string
	Objective *string
	Status    *string
	Hours     *int
	Branch    *string
}
