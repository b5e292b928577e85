// Package taskdoc parses TASKS.md planning documents into a phase/task/subtask
// forest. Parsing is pure: no I/O, no persistence.
package taskdoc

import "strings"

// Canonical task statuses. Every producer (document tables, checklists,
// webhook events, API edits) is normalized onto this set.
const (
	StatusPending       = "PENDING"
	StatusInProgress    = "IN PROGRESS"
	StatusWaitingReview = "WAITING FOR REVIEW"
	StatusDone          = "DONE"
)

type Phase struct {
	Title  string
	Status string
	Hours  int
	Branch string
	Tasks  []Task
}

type Task struct {
	Title       string
	Status      string
	Hours       int
	Branch      string
	Detail      string
	Objective   string
	Description string
	AIPrompt    string
	Subtasks    []Subtask
	Documents   []DocumentLink
}

type Subtask struct {
	Title       string
	Status      string
	IssueNumber int
}

type DocumentLink struct {
	Title string
	URL   string
	Type  string
}

// refinement is the transient `#### <Title>` block joined to a task row by
// title. It is folded into the Task during parsing and never persisted.
type refinement struct {
	title       string
	description string
	prompt      string
	issues      []checklistItem
	documents   []DocumentLink
}

type checklistItem struct {
	text string
	done bool
}

// NormalizeStatus maps freeform status spellings onto the canonical set.
// Unknown values fall back to PENDING.
func NormalizeStatus(raw string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	cleaned = strings.ReplaceAll(cleaned, "-", " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	switch cleaned {
	case StatusPending, "TODO", "TO DO", "OPEN", "NOT STARTED", "":
		return StatusPending
	case StatusInProgress, "WIP", "ACTIVE", "STARTED":
		return StatusInProgress
	case StatusWaitingReview, "IN REVIEW", "REVIEW", "WAITING REVIEW":
		return StatusWaitingReview
	case StatusDone, "CLOSED", "COMPLETE", "COMPLETED", "FINISHED":
		return StatusDone
	}
	return StatusPending
}

// IsCanonicalStatus reports whether value is one of the four canonical states.
func IsCanonicalStatus(value string) bool {
	switch value {
	case StatusPending, StatusInProgress, StatusWaitingReview, StatusDone:
		return true
	}
	return false
}
