package crosslink

import (
	"testing"

	"taskpilot/api/internal/ghub"
	"taskpilot/api/internal/taskdoc"
)

func forestWithTask(task taskdoc.Task) []taskdoc.Phase {
	return []taskdoc.Phase{{
		Title:  "Phase 1: Setup",
		Status: taskdoc.StatusPending,
		Tasks:  []taskdoc.Task{task},
	}}
}

func TestEnrichAttachesIssueByLabel(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{Title: "Login flow", Branch: "feature/login"})
	issues := []ghub.Issue{
		{Number: 12, Title: "Broken redirect", State: "open", Labels: []string{"Feature/Login"}},
		{Number: 13, Title: "Unrelated", State: "open", Labels: []string{"infra"}},
	}

	phases = Enrich(phases, issues, nil)

	subtasks := phases[0].Tasks[0].Subtasks
	if len(subtasks) != 1 {
		t.Fatalf("got %d subtasks, expected 1", len(subtasks))
	}
	if subtasks[0].Title != "GitHub Issue #12: Broken redirect" {
		t.Errorf("unexpected subtask title %q", subtasks[0].Title)
	}
	if subtasks[0].Status != taskdoc.StatusPending {
		t.Errorf("unexpected status %q", subtasks[0].Status)
	}
	if subtasks[0].IssueNumber != 12 {
		t.Errorf("unexpected issue number %d", subtasks[0].IssueNumber)
	}
}

func TestEnrichAttachesIssueByTitleSubstring(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{Title: "Setup CI"})
	issues := []ghub.Issue{{Number: 3, Title: "Flaky setup ci pipeline", State: "closed"}}

	phases = Enrich(phases, issues, nil)

	subtasks := phases[0].Tasks[0].Subtasks
	if len(subtasks) != 1 {
		t.Fatalf("got %d subtasks, expected 1", len(subtasks))
	}
	if subtasks[0].Status != taskdoc.StatusDone {
		t.Errorf("closed issue should be DONE, got %q", subtasks[0].Status)
	}
}

func TestEnrichSkipsIssuesAlreadyInChecklist(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{
		Title: "Setup CI",
		Subtasks: []taskdoc.Subtask{
			{Title: "Fix #3 before merging", Status: taskdoc.StatusPending},
		},
	})
	issues := []ghub.Issue{{Number: 3, Title: "Setup CI is flaky", State: "open"}}

	phases = Enrich(phases, issues, nil)

	if got := len(phases[0].Tasks[0].Subtasks); got != 1 {
		t.Fatalf("got %d subtasks, expected checklist entry only", got)
	}
}

func TestEnrichAttachesMatchingDocs(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{Title: "Setup CI"})
	docs := []ghub.RepoFile{
		{Name: "setup-ci.md", HTMLURL: "https://github.com/acme/widgets/blob/main/docs/setup-ci.md"},
		{Name: "deploy_guide.md", HTMLURL: "https://github.com/acme/widgets/blob/main/docs/deploy_guide.md"},
	}

	phases = Enrich(phases, nil, docs)

	taskDocs := phases[0].Tasks[0].Documents
	if len(taskDocs) != 1 || taskDocs[0].Title != "setup-ci.md" {
		t.Fatalf("unexpected task documents %+v", taskDocs)
	}

	// The unmatched file lands in the synthetic catch-all phase.
	last := phases[len(phases)-1]
	if last.Title != "Documentation & Resources" {
		t.Fatalf("expected docs phase, got %q", last.Title)
	}
	if len(last.Tasks) != 1 || last.Tasks[0].Title != "Repository Wiki & Docs" {
		t.Fatalf("unexpected docs phase tasks %+v", last.Tasks)
	}
	leftovers := last.Tasks[0].Documents
	if len(leftovers) != 1 || leftovers[0].Title != "deploy_guide.md" {
		t.Errorf("unexpected leftover docs %+v", leftovers)
	}
}

func TestEnrichNoDocsPhaseWhenAllAssigned(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{Title: "Setup CI"})
	docs := []ghub.RepoFile{
		{Name: "setup-ci.md", HTMLURL: "https://github.com/acme/widgets/blob/main/docs/setup-ci.md"},
	}

	phases = Enrich(phases, nil, docs)

	if got := len(phases); got != 1 {
		t.Fatalf("got %d phases, expected no synthetic phase", got)
	}
}

func TestEnrichWithoutGitHubDataPassesThrough(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{Title: "Setup CI"})

	phases = Enrich(phases, nil, nil)

	if len(phases) != 1 {
		t.Fatalf("got %d phases", len(phases))
	}
	task := phases[0].Tasks[0]
	if len(task.Subtasks) != 0 || len(task.Documents) != 0 {
		t.Errorf("forest was modified without GitHub data: %+v", task)
	}
}

func TestEnrichDoesNotDuplicateExistingDocumentName(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{
		Title: "Setup CI",
		Documents: []taskdoc.DocumentLink{
			{Title: "Setup-CI.md", URL: "https://example.com/setup-ci", Type: "markdown"},
		},
	})
	docs := []ghub.RepoFile{
		{Name: "setup-ci.md", HTMLURL: "https://github.com/acme/widgets/blob/main/docs/setup-ci.md"},
	}

	phases = Enrich(phases, nil, docs)

	if got := len(phases[0].Tasks[0].Documents); got != 1 {
		t.Errorf("got %d documents, expected existing entry only", got)
	}
	if got := len(phases); got != 1 {
		t.Errorf("matched doc should not reappear in a synthetic phase, got %d phases", got)
	}
}

func TestRewriteLocalDocURLs(t *testing.T) {
	phases := forestWithTask(taskdoc.Task{
		Title: "Setup CI",
		Documents: []taskdoc.DocumentLink{
			{Title: "runner.md", URL: "file:///home/dev/project/docs/runner.md"},
			{Title: "README.md", URL: "file:///home/dev/project/README.md"},
			{Title: "remote", URL: "https://example.com/guide"},
		},
	})

	RewriteLocalDocURLs(phases, "https://github.com/acme/widgets/")

	docs := phases[0].Tasks[0].Documents
	if docs[0].URL != "https://github.com/acme/widgets/blob/main/docs/runner.md" {
		t.Errorf("docs path rewrite = %q", docs[0].URL)
	}
	if docs[1].URL != "https://github.com/acme/widgets/blob/main/README.md" {
		t.Errorf("root path rewrite = %q", docs[1].URL)
	}
	if docs[2].URL != "https://example.com/guide" {
		t.Errorf("remote URL should be untouched, got %q", docs[2].URL)
	}
}
