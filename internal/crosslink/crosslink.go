// Package crosslink enriches a parsed task forest with live GitHub state:
// matched issues become subtasks, docs-folder files become task documents.
package crosslink

import (
	"fmt"
	"strings"

	"taskpilot/api/internal/ghub"
	"taskpilot/api/internal/taskdoc"
)

const (
	docsPhaseTitle = "Documentation & Resources"
	docsTaskTitle  = "Repository Wiki & Docs"
)

// Enrich attaches matched issues and docs-folder files to the forest in place
// and returns it. Either slice may be nil when the corresponding fetch failed;
// the forest then passes through untouched for that source.
func Enrich(phases []taskdoc.Phase, issues []ghub.Issue, docs []ghub.RepoFile) []taskdoc.Phase {
	assignedDocs := make(map[string]bool)

	for pi := range phases {
		for ti := range phases[pi].Tasks {
			task := &phases[pi].Tasks[ti]
			attachIssues(task, issues)
			for _, doc := range docs {
				if !docMatchesTask(doc.Name, task) {
					continue
				}
				assignedDocs[doc.HTMLURL] = true
				if hasDocumentNamed(task.Documents, doc.Name) {
					continue
				}
				task.Documents = append(task.Documents, taskdoc.DocumentLink{
					Title: doc.Name,
					URL:   doc.HTMLURL,
					Type:  "markdown",
				})
			}
		}
	}

	if len(docs) > 0 {
		if phase := buildDocsPhase(phases, docs, assignedDocs); phase != nil {
			phases = append(phases, *phase)
		}
	}
	return phases
}

func attachIssues(task *taskdoc.Task, issues []ghub.Issue) {
	for _, issue := range issues {
		if !issueMatchesTask(issue, task) {
			continue
		}
		if issueInChecklist(task.Subtasks, issue) {
			continue
		}
		status := taskdoc.StatusPending
		if strings.EqualFold(issue.State, "closed") {
			status = taskdoc.StatusDone
		}
		task.Subtasks = append(task.Subtasks, taskdoc.Subtask{
			Title:       fmt.Sprintf("GitHub Issue #%d: %s", issue.Number, issue.Title),
			Status:      status,
			IssueNumber: issue.Number,
		})
	}
}

func issueMatchesTask(issue ghub.Issue, task *taskdoc.Task) bool {
	for _, label := range issue.Labels {
		if task.Branch != "" && strings.EqualFold(label, task.Branch) {
			return true
		}
		if strings.EqualFold(label, task.Title) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(issue.Title), strings.ToLower(task.Title))
}

// issueInChecklist reports whether the refinement checklist already mentions
// the issue, by number reference or by title.
func issueInChecklist(subtasks []taskdoc.Subtask, issue ghub.Issue) bool {
	numberRef := fmt.Sprintf("#%d", issue.Number)
	title := strings.ToLower(issue.Title)
	for _, sub := range subtasks {
		if sub.IssueNumber == issue.Number {
			return true
		}
		text := strings.ToLower(sub.Title)
		if strings.Contains(text, numberRef) || strings.Contains(text, title) {
			return true
		}
	}
	return false
}

// docMatchesTask compares the file name against the task title and branch
// after normalizing word separators, so "setup-ci.md" references "Setup CI".
func docMatchesTask(fileName string, task *taskdoc.Task) bool {
	name := normalizeDocName(fileName)
	if title := normalizeDocName(task.Title); title != "" && strings.Contains(name, title) {
		return true
	}
	if branch := normalizeDocName(task.Branch); branch != "" && strings.Contains(name, branch) {
		return true
	}
	return false
}

func normalizeDocName(s string) string {
	s = strings.ToLower(s)
	if dot := strings.LastIndex(s, "."); dot > 0 {
		s = s[:dot]
	}
	var b strings.Builder
	lastSep := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func hasDocumentNamed(documents []taskdoc.DocumentLink, name string) bool {
	for _, doc := range documents {
		if strings.EqualFold(doc.Title, name) {
			return true
		}
	}
	return false
}

// buildDocsPhase collects every docs-folder file not matched to a task into a
// synthetic catch-all phase. URLs already present anywhere in the forest are
// skipped. Returns nil when everything was assigned.
func buildDocsPhase(phases []taskdoc.Phase, docs []ghub.RepoFile, assigned map[string]bool) *taskdoc.Phase {
	knownURLs := make(map[string]bool)
	for _, phase := range phases {
		for _, task := range phase.Tasks {
			for _, doc := range task.Documents {
				knownURLs[doc.URL] = true
			}
		}
	}

	var leftovers []taskdoc.DocumentLink
	for _, doc := range docs {
		if assigned[doc.HTMLURL] || knownURLs[doc.HTMLURL] {
			continue
		}
		knownURLs[doc.HTMLURL] = true
		leftovers = append(leftovers, taskdoc.DocumentLink{
			Title: doc.Name,
			URL:   doc.HTMLURL,
			Type:  "markdown",
		})
	}
	if len(leftovers) == 0 {
		return nil
	}

	return &taskdoc.Phase{
		Title:  docsPhaseTitle,
		Status: taskdoc.StatusPending,
		Tasks: []taskdoc.Task{{
			Title:     docsTaskTitle,
			Status:    taskdoc.StatusPending,
			Documents: leftovers,
		}},
	}
}

// RewriteLocalDocURLs replaces file:// document URLs with GitHub blob URLs
// under the given repository page URL. Paths that mention a docs directory
// land under blob/main/docs, everything else under blob/main.
func RewriteLocalDocURLs(phases []taskdoc.Phase, repoHTMLURL string) {
	base := strings.TrimSuffix(repoHTMLURL, "/")
	if base == "" {
		return
	}
	for pi := range phases {
		for ti := range phases[pi].Tasks {
			docs := phases[pi].Tasks[ti].Documents
			for di := range docs {
				url := docs[di].URL
				if !strings.HasPrefix(url, "file://") {
					continue
				}
				path := strings.TrimPrefix(url, "file://")
				name := path
				if slash := strings.LastIndex(path, "/"); slash >= 0 {
					name = path[slash+1:]
				}
				if strings.Contains(path, "/docs/") {
					docs[di].URL = base + "/blob/main/docs/" + name
				} else {
					docs[di].URL = base + "/blob/main/" + name
				}
			}
		}
	}
}
