package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskpilot/api/internal/util"
)

// reconcileTimeout bounds the reconciliation transaction. The body runs many
// sequential statements, so the ceiling is generous.
const reconcileTimeout = 60 * time.Second

// ReconcileProjectTree replaces the project's task tree with the given forest
// inside a single transaction. Nodes are matched by a slug derived from their
// title path, so ids, comments, documents and issue links survive resyncs;
// nodes whose slug is not produced by this run are deleted (cascading their
// documents and comments). A failure rolls the whole run back, leaving the
// previous tree intact.
func (s *PostgresStore) ReconcileProjectTree(ctx context.Context, projectID string, phases []TaskInput) (ReconcileStats, error) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := loadSlugIndex(ctx, tx, projectID)
	if err != nil {
		return ReconcileStats{}, err
	}

	stats := ReconcileStats{}
	seen := make(map[string]struct{})
	slugs := newSlugSet()
	for i, phase := range phases {
		if err := upsertNode(ctx, tx, projectID, nil, "", 0, i, phase, existing, seen, slugs, &stats); err != nil {
			return ReconcileStats{}, err
		}
	}

	for slug, id := range existing {
		if _, ok := seen[slug]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id); err != nil {
			return ReconcileStats{}, fmt.Errorf("delete stale task %s: %w", slug, err)
		}
		stats.Deleted++
		stats.DeletedIDs = append(stats.DeletedIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return ReconcileStats{}, fmt.Errorf("commit reconcile tx: %w", err)
	}
	return stats, nil
}

func loadSlugIndex(ctx context.Context, tx *sql.Tx, projectID string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT slug, id FROM tasks WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("load slug index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var slug, id string
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("scan slug index: %w", err)
		}
		index[slug] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slug index: %w", err)
	}
	return index, nil
}

func upsertNode(ctx context.Context, tx *sql.Tx, projectID string, parentID *string, parentSlug string, level, order int, node TaskInput, existing map[string]string, seen map[string]struct{}, slugs *slugSet, stats *ReconcileStats) error {
	slug := slugs.claim(parentSlug, node.Title)
	seen[slug] = struct{}{}

	id, known := existing[slug]
	if known {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET
				parent_id=$2, level=$3, title=$4, status=$5, hours=$6, branch=$7,
				github_issue_number=COALESCE($8, github_issue_number),
				sort_order=$9, objective=$10, description=$11, ai_prompt=$12,
				updated_at=NOW()
			WHERE id=$1
		`, id, parentID, level, node.Title, node.Status, node.Hours, node.Branch,
			node.GitHubIssueNumber, order, node.Objective, node.Description, node.AIPrompt); err != nil {
			return fmt.Errorf("update task %s: %w", slug, err)
		}
	} else {
		id = util.NewID("tsk")
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, parent_id, level, slug, title, status, hours, branch,
				github_issue_number, sort_order, objective, description, ai_prompt)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, id, projectID, parentID, level, slug, node.Title, node.Status, node.Hours, node.Branch,
			node.GitHubIssueNumber, order, node.Objective, node.Description, node.AIPrompt); err != nil {
			return fmt.Errorf("insert task %s: %w", slug, err)
		}
	}

	switch level {
	case 0:
		stats.Phases++
	case 1:
		stats.Tasks++
	default:
		stats.Subtasks++
	}

	for _, doc := range node.Documents {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO task_documents (id, task_id, title, url, doc_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (task_id, url) DO NOTHING
		`, util.NewID("doc"), id, doc.Title, doc.URL, doc.Type)
		if err != nil {
			return fmt.Errorf("insert document for %s: %w", slug, err)
		}
		// Documents counts rows written, not forest size; conflict skips
		// are not inserts.
		if inserted, err := res.RowsAffected(); err == nil && inserted > 0 {
			stats.Documents++
		}
	}

	for i, child := range node.Children {
		if err := upsertNode(ctx, tx, projectID, &id, slug, level+1, i, child, existing, seen, slugs, stats); err != nil {
			return err
		}
	}
	return nil
}

// slugSet hands out project-unique slugs, suffixing duplicates within one run
// so two siblings with the same title still get distinct keys.
type slugSet struct {
	used map[string]int
}

func newSlugSet() *slugSet {
	return &slugSet{used: make(map[string]int)}
}

func (s *slugSet) claim(parentSlug, title string) string {
	slug := Slugify(title)
	if parentSlug != "" {
		slug = parentSlug + "/" + slug
	}
	count := s.used[slug]
	s.used[slug] = count + 1
	if count == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, count+1)
}

// Slugify lowercases the title and collapses every non-alphanumeric run into
// a single hyphen.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}
