package taskdoc

import (
	"regexp"
	"strconv"
	"strings"
)

const summaryMarker = "## Summary Progress Bar"

var (
	phaseHeadingRe     = regexp.MustCompile(`(?m)^##\s+(Phase\s+\d+\s*:\s*.+?)\s*$`)
	refinementHeaderRe = regexp.MustCompile(`(?m)^####\s+(.+?)\s*$`)
	checklistItemRe    = regexp.MustCompile(`^-\s*\[( |x|X)\]\s*(.+)$`)
	markdownLinkRe     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	tableSeparatorRe   = regexp.MustCompile(`^\s*\|?[\s\-:|]+\|?\s*$`)
	parentheticalRe    = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// Parse turns a TASKS.md document into an ordered forest of phases. Malformed
// sections are skipped rather than failing; a document without phase headings
// yields an empty forest.
func Parse(document string) []Phase {
	if idx := strings.Index(document, summaryMarker); idx >= 0 {
		document = document[:idx]
	}

	refinements := parseRefinements(document)

	matches := phaseHeadingRe.FindAllStringSubmatchIndex(document, -1)
	phases := make([]Phase, 0, len(matches))
	for i, match := range matches {
		title := strings.TrimSpace(document[match[2]:match[3]])
		blockStart := match[1]
		blockEnd := len(document)
		if i+1 < len(matches) {
			blockEnd = matches[i+1][0]
		}
		phase := parsePhaseBlock(title, document[blockStart:blockEnd], refinements)
		phases = append(phases, phase)
	}
	return phases
}

func parsePhaseBlock(title, block string, refinements map[string]refinement) Phase {
	phase := Phase{Title: title, Status: StatusPending}

	for _, line := range strings.Split(block, "\n") {
		if strings.Contains(line, "**Status**") {
			phase.Status, phase.Hours, phase.Branch = parseStatusLine(line)
			break
		}
	}

	for _, row := range parseTableRows(block) {
		task := Task{
			Title:  row[0],
			Status: NormalizeStatus(row[1]),
		}
		if len(row) > 2 {
			task.Hours = parseHours(row[2])
		}
		if len(row) > 3 {
			task.Branch = stripBackticks(row[3])
		}
		if len(row) > 4 {
			task.Detail = row[4]
		}
		task.Objective = task.Detail
		applyRefinement(&task, refinements)
		phase.Tasks = append(phase.Tasks, task)
	}
	return phase
}

// parseStatusLine extracts fields from a pipe-delimited line of the form
// `**Status**: Status: DONE | Total Hours: 10 | Branch: feature/x`. Fields are
// located by substring search; absent fields keep their defaults.
func parseStatusLine(line string) (status string, hours int, branch string) {
	status = StatusPending
	if idx := strings.Index(line, "**Status**"); idx >= 0 {
		line = line[idx+len("**Status**"):]
		line = strings.TrimPrefix(strings.TrimSpace(line), ":")
	}
	for _, segment := range strings.Split(line, "|") {
		segment = strings.TrimSpace(segment)
		switch {
		case strings.Contains(segment, "Total Hours:"):
			raw := segment[strings.Index(segment, "Total Hours:")+len("Total Hours:"):]
			hours = parseHours(raw)
		case strings.Contains(segment, "Branch:"):
			raw := segment[strings.Index(segment, "Branch:")+len("Branch:"):]
			branch = stripBackticks(raw)
		case strings.Contains(segment, "Status:"):
			raw := segment[strings.Index(segment, "Status:")+len("Status:"):]
			status = NormalizeStatus(raw)
		}
	}
	return status, hours, branch
}

// parseTableRows returns the cell values of markdown table body rows. Header
// and separator rows are excluded, as are rows with fewer than three non-empty
// cells.
func parseTableRows(block string) [][]string {
	rows := make([][]string, 0)
	for _, line := range strings.Split(block, "\n") {
		if !strings.Contains(line, "|") || strings.Contains(line, "**Status**") {
			continue
		}
		if tableSeparatorRe.MatchString(line) {
			continue
		}
		cells := splitTableRow(line)
		if len(cells) == 0 {
			continue
		}
		if strings.EqualFold(cells[0], "Task") || strings.EqualFold(cells[0], "Title") {
			continue
		}
		nonEmpty := 0
		for _, cell := range cells {
			if cell != "" {
				nonEmpty++
			}
		}
		if nonEmpty < 3 {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

// parseRefinements collects `#### <Title>` blocks keyed by task title. A
// trailing parenthetical and a trailing " Refinement" suffix are stripped from
// the header so `#### Setup CI (Refinement)` joins the task row "Setup CI".
func parseRefinements(document string) map[string]refinement {
	refinements := make(map[string]refinement)
	headers := refinementHeaderRe.FindAllStringSubmatchIndex(document, -1)
	for i, header := range headers {
		rawTitle := strings.TrimSpace(document[header[2]:header[3]])
		title := strings.TrimSpace(parentheticalRe.ReplaceAllString(rawTitle, ""))
		title = strings.TrimSpace(strings.TrimSuffix(title, " Refinement"))
		if title == "" {
			continue
		}

		blockStart := header[1]
		blockEnd := len(document)
		if i+1 < len(headers) {
			blockEnd = headers[i+1][0]
		}
		block := document[blockStart:blockEnd]
		if idx := strings.Index(block, "\n---"); idx >= 0 {
			block = block[:idx]
		}

		refinements[title] = refinement{
			title:       title,
			description: extractField(block, "Description"),
			prompt:      extractField(block, "AI Enquiry Prompt"),
			issues:      extractChecklist(sectionAfter(block, "Issues")),
			documents:   extractDocuments(sectionAfter(block, "Documents")),
		}
	}
	return refinements
}

func applyRefinement(task *Task, refinements map[string]refinement) {
	ref, ok := refinements[task.Title]
	if !ok {
		return
	}
	if ref.description != "" {
		task.Description = ref.description
		task.Objective = ref.description
	}
	task.AIPrompt = ref.prompt
	for _, item := range ref.issues {
		status := StatusPending
		if item.done {
			status = StatusDone
		}
		task.Subtasks = append(task.Subtasks, Subtask{Title: item.text, Status: status})
	}
	task.Documents = append(task.Documents, ref.documents...)
}

// extractField captures the text after `**<name>**` up to the next bold
// marker or end of block.
func extractField(block, name string) string {
	marker := "**" + name + "**"
	idx := strings.Index(block, marker)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(marker):]
	rest = strings.TrimPrefix(strings.TrimSpace(rest), ":")
	if end := strings.Index(rest, "**"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func sectionAfter(block, name string) string {
	marker := "**" + name + "**"
	idx := strings.Index(block, marker)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(marker):]
	if end := strings.Index(rest, "**"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func extractChecklist(section string) []checklistItem {
	items := make([]checklistItem, 0)
	for _, line := range strings.Split(section, "\n") {
		match := checklistItemRe.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		items = append(items, checklistItem{
			text: strings.TrimSpace(match[2]),
			done: match[1] == "x" || match[1] == "X",
		})
	}
	return items
}

func extractDocuments(section string) []DocumentLink {
	links := markdownLinkRe.FindAllStringSubmatch(section, -1)
	documents := make([]DocumentLink, 0, len(links))
	for _, link := range links {
		url := strings.TrimSpace(link[2])
		docType := "link"
		if strings.HasSuffix(strings.ToLower(url), ".md") || strings.HasPrefix(url, "file://") {
			docType = "markdown"
		}
		documents = append(documents, DocumentLink{
			Title: strings.TrimSpace(link[1]),
			URL:   url,
			Type:  docType,
		})
	}
	return documents
}

func parseHours(raw string) int {
	cleaned := strings.TrimSpace(stripBackticks(raw))
	cleaned = strings.TrimSuffix(cleaned, "h")
	value, err := strconv.Atoi(strings.TrimSpace(cleaned))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func stripBackticks(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "`", ""))
}
