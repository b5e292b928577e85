// Package ai generates draft task breakdowns through the OpenAI chat
// completions API.
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const systemPrompt = `You are a software project planner. Given a project description,
produce a TASKS.md planning document with this exact structure:

- One "## Phase <n>: <title>" heading per phase.
- Under each phase a "**Status**: <status> | <completion>% | <branch>" line.
- A markdown table with columns: Task | Status | Hours | Branch | Detail.
- Optionally "#### <Task Title> Refinement" blocks with **Description**,
  **AI Enquiry Prompt** and **Issues** checklist sections.

Statuses are PENDING, IN PROGRESS, WAITING FOR REVIEW or DONE. Hours are
integers. Respond with the markdown document only, no surrounding prose.`

// Planner turns a free-form project description into a planning document.
type Planner struct {
	client openai.Client
	model  string
}

// NewPlanner builds a planner. baseURL is optional and supports OpenAI
// compatible gateways.
func NewPlanner(apiKey, baseURL, model string) *Planner {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Planner{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// BreakdownDocument asks the model for a TASKS.md draft for the project.
func (p *Planner) BreakdownDocument(ctx context.Context, projectName, description string) (string, error) {
	userPrompt := fmt.Sprintf("Project: %s\n\n%s", projectName, description)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	return stripCodeFence(resp.Choices[0].Message.Content), nil
}

// stripCodeFence unwraps a response the model wrapped in a ```markdown fence.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
