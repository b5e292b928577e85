package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func newProjectsCmd(apiURL, token *string) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(*apiURL, *token)
			result, err := client.do(cmd.Context(), http.MethodGet, "/api/projects", nil)
			if err != nil {
				return err
			}

			projects := result.Get("projects").Array()
			if len(projects) == 0 {
				fmt.Println("no projects")
				return nil
			}
			for _, project := range projects {
				line := fmt.Sprintf("%s  %s", project.Get("id").String(), project.Get("name").String())
				if repo := project.Get("repoFullName").String(); repo != "" {
					line += "  (" + repo + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newSyncCmd(apiURL, token *string) *cobra.Command {
	var (
		projectID string
		repo      string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a project from its repository's TASKS.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" && repo == "" {
				return fmt.Errorf("either --project or --repo is required")
			}

			body, err := sjson.Set("", "projectId", projectID)
			if err != nil {
				return err
			}
			if body, err = sjson.Set(body, "repoFullName", repo); err != nil {
				return err
			}

			client := newAPIClient(*apiURL, *token)
			result, err := client.do(cmd.Context(), http.MethodPost, "/api/projects/sync", strings.NewReader(body))
			if err != nil {
				return err
			}

			printStat(result, "phases")
			printStat(result, "tasks")
			printStat(result, "subtasks")
			printStat(result, "documents")
			printStat(result, "deleted")
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&repo, "repo", "", "repository full name (owner/name)")

	return cmd
}

func printStat(result gjson.Result, name string) {
	fmt.Printf("%-10s %d\n", name, result.Get(name).Int())
}
