package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskpilot/api/internal/taskdoc"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <tasks-file>",
		Short: "Parse a TASKS.md file and print the resulting tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			phases := taskdoc.Parse(string(raw))
			if len(phases) == 0 {
				fmt.Println("no phases found")
				return nil
			}

			for _, phase := range phases {
				fmt.Printf("%s  [%s]", phase.Title, phase.Status)
				if phase.Hours > 0 {
					fmt.Printf("  %dh", phase.Hours)
				}
				fmt.Println()
				for _, task := range phase.Tasks {
					fmt.Printf("  %s  [%s]", task.Title, task.Status)
					if task.Hours > 0 {
						fmt.Printf("  %dh", task.Hours)
					}
					fmt.Println()
					for _, sub := range task.Subtasks {
						fmt.Printf("    %s  [%s]\n", sub.Title, sub.Status)
					}
					for _, doc := range task.Documents {
						fmt.Printf("    doc: %s (%s)\n", doc.Title, doc.URL)
					}
				}
			}
			return nil
		},
	}
}
