package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"storyforge/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the current state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			task, err := store.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %s: %w", args[0], errNotFound)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), statusPayload(task))
			}
			renderTaskStatus(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

func statusPayload(task *queue.Task) map[string]any {
	payload := map[string]any{
		"id":          task.ID,
		"status":      string(task.Status),
		"priority":    task.Priority,
		"retry_count": task.RetryCount,
		"story_type":  task.StoryType,
		"created_at":  task.CreatedAt.Format(time.RFC3339),
		"updated_at":  task.UpdatedAt.Format(time.RFC3339),
	}
	if task.ErrorMessage != "" {
		payload["error"] = task.ErrorMessage
	}
	if task.CompletedAt != nil {
		payload["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	if task.Result != nil {
		payload["result"] = task.Result
	}
	return payload
}

func renderTaskStatus(w io.Writer, task *queue.Task) {
	rows := [][]string{
		{"ID", task.ID},
		{"Status", string(task.Status)},
		{"Priority", fmt.Sprintf("%d", task.Priority)},
		{"Retries", fmt.Sprintf("%d", task.RetryCount)},
		{"Story type", task.StoryType},
		{"Created", task.CreatedAt.Local().Format(time.RFC1123)},
	}
	if task.CompletedAt != nil {
		rows = append(rows, []string{"Completed", task.CompletedAt.Local().Format(time.RFC1123)})
	}
	if task.ErrorMessage != "" {
		rows = append(rows, []string{"Error", truncate(task.ErrorMessage, 96)})
	}
	if task.Result != nil {
		rows = append(rows,
			[]string{"Title", truncate(task.Result.Story.Title, 96)},
			[]string{"Images", fmt.Sprintf("%d", len(task.Result.Images))},
			[]string{"Reading time", fmt.Sprintf("%ds", task.Result.Story.ReadingTime)},
		)
	}
	writeKeyValues(w, rows)
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
