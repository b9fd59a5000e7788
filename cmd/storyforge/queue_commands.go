package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyforge/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var statusFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, highest priority first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			var statuses []queue.Status
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (known: %s)", statusFilter, knownStatuses())
				}
				statuses = append(statuses, status)
			}
			tasks, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				payloads := make([]map[string]any, len(tasks))
				for i, task := range tasks {
					payloads[i] = statusPayload(task)
				}
				return writeJSON(cmd.OutOrStdout(), payloads)
			}

			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}
			rows := make([][]string, len(tasks))
			for i, task := range tasks {
				rows[i] = []string{
					task.ID,
					string(task.Status),
					fmt.Sprintf("%d", task.Priority),
					fmt.Sprintf("%d", task.RetryCount),
					task.StoryType,
					truncate(task.Content.Title, 48),
					task.CreatedAt.Local().Format(time.Stamp),
				}
			}
			writeTable(cmd.OutOrStdout(),
				[]string{"ID", "STATUS", "PRI", "RETRIES", "TYPE", "TITLE", "CREATED"},
				rows)
			return nil
		},
	}
	listCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show tasks with this status")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				payload := make(map[string]int, len(stats))
				for status, count := range stats {
					payload[string(status)] = count
				}
				return writeJSON(cmd.OutOrStdout(), payload)
			}

			rows := make([][]string, 0, len(stats))
			total := 0
			for _, status := range queue.AllStatuses() {
				count, ok := stats[status]
				if !ok {
					continue
				}
				total += count
				rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
			}
			rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})
			writeTable(cmd.OutOrStdout(), []string{"STATUS", "TASKS"}, rows)
			return nil
		},
	}

	queueCmd.AddCommand(listCmd)
	queueCmd.AddCommand(statsCmd)
	queueCmd.AddCommand(newClearCommand(ctx, "clear", "Remove every task from the queue",
		func(cmd *cobra.Command, store *queue.Store) (int64, error) {
			return store.Clear(cmd.Context())
		}))
	queueCmd.AddCommand(newClearCommand(ctx, "clear-completed", "Remove published tasks",
		func(cmd *cobra.Command, store *queue.Store) (int64, error) {
			return store.ClearPublished(cmd.Context())
		}))
	queueCmd.AddCommand(newClearCommand(ctx, "clear-failed", "Remove failed tasks",
		func(cmd *cobra.Command, store *queue.Store) (int64, error) {
			return store.ClearFailed(cmd.Context())
		}))

	var olderThan time.Duration
	pruneCmd := newClearCommand(ctx, "prune", "Remove terminal tasks older than a cutoff",
		func(cmd *cobra.Command, store *queue.Store) (int64, error) {
			return store.PurgeCompletedBefore(cmd.Context(), time.Now().UTC().Add(-olderThan))
		})
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only remove tasks that completed longer ago than this")
	queueCmd.AddCommand(pruneCmd)

	return queueCmd
}

func newClearCommand(ctx *commandContext, use, short string, clear func(*cobra.Command, *queue.Store) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			removed, err := clear(cmd, store)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]int64{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s).\n", removed)
			return nil
		},
	}
}

func knownStatuses() string {
	statuses := queue.AllStatuses()
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}
