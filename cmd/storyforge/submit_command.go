package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storyforge/internal/narrative"
	"storyforge/internal/queue"
	"storyforge/internal/story"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		title      string
		priority   int
		storyType  string
		audience   string
		angle      string
		sourceURL  string
		sourceName string
	)

	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit an article to the pipeline",
		Long: `Submit reads the article body from the given file, or from stdin when no
file is provided, and enqueues it as a pending task. The running daemon picks
it up on its next poll.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readArticleBody(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(body) == "" && strings.TrimSpace(title) == "" {
				return errors.New("article is empty; provide a body or --title")
			}
			if storyType != "" && !narrative.KnownStoryType(storyType) {
				return fmt.Errorf("unknown story type %q (known: %s)",
					storyType, strings.Join(narrative.StoryTypes(), ", "))
			}
			if priority < 0 {
				return errors.New("priority must be non-negative")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			if storyType == "" {
				storyType = cfg.Pipeline.DefaultStoryType
			}
			if audience == "" {
				audience = cfg.Pipeline.DefaultAudience
			}
			if angle == "" {
				angle = cfg.Pipeline.DefaultAngle
			}

			content := story.RawContent{
				Title:      strings.TrimSpace(title),
				Body:       body,
				URL:        sourceURL,
				SourceName: sourceName,
			}
			now := time.Now().UTC()
			task := &queue.Task{
				ID:             queue.NewTaskID(content, now),
				Source:         queue.SourceUserSubmitted,
				Content:        content,
				Status:         queue.StatusPending,
				Priority:       priority,
				StoryType:      storyType,
				TargetAudience: audience,
				NarrativeAngle: angle,
				CreatedAt:      now,
			}

			err = store.Insert(cmd.Context(), task)
			if errors.Is(err, queue.ErrDuplicateTask) {
				task.ID = fmt.Sprintf("%s_%s", task.ID, uuid.NewString()[:8])
				err = store.Insert(cmd.Context(), task)
			}
			if err != nil {
				return fmt.Errorf("enqueue task: %w", err)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"task_id": task.ID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (priority %d, %s)\n", task.ID, priority, storyType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Article title")
	cmd.Flags().IntVarP(&priority, "priority", "p", 5, "Scheduling priority (higher runs sooner)")
	cmd.Flags().StringVar(&storyType, "story-type", "", "Story type (default from config)")
	cmd.Flags().StringVar(&audience, "audience", "", "Target audience")
	cmd.Flags().StringVar(&angle, "angle", "", "Narrative angle")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Source URL for provenance")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "Source publication name")

	return cmd
}

func readArticleBody(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read article file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read article from stdin: %w", err)
	}
	return string(data), nil
}
