package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyforge/internal/story"
)

const taskColumns = "id, source, content_json, status, priority, retry_count, story_type, target_audience, narrative_angle, metadata_json, error_message, result_json, created_at, updated_at, completed_at"

// ErrDuplicateTask indicates an insert collided with an existing task id.
var ErrDuplicateTask = errors.New("duplicate task id")

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id             string
		source         string
		contentJSON    string
		statusStr      string
		priority       int
		retryCount     int
		storyType      sql.NullString
		targetAudience sql.NullString
		narrativeAngle sql.NullString
		metadataJSON   sql.NullString
		errorMessage   sql.NullString
		resultJSON     sql.NullString
		createdRaw     string
		updatedRaw     string
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&source,
		&contentJSON,
		&statusStr,
		&priority,
		&retryCount,
		&storyType,
		&targetAudience,
		&narrativeAngle,
		&metadataJSON,
		&errorMessage,
		&resultJSON,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:             id,
		Source:         Source(source),
		Status:         Status(statusStr),
		Priority:       priority,
		RetryCount:     retryCount,
		StoryType:      storyType.String,
		TargetAudience: targetAudience.String,
		NarrativeAngle: narrativeAngle.String,
		ErrorMessage:   errorMessage.String,
	}

	if err := json.Unmarshal([]byte(contentJSON), &task.Content); err != nil {
		return nil, fmt.Errorf("decode task content: %w", err)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &task.Metadata); err != nil {
			return nil, fmt.Errorf("decode task metadata: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var pkg story.Package
		if err := json.Unmarshal([]byte(resultJSON.String), &pkg); err != nil {
			return nil, fmt.Errorf("decode task result: %w", err)
		}
		task.Result = &pkg
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	return task, nil
}

func encodeTaskColumns(task *Task) (content, metadata, result any, err error) {
	contentBytes, err := json.Marshal(task.Content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode task content: %w", err)
	}
	content = string(contentBytes)

	if len(task.Metadata) > 0 {
		metadataBytes, err := json.Marshal(task.Metadata)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode task metadata: %w", err)
		}
		metadata = string(metadataBytes)
	}

	if task.Result != nil {
		resultBytes, err := json.Marshal(task.Result)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode task result: %w", err)
		}
		result = string(resultBytes)
	}
	return content, metadata, result, nil
}

// Insert persists a new task. The caller is expected to have set ID, Status,
// and CreatedAt.
func (s *Store) Insert(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if task.ID == "" {
		return errors.New("task id is empty")
	}
	content, metadata, result, err := encodeTaskColumns(task)
	if err != nil {
		return err
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.UpdatedAt = task.CreatedAt

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            id, source, content_json, status, priority, retry_count,
            story_type, target_audience, narrative_angle,
            metadata_json, error_message, result_json,
            created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		string(task.Source),
		content,
		task.Status,
		task.Priority,
		task.RetryCount,
		nullableString(task.StoryType),
		nullableString(task.TargetAudience),
		nullableString(task.NarrativeAngle),
		metadata,
		nullableString(task.ErrorMessage),
		result,
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		task.UpdatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(task.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update persists changes to an existing task.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	content, metadata, result, err := encodeTaskColumns(task)
	if err != nil {
		return err
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET source = ?, content_json = ?, status = ?, priority = ?, retry_count = ?,
             story_type = ?, target_audience = ?, narrative_angle = ?,
             metadata_json = ?, error_message = ?, result_json = ?,
             updated_at = ?, completed_at = ?
         WHERE id = ?`,
		string(task.Source),
		content,
		task.Status,
		task.Priority,
		task.RetryCount,
		nullableString(task.StoryType),
		nullableString(task.TargetAudience),
		nullableString(task.NarrativeAngle),
		metadata,
		nullableString(task.ErrorMessage),
		result,
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.CompletedAt),
		task.ID,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// GetByID fetches a task by identifier. Returns nil when the task does not
// exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), ordered by priority then submission time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY priority DESC, created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates task state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusPublished:
			health.Published += count
		case StatusFailed:
			health.Failed += count
		default:
			if IsProcessing(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// ResetIncomplete returns every non-terminal task to pending so a restarted
// daemon re-runs it from content analysis. Returns the number of tasks reset.
func (s *Store) ResetIncomplete(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status NOT IN (?, ?, ?)`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPending,
		StatusPublished,
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("reset incomplete tasks: %w", err)
	}
	return res.RowsAffected()
}

// PurgeCompletedBefore deletes terminal tasks whose completion time is older
// than the cutoff. Returns the number of tasks removed.
func (s *Store) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM tasks WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusPublished,
		StatusFailed,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purge completed tasks: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearPublished removes only published tasks from the queue.
func (s *Store) ClearPublished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusPublished)
	if err != nil {
		return 0, fmt.Errorf("clear published: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed tasks from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
