package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prreview/internal/apperr"
	"prreview/internal/models"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// InsertTask creates a new Task row with status=pending, progress=0, per the
// submission collaborator's lifecycle contract in spec.md §3.
func (s *Store) InsertTask(ctx context.Context, t *models.Task) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal task config", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, repo_url, owner, name, pr_number, priority, status, progress,
			queue_ticket_id, created_at, updated_at, retry_count, max_retries, config, error_message, error_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RepoURL, t.Owner, t.Name, t.PRNumber, string(t.Priority), string(t.Status), t.Progress,
		t.QueueTicketID, t.CreatedAt, t.UpdatedAt, t.RetryCount, t.MaxRetries, string(cfg), t.ErrorMessage, t.ErrorDetails)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "insert task", err)
	}
	return nil
}

// GetTask fetches one Task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repo_url, owner, name, pr_number, priority, status, progress, queue_ticket_id,
			created_at, updated_at, started_at, completed_at, retry_count, max_retries, config, error_message, error_details
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var t models.Task
	var priority, status, cfg string
	var startedAt, completedAt sql.NullTime
	var ticket sql.NullString
	err := row.Scan(&t.ID, &t.RepoURL, &t.Owner, &t.Name, &t.PRNumber, &priority, &status, &t.Progress, &ticket,
		&t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt, &t.RetryCount, &t.MaxRetries, &cfg, &t.ErrorMessage, &t.ErrorDetails)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "scan task", err)
	}
	t.Priority = models.Priority(priority)
	t.Status = models.TaskStatus(status)
	if ticket.Valid {
		v := ticket.String
		t.QueueTicketID = &v
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	if cfg != "" {
		_ = json.Unmarshal([]byte(cfg), &t.Config)
	}
	return &t, nil
}

// UpdateTaskProgress writes a monotonic progress/status update. It refuses to
// lower progress below what is already stored, per spec.md §5's "progress
// updates are monotonic" ordering guarantee. A cancelled Task is left as it
// is, so the worker's next stage-boundary check still sees the cancellation.
func (s *Store) UpdateTaskProgress(ctx context.Context, id string, status models.TaskStatus, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = ?, updated_at = ?
		WHERE id = ? AND progress <= ? AND status != 'cancelled'`,
		string(status), progress, time.Now().UTC(), id, progress)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "update task progress", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Either the task doesn't exist, progress would have regressed, or
		// the task is cancelled; the latter two are no-ops, not errors.
		if _, err := s.GetTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SetQueueTicket records the queue-ticket id returned by C8's submit
// operation against the Task it was issued for, satisfying the
// "queue_ticket_id (unique, nullable)" attribute in spec.md §3.
func (s *Store) SetQueueTicket(ctx context.Context, id, ticketID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET queue_ticket_id = ?, updated_at = ? WHERE id = ?`,
		ticketID, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "set queue ticket", err)
	}
	return nil
}

// MarkTaskStarted transitions pending (or retry)→processing and stamps
// started_at. A cancelled Task is left as it is.
func (s *Store) MarkTaskStarted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'processing', started_at = ?, updated_at = ? WHERE id = ? AND status != 'cancelled'`,
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "mark task started", err)
	}
	return nil
}

// MarkTaskTerminal transitions a Task into completed/failed/cancelled and
// stamps completed_at, satisfying the "status ∈ terminal ⇒ completed_at !=
// null" invariant from spec.md §8.
func (s *Store) MarkTaskTerminal(ctx context.Context, id string, status models.TaskStatus, progress int, errMsg, errDetails string) error {
	if !status.Terminal() {
		return fmt.Errorf("store: %s is not a terminal status", status)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, progress = ?, completed_at = ?, updated_at = ?,
			error_message = ?, error_details = ? WHERE id = ?`,
		string(status), progress, time.Now().UTC(), time.Now().UTC(), errMsg, errDetails, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "mark task terminal", err)
	}
	return nil
}

// MarkTaskRetry increments retry_count and sets status=retry, the transition
// spec.md §4.7's retry policy requires before the worker re-claims the task.
func (s *Store) MarkTaskRetry(ctx context.Context, id, errMsg, errDetails string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'retry', retry_count = retry_count + 1,
			error_message = ?, error_details = ?, updated_at = ? WHERE id = ?`,
		errMsg, errDetails, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "mark task retry", err)
	}
	return nil
}

// IsCancelled reports whether the Task's current status is cancelled, for the worker's
// stage-boundary cancellation check (spec.md §4.7, §5).
func (s *Store) IsCancelled(ctx context.Context, id string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindDatabase, "check task cancellation", err)
	}
	return models.TaskStatus(status) == models.TaskCancelled, nil
}
