package database

import (
	"context"
	"fmt"
	"time"

	"admissionsbot/internal/models"
)

func (db *DB) CreateCRMTask(ctx context.Context, task *models.CRMTask) error {
	query := `INSERT INTO crm_queue (task_type, user_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.UserID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		nullTime(task.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create crm task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func (db *DB) GetPendingCRMTasks(ctx context.Context, limit int) ([]models.CRMTask, error) {
	query := `SELECT id, task_type, user_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM crm_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	return db.queryCRMTasks(ctx, query, models.TaskPending, models.TaskRetry, time.Now().UTC(), limit)
}

func (db *DB) GetCRMTask(ctx context.Context, id int64) (*models.CRMTask, error) {
	tasks, err := db.queryCRMTasks(ctx,
		`SELECT id, task_type, user_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
         FROM crm_queue WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("crm task %d not found", id)
	}
	return &tasks[0], nil
}

func (db *DB) UpdateCRMTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()

	switch status {
	case models.TaskRetry:
		query = `UPDATE crm_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nullTime(nextRetryAt), id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE crm_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nullTime(nextRetryAt), now, id}
	default:
		query = `UPDATE crm_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nullTime(nextRetryAt), id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update crm task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedCRMTasks(ctx context.Context) ([]models.CRMTask, error) {
	query := `SELECT id, task_type, user_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM crm_queue WHERE status = ? ORDER BY created_at DESC`
	return db.queryCRMTasks(ctx, query, models.TaskFailed)
}

func (db *DB) queryCRMTasks(ctx context.Context, query string, args ...interface{}) ([]models.CRMTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crm tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.CRMTask
	for rows.Next() {
		var t models.CRMTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.UserID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crm task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
