package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ducphamhoang/momentum-sync/internal/core"
)

// TaskInput carries the fields callers may set when creating a task.
// The store generates the id and timestamps. UpdatedAt, when set,
// overrides the local-edit stamp; the sync engine uses it so tasks
// materialized from a remote fetch do not read as locally edited.
type TaskInput struct {
	Title        string
	Description  string
	IsCompleted  bool
	Importance   core.Importance
	DueDate      *time.Time
	ExternalID   string
	ExternalEtag string
	Source       string
	LastSyncedAt *time.Time
	UpdatedAt    *time.Time
}

// TaskPatch carries a partial update. Nil fields are left untouched.
// A nil DueDate means "untouched", not "clear"; ClearDueDate removes
// the due date explicitly. UpdatedAt is only bumped when explicitly
// set, so sync bookkeeping writes do not count as local edits.
type TaskPatch struct {
	Title        *string
	Description  *string
	IsCompleted  *bool
	Importance   *core.Importance
	DueDate      *time.Time
	ClearDueDate bool
	ExternalEtag *string
	LastSyncedAt *time.Time
	UpdatedAt    *time.Time
}

// TaskStore handles task persistence
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new task store
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// GetTasks returns all tasks for a user
func (s *TaskStore) GetTasks(ctx context.Context, userID string) ([]core.Task, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, user_id, title, description, is_completed, importance,
		       due_date, external_id, external_etag, source, last_synced_at,
		       created_at, updated_at
		FROM tasks WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// GetByID returns a single task
func (s *TaskStore) GetByID(ctx context.Context, userID string, id core.TaskID) (*core.Task, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, is_completed, importance,
		       due_date, external_id, external_etag, source, last_synced_at,
		       created_at, updated_at
		FROM tasks WHERE user_id = ? AND id = ?
	`, userID, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// CreateTask creates a task, generating its id and timestamps
func (s *TaskStore) CreateTask(ctx context.Context, userID string, input TaskInput) (*core.Task, error) {
	now := time.Now().UTC()

	task := &core.Task{
		ID:           core.TaskID(uuid.New().String()),
		UserID:       userID,
		Title:        input.Title,
		Description:  input.Description,
		IsCompleted:  input.IsCompleted,
		Importance:   input.Importance,
		DueDate:      input.DueDate,
		ExternalID:   input.ExternalID,
		ExternalEtag: input.ExternalEtag,
		Source:       input.Source,
		LastSyncedAt: input.LastSyncedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if task.Importance == "" {
		task.Importance = core.ImportanceMedium
	}
	if task.Source == "" {
		task.Source = core.SourceLocal
	}
	if input.UpdatedAt != nil {
		task.UpdatedAt = input.UpdatedAt.UTC()
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO tasks (
		    id, user_id, title, description, is_completed, importance,
		    due_date, external_id, external_etag, source, last_synced_at,
		    created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.UserID, task.Title, task.Description, task.IsCompleted,
		task.Importance, task.DueDate, nullString(task.ExternalID),
		nullString(task.ExternalEtag), task.Source, task.LastSyncedAt,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return task, nil
}

// UpdateTask applies a partial update and returns the updated task
func (s *TaskStore) UpdateTask(ctx context.Context, userID string, id core.TaskID, patch TaskPatch) (*core.Task, error) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.IsCompleted != nil {
		add("is_completed", *patch.IsCompleted)
	}
	if patch.Importance != nil {
		add("importance", *patch.Importance)
	}
	if patch.ClearDueDate {
		add("due_date", nil)
	} else if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.ExternalEtag != nil {
		add("external_etag", *patch.ExternalEtag)
	}
	if patch.LastSyncedAt != nil {
		add("last_synced_at", *patch.LastSyncedAt)
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}

	if len(sets) == 0 {
		return s.GetByID(ctx, userID, id)
	}

	args = append(args, userID, id)
	res, err := s.db.conn.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE user_id = ? AND id = ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, core.ErrTaskNotFound
	}

	return s.GetByID(ctx, userID, id)
}

// DeleteTask removes a task. Deleting an absent task is not an error.
func (s *TaskStore) DeleteTask(ctx context.Context, userID string, id core.TaskID) error {
	_, err := s.db.conn.ExecContext(ctx,
		"DELETE FROM tasks WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*core.Task, error) {
	task := &core.Task{}
	var externalID, externalEtag sql.NullString
	var dueDate, lastSyncedAt sql.NullTime

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.IsCompleted, &task.Importance, &dueDate, &externalID,
		&externalEtag, &task.Source, &lastSyncedAt,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ExternalID = externalID.String
	task.ExternalEtag = externalEtag.String
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		task.LastSyncedAt = &t
	}

	return task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
