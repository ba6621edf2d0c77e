package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// TaskRepository handles persistence for tasks.
//
// Every read and mutation on a single task filters by owner in the SQL
// statement itself, so the ownership check and the operation it guards are
// one atomic statement. A task that exists but belongs to someone else is
// indistinguishable from a missing one: both come back as ErrNotFound.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, priority, due_date, completed, owner_id, created_at, updated_at`

func scanTask(row *sql.Row) (types.Task, error) {
	var task types.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.DueDate,
		&task.Completed,
		&task.OwnerID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

// ListByOwner returns the owner's tasks, newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID int) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		var task types.Task
		if err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.Priority,
			&task.DueDate,
			&task.Completed,
			&task.OwnerID,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListAll returns every task joined with its owning account. Used by the
// ownership-bypassing admin listing only.
func (r *TaskRepository) ListAll(ctx context.Context) ([]types.TaskWithOwner, error) {
	const query = `
		SELECT t.id, t.title, t.description, t.priority, t.due_date, t.completed,
			t.owner_id, t.created_at, t.updated_at,
			u.id, u.name, u.email
		FROM tasks t
		JOIN users u ON u.id = t.owner_id
		ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.TaskWithOwner, 0)
	for rows.Next() {
		var task types.TaskWithOwner
		if err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.Priority,
			&task.DueDate,
			&task.Completed,
			&task.OwnerID,
			&task.CreatedAt,
			&task.UpdatedAt,
			&task.Owner.ID,
			&task.Owner.Name,
			&task.Owner.Email,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns a task only if it is owned by ownerID.
func (r *TaskRepository) Get(ctx context.Context, id, ownerID int) (types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND owner_id = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (title, description, priority, due_date, completed, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Priority,
		task.DueDate,
		task.Completed,
		task.OwnerID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// Update rewrites a task's mutable fields in a single conditional statement
// keyed on both id and owner, and returns the updated row.
func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			priority = $3,
			due_date = $4,
			completed = $5,
			updated_at = $6
		WHERE id = $7 AND owner_id = $8
		RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Priority,
		task.DueDate,
		task.Completed,
		time.Now(),
		task.ID,
		task.OwnerID,
	))
}

// Delete removes a task owned by ownerID and returns the object keys of
// its attachments so the caller can remove the stored files.
func (r *TaskRepository) Delete(ctx context.Context, id, ownerID int) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const keysQuery = `
		SELECT a.object_key
		FROM attachments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.id = $1 AND t.owner_id = $2`
	rows, err := tx.QueryContext(ctx, keysQuery, id, ownerID)
	if err != nil {
		return nil, err
	}
	var objectKeys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, err
		}
		objectKeys = append(objectKeys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const deleteQuery = `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`
	result, err := tx.ExecContext(ctx, deleteQuery, id, ownerID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return objectKeys, nil
}
