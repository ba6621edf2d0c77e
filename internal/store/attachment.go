package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// AttachmentRepository handles persistence for task attachments. Rows are
// always addressed through their task id; ownership of the task is checked
// by the caller before any attachment operation runs.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, task_id, filename, content_type, size, object_key, created_at`

func scanAttachment(row *sql.Row) (types.Attachment, error) {
	var att types.Attachment
	err := row.Scan(
		&att.ID,
		&att.TaskID,
		&att.Filename,
		&att.ContentType,
		&att.Size,
		&att.ObjectKey,
		&att.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return att, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, att types.Attachment) (types.Attachment, error) {
	att.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (task_id, filename, content_type, size, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		att.TaskID,
		att.Filename,
		att.ContentType,
		att.Size,
		att.ObjectKey,
		att.CreatedAt,
	).Scan(&att.ID); err != nil {
		return types.Attachment{}, err
	}
	return att, nil
}

func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE task_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var att types.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TaskID,
			&att.Filename,
			&att.ContentType,
			&att.Size,
			&att.ObjectKey,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

// Get returns an attachment only if it belongs to the given task.
func (r *AttachmentRepository) Get(ctx context.Context, id, taskID int) (types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE id = $1 AND task_id = $2`
	return scanAttachment(r.db.QueryRowContext(ctx, query, id, taskID))
}

// Delete removes an attachment row and returns its object key so the
// caller can remove the stored file.
func (r *AttachmentRepository) Delete(ctx context.Context, id, taskID int) (string, error) {
	const query = `
		DELETE FROM attachments
		WHERE id = $1 AND task_id = $2
		RETURNING object_key`
	var objectKey string
	if err := r.db.QueryRowContext(ctx, query, id, taskID).Scan(&objectKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return objectKey, nil
}
