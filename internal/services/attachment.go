package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/taskhive/apiserver/types"
)

// ErrStorageDisabled is returned when attachment operations are attempted
// without a configured object storage backend.
var ErrStorageDisabled = errors.New("attachment storage is not configured")

// AttachmentRepository defines persistence operations for attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, att types.Attachment) (types.Attachment, error)
	ListByTask(ctx context.Context, taskID int) ([]types.Attachment, error)
	Get(ctx context.Context, id, taskID int) (types.Attachment, error)
	Delete(ctx context.Context, id, taskID int) (string, error)
}

// AttachmentService encapsulates attachment use-cases. Every operation
// resolves the target task through the owner-conditional task repository
// first, so an attachment under someone else's task is a plain not-found.
type AttachmentService struct {
	tasks TaskRepository
	repo  AttachmentRepository
	store ObjectStore
}

func NewAttachmentService(tasks TaskRepository, repo AttachmentRepository, store ObjectStore) *AttachmentService {
	return &AttachmentService{tasks: tasks, repo: repo, store: store}
}

// Enabled reports whether an object storage backend is configured.
func (s *AttachmentService) Enabled() bool {
	return s.store != nil
}

// Upload stores the file and records the attachment against the task.
func (s *AttachmentService) Upload(ctx context.Context, taskID, ownerID int, filename, contentType string, size int64, r io.Reader) (types.Attachment, error) {
	if s.store == nil {
		return types.Attachment{}, ErrStorageDisabled
	}
	if _, err := s.tasks.Get(ctx, taskID, ownerID); err != nil {
		return types.Attachment{}, err
	}

	objectKey := fmt.Sprintf("tasks/%d/%s-%s", taskID, newObjectSuffix(), path.Base(filename))
	if err := s.store.Put(ctx, objectKey, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	att, err := s.repo.Create(ctx, types.Attachment{
		TaskID:      taskID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		ObjectKey:   objectKey,
	})
	if err != nil {
		// The row never existed, so drop the orphaned object.
		_ = s.store.Delete(ctx, objectKey)
		return types.Attachment{}, err
	}
	return att, nil
}

// List returns a task's attachments, owner-checked.
func (s *AttachmentService) List(ctx context.Context, taskID, ownerID int) ([]types.Attachment, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := s.tasks.Get(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return s.repo.ListByTask(ctx, taskID)
}

// Open returns the attachment metadata and a reader over its content.
// The caller owns the reader.
func (s *AttachmentService) Open(ctx context.Context, id, taskID, ownerID int) (types.Attachment, io.ReadCloser, error) {
	if s.store == nil {
		return types.Attachment{}, nil, ErrStorageDisabled
	}
	if _, err := s.tasks.Get(ctx, taskID, ownerID); err != nil {
		return types.Attachment{}, nil, err
	}

	att, err := s.repo.Get(ctx, id, taskID)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	reader, err := s.store.Get(ctx, att.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return att, reader, nil
}

// Delete removes the attachment row and its stored object.
func (s *AttachmentService) Delete(ctx context.Context, id, taskID, ownerID int) error {
	if s.store == nil {
		return ErrStorageDisabled
	}
	if _, err := s.tasks.Get(ctx, taskID, ownerID); err != nil {
		return err
	}

	objectKey, err := s.repo.Delete(ctx, id, taskID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, objectKey)
}

func newObjectSuffix() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf[:])
}
