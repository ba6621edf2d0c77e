package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/types"
)

// TaskRepository defines persistence operations for tasks. Single-task
// reads and mutations are owner-conditional: the repository treats a task
// owned by someone else the same as a missing one.
type TaskRepository interface {
	ListByOwner(ctx context.Context, ownerID int) ([]types.Task, error)
	ListAll(ctx context.Context) ([]types.TaskWithOwner, error)
	Get(ctx context.Context, id, ownerID int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id, ownerID int) ([]string, error)
}

// TaskService encapsulates task use-cases.
type TaskService struct {
	repo   TaskRepository
	events *events.Publisher
	store  ObjectStore
	log    *logrus.Logger
}

func NewTaskService(repo TaskRepository, publisher *events.Publisher, store ObjectStore, log *logrus.Logger) *TaskService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TaskService{repo: repo, events: publisher, store: store, log: log}
}

func (s *TaskService) List(ctx context.Context, ownerID int) ([]types.Task, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListAllWithOwners returns every task with its owner populated. Callers
// must only reach this through an ownership-bypassing identity.
func (s *TaskService) ListAllWithOwners(ctx context.Context) ([]types.TaskWithOwner, error) {
	return s.repo.ListAll(ctx)
}

func (s *TaskService) Get(ctx context.Context, id, ownerID int) (types.Task, error) {
	return s.repo.Get(ctx, id, ownerID)
}

func (s *TaskService) Create(ctx context.Context, task types.Task) (types.Task, error) {
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	s.events.Publish(ctx, events.TaskCreated, created.OwnerID, created.ID)
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, task types.Task) (types.Task, error) {
	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		return types.Task{}, err
	}
	s.events.Publish(ctx, events.TaskUpdated, updated.OwnerID, updated.ID)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id, ownerID int) error {
	objectKeys, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if s.store != nil {
		for _, key := range objectKeys {
			if err := s.store.Delete(ctx, key); err != nil {
				s.log.WithError(err).WithField("object_key", key).Warn("failed to delete attachment object")
			}
		}
	}

	s.events.Publish(ctx, events.TaskDeleted, ownerID, id)
	return nil
}
