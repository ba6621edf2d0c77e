package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/events"
	"github.com/taskhive/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id int, name, email string) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetBlocked(ctx context.Context, id int, blocked bool) (types.User, error)
	Delete(ctx context.Context, id int) ([]string, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo   UserRepository
	events *events.Publisher
	store  ObjectStore
	log    *logrus.Logger
}

func NewUserService(repo UserRepository, publisher *events.Publisher, store ObjectStore, log *logrus.Logger) *UserService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UserService{repo: repo, events: publisher, store: store, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.events.Publish(ctx, events.UserRegistered, created.ID, created.ID)
	return created, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id int, name, email string) (types.User, error) {
	return s.repo.UpdateProfile(ctx, id, name, email)
}

func (s *UserService) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

// Block revokes an account's access. Any still-valid token held by the
// account stops working on the next request because the auth gate reloads
// the account every time.
func (s *UserService) Block(ctx context.Context, actorID, id int) (types.User, error) {
	user, err := s.repo.SetBlocked(ctx, id, true)
	if err != nil {
		return types.User{}, err
	}
	s.events.Publish(ctx, events.UserBlocked, actorID, id)
	return user, nil
}

// Unblock restores a blocked account's access.
func (s *UserService) Unblock(ctx context.Context, actorID, id int) (types.User, error) {
	user, err := s.repo.SetBlocked(ctx, id, false)
	if err != nil {
		return types.User{}, err
	}
	s.events.Publish(ctx, events.UserUnblocked, actorID, id)
	return user, nil
}

// Delete removes an account and every task it owns. Attachment files left
// behind in object storage are removed best-effort after the rows are gone.
func (s *UserService) Delete(ctx context.Context, actorID, id int) error {
	objectKeys, err := s.repo.Delete(ctx, id)
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

	s.events.Publish(ctx, events.UserDeleted, actorID, id)
	return nil
}
