package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// In-memory fakes implementing the service repository interfaces, so the
// full middleware/handler stack runs against real HTTP requests without a
// database.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
	tasks  *fakeTaskRepo
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id int, name, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == email && existing.ID != id {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Name = name
	user.Email = email
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return user, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) SetBlocked(_ context.Context, id int, blocked bool) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Blocked = blocked
	r.users[id] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) ([]string, error) {
	r.mu.Lock()
	if _, ok := r.users[id]; !ok {
		r.mu.Unlock()
		return nil, store.ErrNotFound
	}
	delete(r.users, id)
	r.mu.Unlock()

	if r.tasks != nil {
		return r.tasks.deleteByOwner(id), nil
	}
	return nil, nil
}

type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]types.Task
	users  *fakeUserRepo
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[int]types.Task)}
}

func (r *fakeTaskRepo) ListByOwner(_ context.Context, ownerID int) ([]types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]types.Task, 0)
	for _, task := range r.tasks {
		if task.OwnerID == ownerID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (r *fakeTaskRepo) ListAll(_ context.Context) ([]types.TaskWithOwner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]types.TaskWithOwner, 0)
	for _, task := range r.tasks {
		entry := types.TaskWithOwner{Task: task}
		if r.users != nil {
			if owner, err := r.users.GetByID(context.Background(), task.OwnerID); err == nil {
				entry.Owner = types.TaskOwner{ID: owner.ID, Name: owner.Name, Email: owner.Email}
			}
		}
		tasks = append(tasks, entry)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (r *fakeTaskRepo) Get(_ context.Context, id, ownerID int) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return types.Task{}, store.ErrNotFound
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id, ownerID int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	delete(r.tasks, id)
	return nil, nil
}

func (r *fakeTaskRepo) deleteByOwner(ownerID int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, task := range r.tasks {
		if task.OwnerID == ownerID {
			delete(r.tasks, id)
		}
	}
	return nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	nextID      int
	attachments map[int]types.Attachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: make(map[int]types.Attachment)}
}

func (r *fakeAttachmentRepo) Create(_ context.Context, att types.Attachment) (types.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	att.ID = r.nextID
	att.CreatedAt = time.Now()
	r.attachments[att.ID] = att
	return att, nil
}

func (r *fakeAttachmentRepo) ListByTask(_ context.Context, taskID int) ([]types.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attachments := make([]types.Attachment, 0)
	for _, att := range r.attachments {
		if att.TaskID == taskID {
			attachments = append(attachments, att)
		}
	}
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].ID < attachments[j].ID })
	return attachments, nil
}

func (r *fakeAttachmentRepo) Get(_ context.Context, id, taskID int) (types.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attachments[id]
	if !ok || att.TaskID != taskID {
		return types.Attachment{}, store.ErrNotFound
	}
	return att, nil
}

func (r *fakeAttachmentRepo) Delete(_ context.Context, id, taskID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attachments[id]
	if !ok || att.TaskID != taskID {
		return "", store.ErrNotFound
	}
	delete(r.attachments, id)
	return att.ObjectKey, nil
}

type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failReads bool
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
func (failingReader) Close() error             { return nil }

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	if s.failReads {
		return failingReader{}, nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type testEnv struct {
	router      *chi.Mux
	users       *fakeUserRepo
	tasks       *fakeTaskRepo
	attachments *fakeAttachmentRepo
	objects     *fakeObjectStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	userRepo := newFakeUserRepo()
	taskRepo := newFakeTaskRepo()
	userRepo.tasks = taskRepo
	taskRepo.users = userRepo
	attachmentRepo := newFakeAttachmentRepo()
	objectStore := newFakeObjectStore()

	userService := services.NewUserService(userRepo, nil, objectStore, log)
	taskService := services.NewTaskService(taskRepo, nil, objectStore, log)
	attachmentService := services.NewAttachmentService(taskRepo, attachmentRepo, objectStore)

	authMiddleware := RequireAuth(userService, []byte(testSecret))

	router := chi.NewRouter()
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, testSecret, time.Hour, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskService, attachmentService, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		AdminRouter(r, userService, taskService, authMiddleware)
	})

	return &testEnv{
		router:      router,
		users:       userRepo,
		tasks:       taskRepo,
		attachments: attachmentRepo,
		objects:     objectStore,
	}
}

// seedUser inserts an account directly and returns it with a valid token.
func (env *testEnv) seedUser(t *testing.T, name, email, password, role string) (types.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := env.users.Create(context.Background(), types.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hashed),
	})
	require.NoError(t, err)

	token, err := auth.IssueToken(user.ID, user.Role, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return user, token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&value))
	return value
}

func (env *testEnv) doRaw(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}
