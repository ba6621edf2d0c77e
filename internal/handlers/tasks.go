package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxAttachmentBytes = 64 << 20
	formFieldFile      = "file"
)

// TaskHandler provides the owner-scoped task endpoints.
type TaskHandler struct {
	taskService       *services.TaskService
	attachmentService *services.AttachmentService
}

// NewTaskHandler constructs a handler with the provided services.
func NewTaskHandler(taskService *services.TaskService, attachmentService *services.AttachmentService) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		attachmentService: attachmentService,
	}
}

// TaskRouter registers task routes on the given router. Every route is
// behind the auth gate; ownership scoping happens in the repositories.
func TaskRouter(
	r chi.Router,
	taskService *services.TaskService,
	attachmentService *services.AttachmentService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTaskHandler(taskService, attachmentService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
		r.Route("/attachments", func(r chi.Router) {
			r.Get("/", handler.ListAttachments)
			r.Post("/", handler.UploadAttachment)
			r.Get("/{attachmentID}", handler.DownloadAttachment)
			r.Delete("/{attachmentID}", handler.DeleteAttachment)
		})
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized")
		return
	}

	tasks, err := h.taskService.List(r.Context(), identity.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	writeJSON(w, http.StatusOK, TaskListResponse{Success: true, Tasks: tasks})
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized")
		return
	}

	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	priority, err := normalizePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := types.Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Priority:    priority,
		DueDate:     req.DueDate,
		Completed:   req.Completed.value,
		OwnerID:     identity.ID,
	}

	created, err := h.taskService.Create(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, TaskResponse{Success: true, Message: "task created successfully", Task: created})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), id, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch task")
		return
	}

	writeJSON(w, http.StatusOK, TaskResponse{Success: true, Task: task})
}

// UpdateTask applies a partial update: absent fields keep their current
// values. The current row is read owner-scoped, and the final write is a
// single conditional statement on id and owner, so a task deleted in
// between simply comes back not-found.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	var req TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.taskService.Get(r.Context(), id, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch task")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		priority, err := normalizePriority(*req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task.Priority = priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Completed.set {
		task.Completed = req.Completed.value
	}

	updated, err := h.taskService.Update(r.Context(), task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, TaskResponse{Success: true, Message: "task updated successfully", Task: updated})
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), id, identity.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	writeMessage(w, http.StatusOK, "task deleted successfully")
}

func (h *TaskHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	identity, taskID, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	attachments, err := h.attachmentService.List(r.Context(), taskID, identity.ID)
	if err != nil {
		writeAttachmentError(w, err, "failed to list attachments")
		return
	}

	writeJSON(w, http.StatusOK, AttachmentListResponse{Success: true, Attachments: attachments})
}

func (h *TaskHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	identity, taskID, ok := h.taskRequest(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	fileHeader, err := attachmentFileHeader(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fileHeader.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att, err := h.attachmentService.Upload(r.Context(), taskID, identity.ID, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		writeAttachmentError(w, err, "failed to store attachment")
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{Success: true, Message: "attachment uploaded", Attachment: att})
}

func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	identity, taskID, ok := h.taskRequest(w, r)
	if !ok {
		return
	}
	attachmentID, err := parsePathID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	att, reader, err := h.attachmentService.Open(r.Context(), attachmentID, taskID, identity.ID)
	if err != nil {
		writeAttachmentError(w, err, "failed to fetch attachment")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already sent, so the response cannot change.
		logrus.WithError(err).WithField("attachment_id", att.ID).Warn("failed to stream attachment")
	}
}

func (h *TaskHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	identity, taskID, ok := h.taskRequest(w, r)
	if !ok {
		return
	}
	attachmentID, err := parsePathID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	if err := h.attachmentService.Delete(r.Context(), attachmentID, taskID, identity.ID); err != nil {
		writeAttachmentError(w, err, "failed to delete attachment")
		return
	}

	writeMessage(w, http.StatusOK, "attachment deleted")
}

// taskRequest resolves the identity and path task id shared by the
// task-scoped handlers, writing the error response itself on failure.
func (h *TaskHandler) taskRequest(w http.ResponseWriter, r *http.Request) (types.Identity, int, bool) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized")
		return types.Identity{}, 0, false
	}
	id, err := parsePathID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return types.Identity{}, 0, false
	}
	return identity, id, true
}

func writeAttachmentError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "attachment storage is not configured")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func attachmentFileHeader(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}
	files := form.File[formFieldFile]
	if len(files) == 0 {
		return nil, errors.New("file is required")
	}
	if len(files) > 1 {
		return nil, errors.New("only one file is allowed")
	}
	return files[0], nil
}

func parsePathID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func normalizePriority(raw string) (string, error) {
	priority := strings.ToLower(strings.TrimSpace(raw))
	if priority == "" {
		return types.PriorityMedium, nil
	}
	if !types.ValidPriority(priority) {
		return "", errors.New("invalid priority")
	}
	return priority, nil
}

// completedFlag decodes the completed field at the boundary. Accepted
// forms are JSON booleans and the strings "Yes"/"No"/"true"/"false"
// (case-insensitive); anything else is a validation error. Internally the
// field is always a plain bool.
type completedFlag struct {
	set   bool
	value bool
}

func (f *completedFlag) UnmarshalJSON(data []byte) error {
	// json.Unmarshal into a bool treats null as a no-op, which would read
	// as an explicit false here.
	if string(data) == "null" {
		return errors.New("invalid completed value")
	}

	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		f.set = true
		f.value = asBool
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch strings.ToLower(strings.TrimSpace(asString)) {
		case "yes", "true":
			f.set = true
			f.value = true
			return nil
		case "no", "false":
			f.set = true
			f.value = false
			return nil
		}
	}

	return errors.New("invalid completed value")
}

type TaskCreateRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    string        `json:"priority"`
	DueDate     *time.Time    `json:"due_date"`
	Completed   completedFlag `json:"completed"`
}

type TaskUpdateRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Priority    *string       `json:"priority"`
	DueDate     *time.Time    `json:"due_date"`
	Completed   completedFlag `json:"completed"`
}

type TaskResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Task    types.Task `json:"task"`
}

type TaskListResponse struct {
	Success bool         `json:"success"`
	Tasks   []types.Task `json:"tasks"`
}

type AttachmentResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Attachment types.Attachment `json:"attachment"`
}

type AttachmentListResponse struct {
	Success     bool               `json:"success"`
	Attachments []types.Attachment `json:"attachments"`
}
