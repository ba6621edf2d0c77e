package types

import "time"

// Task priorities. Priority is stored as one of these lowercase strings;
// anything else is rejected at the request boundary.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is a recognized priority value.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single to-do item owned by exactly one account.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the task. Required, non-empty.
	Title string `json:"title" db:"title"`

	// Description is an optional free-form body.
	Description string `json:"description" db:"description"`

	// Priority is one of "low", "medium", "high".
	Priority string `json:"priority" db:"priority"`

	// DueDate is the optional deadline for the task.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// Completed marks the task as done. A task is either pending or
	// completed; there are no other states.
	Completed bool `json:"completed" db:"completed"`

	// OwnerID references the account that created the task. Immutable
	// after creation; non-admin callers only ever see their own tasks.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskOwner is the subset of the owning account embedded in admin task
// listings.
type TaskOwner struct {
	ID    int    `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// TaskWithOwner is a task joined with its owning account, returned by the
// admin all-tasks listing.
type TaskWithOwner struct {
	Task
	Owner TaskOwner `json:"owner"`
}

// Attachment is a file stored in object storage and associated with a task.
// Attachments are only reachable through their task, so they inherit the
// task's ownership rules.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	// TaskID references the task this attachment belongs to.
	TaskID int `json:"task_id" db:"task_id"`

	// Filename is the original upload filename.
	Filename string `json:"filename" db:"filename"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the object size in bytes.
	Size int64 `json:"size" db:"size"`

	// ObjectKey is the identifier of the file in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	// CreatedAt is the timestamp at which the attachment was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
