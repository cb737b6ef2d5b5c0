package tasks

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the task state label. Any transition between values is allowed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

const (
	maxTitleRunes       = 200
	maxDescriptionRunes = 2000
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a single to-do item. JSON names follow the web client.
type Task struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Owner       string    `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status Status
	// Query matches a case-insensitive substring of the title.
	Query string
}

// CreateInput is a create request after boundary decoding.
type CreateInput struct {
	Title       string
	Description string
	Status      Status
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
}

// Changes is a validated Patch plus the new modification time, as handed to a Repository.
type Changes struct {
	Title       *string
	Description *string
	Status      *Status
	UpdatedAt   time.Time
}

var msgInvalidStatus = fmt.Sprintf("Status must be one of %s, %s, %s", StatusPending, StatusInProgress, StatusCompleted)

func normalizeTitle(op, raw string) (string, error) {
	title := strings.TrimSpace(raw)
	switch {
	case title == "":
		return "", invalid(op, "Title is required")
	case utf8.RuneCountInString(title) > maxTitleRunes:
		return "", invalid(op, fmt.Sprintf("Title must be at most %d characters", maxTitleRunes))
	}
	return title, nil
}

func checkDescription(op, desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionRunes {
		return invalid(op, fmt.Sprintf("Description must be at most %d characters", maxDescriptionRunes))
	}
	return nil
}
