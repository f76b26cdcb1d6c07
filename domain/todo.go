package domain

import (
	"strings"
	"time"
)

// Priority levels accepted on a todo.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultCategory is assigned when a todo is created without one.
const DefaultCategory = "general"

// Subtask is an embedded checklist item on a todo.
type Subtask struct {
	ID        string    `bson:"id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Completed bool      `bson:"completed" json:"completed"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Todo is a single tracked item. Order is the 1-based display position
// within the (UserID, Category, Archived=false) partition; the ordering
// engine keeps those values unique and contiguous.
type Todo struct {
	ID           string     `bson:"_id" json:"id"`
	UserID       string     `bson:"userId" json:"userId"`
	Title        string     `bson:"title" json:"title"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	Completed    bool       `bson:"completed" json:"completed"`
	Priority     string     `bson:"priority" json:"priority"`
	Category     string     `bson:"category" json:"category"`
	Tags         []string   `bson:"tags,omitempty" json:"tags,omitempty"`
	DueDate      *time.Time `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	ReminderDate *time.Time `bson:"reminderDate,omitempty" json:"reminderDate,omitempty"`
	Order        int        `bson:"order" json:"order"`
	Archived     bool       `bson:"archived" json:"archived"`
	Subtasks     []Subtask  `bson:"subtasks,omitempty" json:"subtasks,omitempty"`
	CompletedAt  *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ArchivedAt   *time.Time `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// TodoChanges carries the mutable fields of an update request. Nil pointers
// mean "leave unchanged".
type TodoChanges struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Completed    *bool      `json:"completed,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	Category     *string    `json:"category,omitempty"`
	Tags         *[]string  `json:"tags,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	Archived     *bool      `json:"archived,omitempty"`
}

// ApplyTransition merges changes into todo and maintains the derived
// timestamps: CompletedAt is set on the false→true transition and cleared on
// true→false, ArchivedAt likewise. It is a pure state transition invoked
// explicitly by every update path; now is injected for determinism.
func ApplyTransition(todo Todo, changes TodoChanges, now time.Time) Todo {
	if changes.Title != nil {
		todo.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		todo.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.Priority != nil {
		todo.Priority = *changes.Priority
	}
	if changes.Category != nil {
		cat := strings.TrimSpace(*changes.Category)
		if cat == "" {
			cat = DefaultCategory
		}
		todo.Category = cat
	}
	if changes.Tags != nil {
		todo.Tags = NormalizeTags(*changes.Tags)
	}
	if changes.DueDate != nil {
		todo.DueDate = changes.DueDate
	}
	if changes.ReminderDate != nil {
		todo.ReminderDate = changes.ReminderDate
	}
	if changes.Completed != nil && *changes.Completed != todo.Completed {
		todo.Completed = *changes.Completed
		if todo.Completed {
			ts := now
			todo.CompletedAt = &ts
		} else {
			todo.CompletedAt = nil
		}
	}
	if changes.Archived != nil && *changes.Archived != todo.Archived {
		todo.Archived = *changes.Archived
		if todo.Archived {
			ts := now
			todo.ArchivedAt = &ts
		} else {
			todo.ArchivedAt = nil
		}
	}
	todo.UpdatedAt = now
	return todo
}

// NormalizeTags lowercases, trims and deduplicates tags, preserving first
// occurrence order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ValidPriority reports whether p is one of the accepted levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
