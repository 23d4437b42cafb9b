package task

import (
	"time"

	"github.com/trezcool/trackit/core"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusSubmitted  Status = "submitted"
	StatusDone       Status = "done"
)

var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusSubmitted, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusSubmitted, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"` // UTC; zero when unset
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Points      int       `json:"points"`
	Labels      []string  `json:"labels"`
	Subtasks    []Subtask `json:"subtasks"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// SubtaskProgress is the completed/total ratio of subtasks in [0, 1]; 0 without subtasks.
func (t Task) SubtaskProgress() float64 {
	if len(t.Subtasks) == 0 {
		return 0
	}
	var done int
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return float64(done) / float64(len(t.Subtasks))
}

// IsOverdue reports whether the due date has passed while the task is not done.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.DueDate.IsZero() && now.After(t.DueDate) && t.Status != StatusDone
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Priority    Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points      int       `json:"points" validate:"min=0"`
	Labels      []string  `json:"labels"`
}

func (nt *NewTask) Clean() {
	nt.GroupID = core.CleanString(nt.GroupID)
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if nt.Priority == "" {
		nt.Priority = PriorityMedium
	}
	nt.Labels = cleanLabels(nt.Labels)
}

// UpdateTask carries the editable fields of a Task; nil fields are left unchanged.
type UpdateTask struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      *Status    `json:"status"`
	Priority    *Priority  `json:"priority"`
	Points      *int       `json:"points"`
	Labels      []string   `json:"labels"`
	Subtasks    []Subtask  `json:"subtasks"`
}

type MoveOptions struct {
	// Confirm must be set to move a task out of done.
	Confirm bool `json:"confirm"`
}

type QueryFilter struct {
	GroupID string
	Status  Status
}

func cleanLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	cleaned := make([]string, 0, len(labels))
	for _, l := range labels {
		l = core.CleanString(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		cleaned = append(cleaned, l)
	}
	return cleaned
}
