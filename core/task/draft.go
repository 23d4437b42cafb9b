package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
)

var ErrSubtaskNotFound = core.NewError(core.KindNotFound, "subtask not found")

// Draft holds in-memory edits of a Task. Nothing is persisted until the draft is passed to Service.Save.
type Draft struct {
	task  Task
	dirty bool
}

func NewDraft(t Task) *Draft {
	t.Labels = append([]string(nil), t.Labels...)
	t.Subtasks = append([]Subtask(nil), t.Subtasks...)
	return &Draft{task: t}
}

// Task returns a copy of the edited task.
func (d *Draft) Task() Task {
	t := d.task
	t.Labels = append([]string(nil), d.task.Labels...)
	t.Subtasks = append([]Subtask(nil), d.task.Subtasks...)
	return t
}

func (d *Draft) Dirty() bool { return d.dirty }

// Apply copies the non-nil fields of ut into the draft.
func (d *Draft) Apply(ut UpdateTask) error {
	if ut.Title != nil {
		d.SetTitle(*ut.Title)
	}
	if ut.Description != nil {
		d.SetDescription(*ut.Description)
	}
	if ut.DueDate != nil {
		d.SetDueDate(*ut.DueDate)
	}
	if ut.Status != nil {
		if !ut.Status.Valid() {
			return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
		}
		d.task.Status = *ut.Status
		d.dirty = true
	}
	if ut.Priority != nil {
		if err := d.SetPriority(*ut.Priority); err != nil {
			return err
		}
	}
	if ut.Points != nil {
		if err := d.SetPoints(*ut.Points); err != nil {
			return err
		}
	}
	if ut.Labels != nil {
		d.task.Labels = cleanLabels(ut.Labels)
		d.dirty = true
	}
	if ut.Subtasks != nil {
		subtasks := make([]Subtask, 0, len(ut.Subtasks))
		for _, st := range ut.Subtasks {
			st.Title = core.CleanString(st.Title)
			if st.Title == "" {
				continue
			}
			if st.ID == "" {
				st.ID = uuid.New().String()
			}
			subtasks = append(subtasks, st)
		}
		d.task.Subtasks = subtasks
		d.dirty = true
	}
	return nil
}

func (d *Draft) SetTitle(title string) {
	d.task.Title = core.CleanString(title)
	d.dirty = true
}

func (d *Draft) SetDescription(desc string) {
	d.task.Description = core.CleanString(desc)
	d.dirty = true
}

func (d *Draft) SetDueDate(due time.Time) {
	d.task.DueDate = due.UTC()
	d.dirty = true
}

func (d *Draft) SetPriority(p Priority) error {
	if !p.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "priority", Error: "priority must be one of low, medium, high"})
	}
	d.task.Priority = p
	d.dirty = true
	return nil
}

func (d *Draft) SetPoints(points int) error {
	if points < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "points", Error: "points cannot be negative"})
	}
	d.task.Points = points
	d.dirty = true
	return nil
}

func (d *Draft) AddSubtask(title string) (Subtask, error) {
	title = core.CleanString(title)
	if title == "" {
		return Subtask{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	st := Subtask{ID: uuid.New().String(), Title: title}
	d.task.Subtasks = append(d.task.Subtasks, st)
	d.dirty = true
	return st, nil
}

func (d *Draft) ToggleSubtask(id string) error {
	i, err := d.subtaskIndex(id)
	if err != nil {
		return err
	}
	d.task.Subtasks[i].Completed = !d.task.Subtasks[i].Completed
	d.dirty = true
	return nil
}

func (d *Draft) DeleteSubtask(id string) error {
	i, err := d.subtaskIndex(id)
	if err != nil {
		return err
	}
	d.task.Subtasks = append(d.task.Subtasks[:i], d.task.Subtasks[i+1:]...)
	d.dirty = true
	return nil
}

// AddLabel adds label unless present and reports whether the draft changed.
func (d *Draft) AddLabel(label string) bool {
	label = core.CleanString(label)
	if label == "" {
		return false
	}
	for _, l := range d.task.Labels {
		if l == label {
			return false
		}
	}
	d.task.Labels = append(d.task.Labels, label)
	d.dirty = true
	return true
}

// RemoveLabel removes label and reports whether the draft changed.
func (d *Draft) RemoveLabel(label string) bool {
	for i, l := range d.task.Labels {
		if l == label {
			d.task.Labels = append(d.task.Labels[:i], d.task.Labels[i+1:]...)
			d.dirty = true
			return true
		}
	}
	return false
}

func (d *Draft) subtaskIndex(id string) (int, error) {
	for i, st := range d.task.Subtasks {
		if st.ID == id {
			return i, nil
		}
	}
	return -1, errors.Wrap(ErrSubtaskNotFound, id)
}
