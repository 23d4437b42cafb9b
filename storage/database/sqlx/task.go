package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/task"
)

const taskColumns = "id, group_id, title, description, due_date, status, priority, points, labels, subtasks, " +
	"created_by, created_at, updated_at"

type taskRow struct {
	ID          string         `db:"id"`
	GroupID     string         `db:"group_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	DueDate     null.Time      `db:"due_date"`
	Status      string         `db:"status"`
	Priority    string         `db:"priority"`
	Points      int            `db:"points"`
	Labels      pq.StringArray `db:"labels"`
	Subtasks    types.JSONText `db:"subtasks"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   null.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func newTaskRow(t task.Task) (taskRow, error) {
	subtasks := t.Subtasks
	if subtasks == nil {
		subtasks = []task.Subtask{}
	}
	data, err := json.Marshal(subtasks)
	if err != nil {
		return taskRow{}, errors.Wrap(err, "encoding subtasks")
	}
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	return taskRow{
		ID:          t.ID,
		GroupID:     t.GroupID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     null.NewTime(t.DueDate, !t.DueDate.IsZero()),
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Points:      t.Points,
		Labels:      labels,
		Subtasks:    types.JSONText(data),
		CreatedBy:   t.CreatedBy,
		CreatedAt:   null.TimeFrom(t.CreatedAt),
		UpdatedAt:   null.TimeFrom(t.UpdatedAt),
	}, nil
}

func (r taskRow) toTask() (task.Task, error) {
	subtasks := make([]task.Subtask, 0)
	if len(r.Subtasks) > 0 {
		if err := r.Subtasks.Unmarshal(&subtasks); err != nil {
			return task.Task{}, errors.Wrap(err, "decoding subtasks")
		}
	}
	t := task.Task{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		Priority:    task.Priority(r.Priority),
		Points:      r.Points,
		Labels:      []string(r.Labels),
		Subtasks:    subtasks,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.Time.UTC(),
		UpdatedAt:   r.UpdatedAt.Time.UTC(),
	}
	if r.DueDate.Valid {
		t.DueDate = r.DueDate.Time.UTC()
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	return t, nil
}

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	row, err := newTaskRow(t)
	if err != nil {
		return task.Task{}, err
	}
	q := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :group_id, :title, :description, :due_date, :status, :priority, :points, :labels, :subtasks,
		:created_by, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, row); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (task.Task, error) {
	if !isUUID(id) {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	q := "SELECT " + taskColumns + " FROM tasks WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &row, q, id); err != nil {
		if isNoRows(err) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "selecting task")
	}
	return row.toTask()
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter, exec ...core.DBExecutor) ([]task.Task, error) {
	w := &where{}
	if filter.GroupID != "" {
		w.add("group_id = ?", filter.GroupID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	q := repo.db.db.Rebind("SELECT " + taskColumns + " FROM tasks" + w.String() + " ORDER BY due_date NULLS LAST, created_at, id")

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, repo.db.ext(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	row, err := newTaskRow(t)
	if err != nil {
		return task.Task{}, err
	}
	q := `UPDATE tasks SET title = :title, description = :description, due_date = :due_date, status = :status,
		priority = :priority, points = :points, labels = :labels, subtasks = :subtasks, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, row)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if n, err := rowsAffected(res); err != nil {
		return task.Task{}, err
	} else if n == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return task.ErrNotFound
	}
	res, err := repo.db.ext(exec).ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return task.ErrNotFound
	}
	return nil
}
