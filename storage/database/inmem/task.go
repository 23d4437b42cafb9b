package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	defer repo.db.lockWrite(exec)()
	repo.db.tables.tasks[t.ID] = copyTask(t)
	return t, nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string, _ ...core.DBExecutor) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tables.tasks[id]; ok {
		return copyTask(t), nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, filter task.QueryFilter, _ ...core.DBExecutor) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tables.tasks {
		if filter.GroupID != "" && t.GroupID != filter.GroupID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		tasks = append(tasks, copyTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate.IsZero() != b.DueDate.IsZero():
			return b.DueDate.IsZero() // unset due dates last
		case !a.DueDate.Equal(b.DueDate):
			return a.DueDate.Before(b.DueDate)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task, exec ...core.DBExecutor) (task.Task, error) {
	defer repo.db.lockWrite(exec)()

	orig, ok := repo.db.tables.tasks[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	t.GroupID = orig.GroupID
	t.CreatedBy = orig.CreatedBy
	t.CreatedAt = orig.CreatedAt
	repo.db.tables.tasks[t.ID] = copyTask(t)
	return t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.tables.tasks[id]; !ok {
		return task.ErrNotFound
	}
	repo.db.tables.deleteTask(id)
	return nil
}

// deleteTask removes a task and its submissions; the caller holds the write lock.
func (t *tables) deleteTask(id string) {
	delete(t.tasks, id)
	for subID, s := range t.submissions {
		if s.TaskID == id {
			delete(t.submissions, subID)
		}
	}
}
