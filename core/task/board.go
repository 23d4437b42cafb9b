package task

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Mover persists a status change; *Service implements it.
type Mover interface {
	Move(ctx context.Context, id string, status Status, opts MoveOptions) (Task, error)
}

// MoveCommand moves a task between two board columns.
type MoveCommand struct {
	TaskID string
	From   Status
	To     Status
}

func (c MoveCommand) Inverse() MoveCommand {
	return MoveCommand{TaskID: c.TaskID, From: c.To, To: c.From}
}

var errNotOnBoard = errors.New("task is not on the board")

// Board is a local kanban view that applies moves immediately and undoes them when the Mover rejects them.
type Board struct {
	mu     sync.Mutex
	mover  Mover
	tasks  map[string]Task
	order  []string
	onFail func(cmd MoveCommand, err error)
}

func NewBoard(tasks []Task, mover Mover) *Board {
	b := &Board{
		mover: mover,
		tasks: make(map[string]Task, len(tasks)),
		order: make([]string, 0, len(tasks)),
	}
	for _, t := range tasks {
		b.tasks[t.ID] = t
		b.order = append(b.order, t.ID)
	}
	return b
}

// OnFailure registers a callback invoked after a rejected move has been rolled back.
func (b *Board) OnFailure(fn func(cmd MoveCommand, err error)) {
	b.mu.Lock()
	b.onFail = fn
	b.mu.Unlock()
}

// Column returns the tasks in status, in board order.
func (b *Board) Column(status Status) []Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	col := make([]Task, 0)
	for _, id := range b.order {
		if t := b.tasks[id]; t.Status == status {
			col = append(col, t)
		}
	}
	return col
}

func (b *Board) Task(id string) (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	return t, ok
}

// apply executes cmd if the task is still where cmd expects it and reports whether it did.
func (b *Board) apply(cmd MoveCommand) bool {
	t, ok := b.tasks[cmd.TaskID]
	if !ok || t.Status != cmd.From {
		return false
	}
	t.Status = cmd.To
	b.tasks[cmd.TaskID] = t
	return true
}

// Move applies the move locally, then persists it.
// On rejection the inverse command is replayed, unless a later move already took the task elsewhere.
func (b *Board) Move(ctx context.Context, id string, to Status, opts MoveOptions) error {
	b.mu.Lock()
	t, ok := b.tasks[id]
	if !ok {
		b.mu.Unlock()
		return errNotOnBoard
	}
	cmd := MoveCommand{TaskID: id, From: t.Status, To: to}
	b.apply(cmd)
	b.mu.Unlock()

	saved, err := b.mover.Move(ctx, id, to, opts)

	b.mu.Lock()
	if err != nil {
		b.apply(cmd.Inverse())
		onFail := b.onFail
		b.mu.Unlock()
		if onFail != nil {
			onFail(cmd, err)
		}
		return err
	}
	// reconcile with the stored task unless a later move is pending on it
	if cur := b.tasks[id]; cur.Status == cmd.To {
		b.tasks[id] = saved
	}
	b.mu.Unlock()
	return nil
}
