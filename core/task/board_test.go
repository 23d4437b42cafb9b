package task

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moverFunc func(ctx context.Context, id string, status Status, opts MoveOptions) (Task, error)

func (f moverFunc) Move(ctx context.Context, id string, status Status, opts MoveOptions) (Task, error) {
	return f(ctx, id, status, opts)
}

func boardTasks() []Task {
	return []Task{
		{ID: "t1", Title: "Wireframes", Status: StatusTodo},
		{ID: "t2", Title: "Report", Status: StatusTodo},
		{ID: "t3", Title: "Demo", Status: StatusDone},
	}
}

func titles(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestBoard_Move(t *testing.T) {
	errRejected := errors.New("rejected")

	t.Run("accepted", func(t *testing.T) {
		b := NewBoard(boardTasks(), moverFunc(func(_ context.Context, id string, status Status, _ MoveOptions) (Task, error) {
			return Task{ID: id, Title: "Wireframes v2", Status: status}, nil
		}))

		require.NoError(t, b.Move(context.Background(), "t1", StatusReview, MoveOptions{}))
		assert.Equal(t, []string{"Report"}, titles(b.Column(StatusTodo)))
		assert.Equal(t, []string{"Wireframes v2"}, titles(b.Column(StatusReview)))
	})

	t.Run("rejected moves roll back", func(t *testing.T) {
		var failed []MoveCommand
		b := NewBoard(boardTasks(), moverFunc(func(context.Context, string, Status, MoveOptions) (Task, error) {
			return Task{}, errRejected
		}))
		b.OnFailure(func(cmd MoveCommand, err error) {
			failed = append(failed, cmd)
			assert.Equal(t, errRejected, err)
		})

		assert.Equal(t, errRejected, b.Move(context.Background(), "t3", StatusTodo, MoveOptions{}))
		got, ok := b.Task("t3")
		require.True(t, ok)
		assert.Equal(t, StatusDone, got.Status)
		assert.Equal(t, []MoveCommand{{TaskID: "t3", From: StatusDone, To: StatusTodo}}, failed)
		assert.Equal(t, []string{"Wireframes", "Report"}, titles(b.Column(StatusTodo)))
	})

	t.Run("unknown task", func(t *testing.T) {
		b := NewBoard(boardTasks(), moverFunc(func(context.Context, string, Status, MoveOptions) (Task, error) {
			t.Fatal("mover must not be called")
			return Task{}, nil
		}))
		assert.Equal(t, errNotOnBoard, b.Move(context.Background(), "nope", StatusDone, MoveOptions{}))
	})

	t.Run("late rejection does not undo a newer move", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		calls := 0
		b := NewBoard(boardTasks(), moverFunc(func(_ context.Context, id string, status Status, _ MoveOptions) (Task, error) {
			calls++
			if calls == 1 {
				close(entered)
				<-release
				return Task{}, errRejected
			}
			return Task{ID: id, Title: "Wireframes", Status: status}, nil
		}))

		done := make(chan error)
		go func() { done <- b.Move(context.Background(), "t1", StatusReview, MoveOptions{}) }()
		<-entered

		require.NoError(t, b.Move(context.Background(), "t1", StatusDone, MoveOptions{}))
		close(release)
		assert.Equal(t, errRejected, <-done)

		got, _ := b.Task("t1")
		assert.Equal(t, StatusDone, got.Status)
	})
}

func TestMoveCommand_Inverse(t *testing.T) {
	cmd := MoveCommand{TaskID: "t1", From: StatusTodo, To: StatusDone}
	assert.Equal(t, MoveCommand{TaskID: "t1", From: StatusDone, To: StatusTodo}, cmd.Inverse())
	assert.Equal(t, cmd, cmd.Inverse().Inverse())
}
