package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
)

type taskApi struct {
	svc    *task.Service
	subSvc *submission.Service
}

func registerTaskAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *task.Service, subSvc *submission.Service) {
	api := taskApi{svc: svc, subSvc: subSvc}

	tg := g.Group("/tasks/:id", auth)
	tg.GET("", api.retrieve)
	tg.PUT("", api.update)
	tg.DELETE("", api.destroy)
	tg.PATCH("/status", api.move)
	tg.POST("/submissions", api.submit)
	tg.GET("/submissions", api.submissions)
}

// Handlers

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}

// update applies the edits to a draft of the task and saves it in one write.
// A status change goes through the same rules as a board move.
func (api *taskApi) update(ctx echo.Context) error {
	var data UpdateTaskRequest
	if err := ctx.Bind(&data); err != nil {
		return bindErrorField(err, "points", "points must be a number")
	}

	rctx := ctx.Request().Context()
	draft, err := api.svc.Edit(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "editing task")
	}
	if err = draft.Apply(data.UpdateTask); err != nil {
		return err
	}
	t, err := api.svc.Save(rctx, draft, task.MoveOptions{Confirm: data.Confirm})
	if err != nil {
		return errors.Wrap(err, "saving task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) move(ctx echo.Context) error {
	var data MoveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveRequest")
	}

	t, err := api.svc.Move(ctx.Request().Context(), ctx.Param("id"), data.Status, task.MoveOptions{Confirm: data.Confirm})
	if err != nil {
		return errors.Wrap(err, "moving task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) submit(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "this field is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	sub, err := api.subSvc.Submit(ctx.Request().Context(), ctx.Param("id"), submission.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        file,
	})
	if err != nil {
		return errors.Wrap(err, "submitting file")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *taskApi) submissions(ctx echo.Context) error {
	subs, err := api.subSvc.ListByTask(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

type (
	UpdateTaskRequest struct {
		task.UpdateTask
		Confirm bool `json:"confirm"`
	}

	MoveRequest struct {
		Status  task.Status `json:"status"`
		Confirm bool        `json:"confirm"`
	}
)
