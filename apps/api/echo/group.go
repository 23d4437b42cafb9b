package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/chat"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
)

type groupApi struct {
	svc      *group.Service
	taskSvc  *task.Service
	subSvc   *submission.Service
	chatSvc  *chat.Service
	validate *validator.Validate
}

func registerGroupAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	svc *group.Service,
	taskSvc *task.Service,
	subSvc *submission.Service,
	chatSvc *chat.Service,
	validate *validator.Validate,
) {
	api := groupApi{
		svc:      svc,
		taskSvc:  taskSvc,
		subSvc:   subSvc,
		chatSvc:  chatSvc,
		validate: validate,
	}

	gg := g.Group("/groups", auth)
	gg.GET("", api.list)
	gg.POST("", api.create)
	gg.POST("/join", api.join)
	gg.POST("/leave", api.leave)

	// detail endpoints
	dg := gg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/promote", api.promote)
	dg.POST("/rotate-code", api.rotateCode)
	dg.GET("/members", api.members)
	dg.POST("/members", api.addMembers)
	dg.DELETE("/members/:email", api.removeMember)
	dg.GET("/progress", api.progress)
	dg.GET("/tasks", api.tasks)
	dg.POST("/tasks", api.createTask)
	dg.GET("/messages", api.messages)
	dg.POST("/messages", api.postMessage)
	dg.GET("/messages/stream", api.streamMessages)
}

// Handlers

func (api *groupApi) list(ctx echo.Context) error {
	grps, err := api.svc.ListMine(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	return ctx.JSON(http.StatusOK, grps)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) join(ctx echo.Context) error {
	var data JoinRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}

	grp, err := api.svc.RedeemJoinCode(ctx.Request().Context(), data.Code)
	if err != nil {
		return errors.Wrap(err, "redeeming join code")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) leave(ctx echo.Context) error {
	if err := api.svc.Leave(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}

	grp, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) promote(ctx echo.Context) error {
	grp, err := api.svc.Promote(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "promoting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) rotateCode(ctx echo.Context) error {
	grp, err := api.svc.RotateJoinCode(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rotating join code")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) addMembers(ctx echo.Context) error {
	var data group.AddMembers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMembers")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	results, err := api.svc.AddMembers(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding members")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *groupApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) progress(ctx echo.Context) error {
	pct, err := api.subSvc.Progress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{Progress: pct})
}

func (api *groupApi) tasks(ctx echo.Context) error {
	tasks, err := api.taskSvc.ListByGroup(ctx.Request().Context(), ctx.Param("id"), task.Status(ctx.QueryParam("status")))
	if err != nil {
		return errors.Wrap(err, "listing tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *groupApi) createTask(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return bindErrorField(err, "points", "points must be a number")
	}
	data.GroupID = ctx.Param("id")

	t, err := api.taskSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

type (
	JoinRequest struct {
		Code string `json:"code"`
	}

	ProgressResponse struct {
		Progress int `json:"progress"` // percent
	}
)
