package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/notice"
)

type noticeApi struct {
	svc *notice.Service
}

func registerNoticeAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *notice.Service) {
	api := noticeApi{svc: svc}

	ng := g.Group("/notices", auth)
	ng.GET("", api.list)
	ng.POST("", api.create)
	ng.DELETE("/:id", api.destroy)
}

// Handlers

// list returns the global notices plus those of the group_id query param,
// or everything visible to the signed-in account when no group is given.
func (api *noticeApi) list(ctx echo.Context) error {
	var (
		notices []notice.Notice
		err     error
	)
	if groupID := ctx.QueryParam("group_id"); groupID != "" {
		notices, err = api.svc.List(ctx.Request().Context(), &groupID)
	} else {
		notices, err = api.svc.ListForSession(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}

	n, err := api.svc.Post(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "posting notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}
