package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *submission.Service) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions", auth)
	sg.GET("/mine", api.mine)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id/grade", api.grade)
}

// Handlers

func (api *submissionApi) mine(ctx echo.Context) error {
	subs, err := api.svc.ListMine(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	var data submission.GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return bindErrorField(err, "grade", "grade must be a whole number")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
