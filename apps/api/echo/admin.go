package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/outbox"
)

type adminApi struct {
	accSvc    *account.Service
	outboxSvc *outbox.Service
}

func registerAdminAPI(g *echo.Group, auth echo.MiddlewareFunc, accSvc *account.Service, outboxSvc *outbox.Service) {
	api := adminApi{accSvc: accSvc, outboxSvc: outboxSvc}

	ag := g.Group("/admin", auth, adminMiddleware())
	ag.GET("/accounts", api.accounts)
	ag.POST("/accounts/:id/activate", api.activate)
	ag.POST("/accounts/:id/deactivate", api.deactivate)
	ag.GET("/outbox/failed", api.failedEvents)
	ag.POST("/outbox/:id/retry", api.retryEvent)
}

// Handlers

func (api *adminApi) accounts(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	accs, err := api.accSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accs == nil {
		accs = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accs)
}

func (api *adminApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *adminApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *adminApi) setActive(ctx echo.Context, active bool) error {
	acc, err := api.accSvc.SetActive(ctx.Request().Context(), ctx.Param("id"), active)
	if err != nil {
		return errors.Wrap(err, "setting account activity")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *adminApi) failedEvents(ctx echo.Context) error {
	events, err := api.outboxSvc.Failed(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing failed events")
	}
	if events == nil {
		events = []outbox.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *adminApi) retryEvent(ctx echo.Context) error {
	e, err := api.outboxSvc.Retry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrying event")
	}
	return ctx.JSON(http.StatusOK, e)
}
