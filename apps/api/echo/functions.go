package echoapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

// functionsApi serves machine-to-machine endpoints authenticated with the shared functions key.
// Responses use the bare {ok} / {error} shape its callers expect.
type functionsApi struct {
	invitations InvitationSender
	logger      core.Logger
}

func registerFunctionsAPI(g *echo.Group, invitations InvitationSender, conf *core.Config, logger core.Logger) {
	api := functionsApi{invitations: invitations, logger: logger}

	keyAuth := middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			if conf.FunctionsKey == "" {
				return false, nil
			}
			return subtle.ConstantTimeCompare([]byte(key), []byte(conf.FunctionsKey)) == 1, nil
		},
	})

	fg := g.Group("/functions", keyAuth)
	fg.POST("/send-join-code", api.sendJoinCode)
}

func (api *functionsApi) sendJoinCode(ctx echo.Context) error {
	var inv outbox.Invitation
	if err := ctx.Bind(&inv); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	inv.Email = core.CleanString(inv.Email, true /* lower */)
	if err := inv.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := api.invitations.SendInvitation(ctx.Request().Context(), inv); err != nil {
		api.logger.Error(fmt.Sprintf("sending join code to %s: %v", inv.Email, err), err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"ok": true})
}
