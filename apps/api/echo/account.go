package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

type accountApi struct {
	svc      *account.Service
	validate *validator.Validate
	conf     *core.Config
	logger   core.Logger
}

func registerAccountAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	optionalAuth echo.MiddlewareFunc,
	svc *account.Service,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) {
	api := accountApi{
		svc:      svc,
		validate: validate,
		conf:     conf,
		logger:   logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ag.POST("/login", api.login)
	ag.POST("/register", api.register, optionalAuth) // admins registering admins must be signed in
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, auth)
	ag.PUT("/password", api.updatePassword, auth)
	ag.GET("/me", api.me, auth)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.svc.Authenticate(ctx.Request().Context(), data.Identifier, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetAccountClaims(acc, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Account: &acc})
}

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok && errors.Cause(herr.Internal) == account.ErrUnknownRole {
			return core.NewValidationError(herr.Internal, core.FieldError{Field: "role", Error: "role must be one of student, mentor, admin"})
		}
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	acc, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email, data.RedirectURL)
	if !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) updatePassword(ctx echo.Context) error {
	var data account.UpdatePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.UpdatePassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been updated."})
}

func (api *accountApi) me(ctx echo.Context) error {
	acc, err := getContextAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type (
	LoginRequest struct {
		Identifier string `json:"identifier" validate:"required"` // email or SAP ID
		Password   string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string           `json:"token"`
		Account *account.Account `json:"account,omitempty"`
	}

	PasswordResetRequest struct {
		Email       string `json:"email" validate:"required,email"`
		RedirectURL string `json:"redirect_url" validate:"omitempty,url"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Identifier = core.CleanString(lr.Identifier)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	pr.RedirectURL = core.CleanString(pr.RedirectURL)
	return validate.Struct(pr)
}
