package account

import (
	"context"
	"net/mail"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
)

var (
	// errors
	ErrNotFound           = core.NewError(core.KindNotFound, "account not found")
	ErrSAPIDNotFound      = core.NewError(core.KindNotFound, "SAP ID not found")
	ErrInvalidCredentials = core.NewError(core.KindInvalidCredentials, "invalid credentials")
	ErrAccountDeactivated = core.NewError(core.KindForbidden, "account deactivated")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrSAPIDExists        = errors.New("an account with this SAP ID already exists")
	errInvalidResetLink   = errors.New("the password reset link is invalid or has expired")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrSAPIDExists when another account, not in excluded, holds
		// one of the values.
		CheckUniqueness(ctx context.Context, email, sapID string, excluded []Account, exec ...core.DBExecutor) error
		CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		// GetAccount finds an account by the first non-empty field of filter: ID, Email, then SAPID.
		GetAccount(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Account, error)
		// QueryAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Account.Name, Account.Email or Account.SAPID.
		QueryAccounts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Account, error)
		UpdateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf, logger: logger}
}

// CheckUniqueness maps uniqueness conflicts to field validation errors.
func (svc *Service) CheckUniqueness(email, sapID string, excluded ...Account) error {
	if err := svc.repo.CheckUniqueness(context.Background(), email, sapID, excluded); err != nil {
		var field string
		switch err {
		case ErrEmailExists:
			field = "email"
		case ErrSAPIDExists:
			field = "sap_id"
		default:
			return errors.Wrap(err, "checking account uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates an account. Only admins may register other admins.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Account, error) {
	switch na.Role {
	case RoleStudent, RoleMentor:
	case RoleAdmin:
		if _, err := Require(ctx, RoleAdmin); err != nil {
			return Account{}, err
		}
	default:
		return Account{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: ErrUnknownRole.Error()})
	}

	now := core.NowFunc()
	acc := Account{
		ID:        uuid.New().String(),
		Email:     core.CleanString(na.Email, true /* lower */),
		Name:      core.CleanString(na.Name),
		SAPID:     core.CleanString(na.SAPID),
		Role:      na.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "setting password")
	}
	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}
	return acc, nil
}

// ResolveIdentifier maps a sign-in identifier to an email.
// Identifiers containing "@" are emails; anything else is a SAP ID.
func (svc *Service) ResolveIdentifier(ctx context.Context, identifier string) (string, error) {
	identifier = core.CleanString(identifier)
	if identifier == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "identifier", Error: "this field is required"})
	}
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier), nil
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{SAPID: identifier})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", ErrSAPIDNotFound
		}
		return "", errors.Wrap(err, "resolving SAP ID")
	}
	return acc.Email, nil
}

// Authenticate checks credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, identifier, pwd string) (Account, error) {
	email, err := svc.ResolveIdentifier(ctx, identifier)
	if err != nil {
		return Account{}, err
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{Email: email})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, errors.Wrap(err, "finding account by email")
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return Account{}, ErrAccountDeactivated
	}
	acc.LastLogin = core.NowFunc()
	acc, err = svc.repo.UpdateAccount(ctx, acc)
	if err != nil {
		return Account{}, errors.Wrap(err, "setting lastLogin")
	}
	return acc, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Query lists accounts; admins only.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Account, error) {
	if _, err := Require(ctx, RoleAdmin); err != nil {
		return nil, err
	}
	return svc.repo.QueryAccounts(ctx, filter, ordering)
}

// SetActive (de)activates an account; admins only and never themselves.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (Account, error) {
	admin, err := Require(ctx, RoleAdmin)
	if err != nil {
		return Account{}, err
	}
	if admin.ID == id {
		return Account{}, core.ErrForbidden
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: id})
	if err != nil {
		return Account{}, err
	}
	acc.IsActive = active
	acc.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateAccount(ctx, acc)
}

// RequestPasswordReset mails a reset link to email if it belongs to an active account.
// redirectURL overrides the frontend page the link points to.
func (svc *Service) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !acc.IsActive {
		return nil
	}
	token := newResetToken(acc, svc.conf.SecretKey, core.NowFunc())
	if redirectURL == "" {
		redirectURL = strings.TrimRight(svc.conf.FrontendBaseURL, "/") + "/update-password"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name, Address: acc.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": acc.Name,
			"Link": redirectURL + "?" + url.Values{"uid": {acc.ID}, "token": {token.String()}}.Encode(),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetPassword) error {
	invalid := core.NewValidationError(errInvalidResetLink)

	token, err := parseResetToken(data.Token)
	if err != nil {
		return invalid
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: data.UID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if err = token.check(acc, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta, core.NowFunc()); err != nil {
		return invalid
	}
	return svc.setPassword(ctx, acc, data.Password)
}

// UpdatePassword changes the password of the signed-in account.
func (svc *Service) UpdatePassword(ctx context.Context, data UpdatePassword) error {
	me, err := Require(ctx)
	if err != nil {
		return err
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: me.ID})
	if err != nil {
		return errors.Wrap(err, "finding account by ID")
	}
	if err = acc.CheckPassword(data.CurrentPassword); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "current_password", Error: "wrong password"})
	}
	return svc.setPassword(ctx, acc, data.Password)
}

func (svc *Service) setPassword(ctx context.Context, acc Account, pwd string) error {
	if err := acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	acc.UpdatedAt = core.NowFunc()
	if _, err := svc.repo.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return nil
}
