package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/trackit/core"
)

type Account struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	SAPID        string    `json:"sap_id,omitempty" db:"sap_id"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login" db:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a Account) IsStudent() bool { return a.Role == RoleStudent }
func (a Account) IsMentor() bool  { return a.Role == RoleMentor }
func (a Account) IsAdmin() bool   { return a.Role == RoleAdmin }

// NewAccount contains information needed to register a new Account.
type NewAccount struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	SAPID           string `json:"sap_id" validate:"omitempty,alphanum_"`
	Role            Role   `json:"role" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAccount) Clean() {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.SAPID = core.CleanString(na.SAPID)
}

func (na *NewAccount) Validate(validate *validator.Validate, svc *Service) error {
	na.Clean()
	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(na.Email, na.SAPID)
}

type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type UpdatePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (up UpdatePassword) Validate(validate *validator.Validate) error { return validate.Struct(up) }

type GetFilter struct {
	ID    string
	Email string
	SAPID string
}

type QueryFilter struct {
	Search   string    `query:"search"`
	Roles    []string  `query:"role"`
	IsActive *bool     `query:"is_active"`
	Emails   []string  `query:"-"`
	IDs      []string  `query:"-"`
	Since    time.Time `query:"created_from"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
