package account

import (
	"database/sql/driver"
	"fmt"

	"github.com/pkg/errors"
)

// Role is the closed set of account roles. The zero value is not a valid role.
type Role int

const (
	RoleStudent Role = iota + 1
	RoleMentor
	RoleAdmin
)

var (
	AllRoles = []Role{RoleStudent, RoleMentor, RoleAdmin}

	ErrUnknownRole = errors.New("unknown role")
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "mentor":
		return RoleMentor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, errors.Wrap(ErrUnknownRole, s)
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleMentor:
		return "mentor"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	}
	return errors.Errorf("cannot scan %T into Role", src)
}
