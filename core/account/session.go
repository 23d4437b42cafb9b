package account

import (
	"context"
	"time"

	"github.com/trezcool/trackit/core"
)

type sessionCtxKey struct{}

// Session is the authenticated principal of a request.
// It is created by the transport layer once credentials are verified and travels on the context.
type Session struct {
	Account   Account
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewSession(acc Account, issuedAt, expiresAt time.Time) *Session {
	return &Session{Account: acc, IssuedAt: issuedAt, ExpiresAt: expiresAt}
}

// CurrentAccount returns the session's account, or nil for an anonymous session.
func (s *Session) CurrentAccount() *Account {
	if s == nil {
		return nil
	}
	return &s.Account
}

func (s *Session) HasRole(role Role) bool {
	return s != nil && s.Account.Role == role
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}

// Require returns the context's account if it holds one of roles (any role when none is given).
func Require(ctx context.Context, roles ...Role) (Account, error) {
	s := SessionFrom(ctx)
	if s == nil {
		return Account{}, core.ErrUnauthorized
	}
	if len(roles) == 0 {
		return s.Account, nil
	}
	for _, r := range roles {
		if s.Account.Role == r {
			return s.Account, nil
		}
	}
	return Account{}, core.ErrForbidden
}
