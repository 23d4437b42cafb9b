package group

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

// Access is the relation of an account to a group.
type Access int

const (
	AccessNone Access = iota
	AccessMember
	AccessOwner
	AccessAdmin
)

// CanManage reports whether the access allows mutating the group and its tasks, notices and grades.
func (a Access) CanManage() bool { return a == AccessOwner || a == AccessAdmin }

// CanView reports whether the access allows reading the group's content.
func (a Access) CanView() bool { return a != AccessNone }

// ResolveAccess loads the group and computes acc's access to it.
func ResolveAccess(ctx context.Context, repo Repository, groupID string, acc account.Account) (Group, Access, error) {
	grp, err := repo.GetGroup(ctx, GetFilter{ID: groupID})
	if err != nil {
		return Group{}, AccessNone, err
	}

	switch acc.Role {
	case account.RoleAdmin:
		return grp, AccessAdmin, nil
	case account.RoleMentor:
		if grp.CreatedBy == acc.ID {
			return grp, AccessOwner, nil
		}
		return grp, AccessNone, nil
	case account.RoleStudent:
		m, err := repo.GetMembership(ctx, acc.Email)
		if err != nil {
			if errors.Cause(err) == ErrNotMember {
				return grp, AccessNone, nil
			}
			return Group{}, AccessNone, errors.Wrap(err, "finding membership")
		}
		if m.GroupID == grp.ID {
			return grp, AccessMember, nil
		}
		return grp, AccessNone, nil
	}
	return Group{}, AccessNone, core.ErrForbidden
}

// Authorize resolves the session account's access to groupID and checks it with allowed.
func Authorize(ctx context.Context, repo Repository, groupID string, allowed func(Access) bool) (Group, account.Account, Access, error) {
	acc, err := account.Require(ctx)
	if err != nil {
		return Group{}, account.Account{}, AccessNone, err
	}
	grp, access, err := ResolveAccess(ctx, repo, groupID, acc)
	if err != nil {
		return Group{}, account.Account{}, AccessNone, err
	}
	if !allowed(access) {
		return Group{}, account.Account{}, access, core.ErrForbidden
	}
	return grp, acc, access, nil
}
