package notice

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/group"
)

var (
	// errors
	ErrNotFound = core.NewError(core.KindNotFound, "notice not found")
)

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice, exec ...core.DBExecutor) (Notice, error)
		GetNotice(ctx context.Context, id string, exec ...core.DBExecutor) (Notice, error)
		// QueryNotices returns the notices matching filter, newest first.
		QueryNotices(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Notice, error)
		DeleteNotice(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo      Repository
		groupRepo group.Repository
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

func NewService(
	repo Repository,
	groupRepo group.Repository,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, groupRepo: groupRepo, validate: validate, translator: translator, logger: logger}
}

// Post publishes a notice. Mentors may scope notices to the groups they created only.
func (svc *Service) Post(ctx context.Context, nn NewNotice) (Notice, error) {
	acc, err := account.Require(ctx, account.RoleMentor, account.RoleAdmin)
	if err != nil {
		return Notice{}, err
	}
	nn.Clean()
	if err = core.ValidateStruct(svc.validate, svc.translator, nn); err != nil {
		return Notice{}, err
	}
	if nn.GroupID != nil {
		if _, _, _, err = group.Authorize(ctx, svc.groupRepo, *nn.GroupID, group.Access.CanManage); err != nil {
			return Notice{}, err
		}
	}

	n := Notice{
		ID:        uuid.New().String(),
		Title:     nn.Title,
		Content:   nn.Content,
		Type:      nn.Type,
		GroupID:   nn.GroupID,
		CreatedBy: acc.ID,
		CreatedAt: core.NowFunc(),
	}
	if n, err = svc.repo.CreateNotice(ctx, n); err != nil {
		return Notice{}, errors.Wrap(err, "creating notice")
	}
	return n, nil
}

// List returns the global notices plus those of groupID when given, newest first.
func (svc *Service) List(ctx context.Context, groupID *string) ([]Notice, error) {
	if _, err := account.Require(ctx); err != nil {
		return nil, err
	}
	filter := QueryFilter{Global: true}
	if groupID != nil && *groupID != "" {
		if _, _, _, err := group.Authorize(ctx, svc.groupRepo, *groupID, group.Access.CanView); err != nil {
			return nil, err
		}
		filter.GroupIDs = []string{*groupID}
	}
	return svc.repo.QueryNotices(ctx, filter)
}

// ListForSession returns the notices relevant to the signed-in account:
// students see global notices and their group's, mentors global notices and their own, admins all.
func (svc *Service) ListForSession(ctx context.Context) ([]Notice, error) {
	acc, err := account.Require(ctx)
	if err != nil {
		return nil, err
	}

	var filter QueryFilter
	switch acc.Role {
	case account.RoleStudent:
		filter.Global = true
		m, err := svc.groupRepo.GetMembership(ctx, acc.Email)
		switch {
		case err == nil:
			filter.GroupIDs = []string{m.GroupID}
		case errors.Cause(err) != group.ErrNotMember:
			return nil, errors.Wrap(err, "finding membership")
		}
	case account.RoleMentor:
		filter.Global = true
		filter.CreatedBy = acc.ID
	case account.RoleAdmin:
	default:
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryNotices(ctx, filter)
}

// Delete removes a notice; only its poster or an admin may.
func (svc *Service) Delete(ctx context.Context, id string) error {
	acc, err := account.Require(ctx)
	if err != nil {
		return err
	}
	n, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return err
	}
	if n.CreatedBy != acc.ID && !acc.IsAdmin() {
		return core.ErrForbidden
	}
	if err = svc.repo.DeleteNotice(ctx, id); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return nil
}
