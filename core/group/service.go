package group

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/outbox"
)

var (
	// errors
	ErrNotFound           = core.NewError(core.KindNotFound, "group not found")
	ErrJoinCodeNotFound   = core.NewError(core.KindNotFound, "no group matches this join code")
	ErrNotMember          = core.NewError(core.KindNotFound, "student is not a member of any group")
	ErrAlreadyMember      = core.NewError(core.KindAlreadyMember, "student already belongs to a group")
	ErrSemesterUnparsable = core.NewError(core.KindInvalidState, "semester label cannot be parsed")
	ErrFinalSemester      = core.NewError(core.KindInvalidState, "group is already at the final semester")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		// DeleteGroup removes the group and every row it owns.
		DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AddMembership returns ErrAlreadyMember when the student already has a membership.
		AddMembership(ctx context.Context, m Membership, exec ...core.DBExecutor) error
		// GetMembership returns ErrNotMember when the student has no membership.
		GetMembership(ctx context.Context, email string, exec ...core.DBExecutor) (Membership, error)
		QueryMemberships(ctx context.Context, filter MembershipFilter, exec ...core.DBExecutor) ([]Membership, error)
		// DeleteMembership removes email's membership of groupID (of any group when groupID is empty)
		// and reports whether one existed.
		DeleteMembership(ctx context.Context, groupID, email string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		db        core.Transactor
		repo      Repository
		accRepo   account.Repository
		outbox    *outbox.Service
		semesters Semesters
		logger    core.Logger
	}
)

func NewService(
	db core.Transactor,
	repo Repository,
	accRepo account.Repository,
	outboxSvc *outbox.Service,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		accRepo:   accRepo,
		outbox:    outboxSvc,
		semesters: Semesters{Min: conf.Semesters.Min, Max: conf.Semesters.Max},
		logger:    logger,
	}
}

// checkCandidates verifies that every email belongs to a registered student who is not in any group.
// All offending emails are reported at once.
func (svc *Service) checkCandidates(ctx context.Context, emails []string, exec core.DBExecutor) error {
	if len(emails) == 0 {
		return nil
	}

	accs, err := svc.accRepo.QueryAccounts(ctx, &account.QueryFilter{Emails: emails}, nil, exec)
	if err != nil {
		return errors.Wrap(err, "querying candidate accounts")
	}
	registered := make(map[string]bool, len(accs))
	for _, acc := range accs {
		registered[acc.Email] = acc.Role == account.RoleStudent
	}

	ms, err := svc.repo.QueryMemberships(ctx, MembershipFilter{Emails: emails}, exec)
	if err != nil {
		return errors.Wrap(err, "querying candidate memberships")
	}
	grouped := make(map[string]bool, len(ms))
	for _, m := range ms {
		grouped[m.StudentEmail] = true
	}

	var unregistered, alreadyGrouped []string
	for _, email := range emails {
		switch {
		case !registered[email]:
			unregistered = append(unregistered, email)
		case grouped[email]:
			alreadyGrouped = append(alreadyGrouped, email)
		}
	}
	if len(unregistered) == 0 && len(alreadyGrouped) == 0 {
		return nil
	}

	var msgs []string
	if len(unregistered) > 0 {
		msgs = append(msgs, "not registered as students: "+strings.Join(unregistered, ", "))
	}
	if len(alreadyGrouped) > 0 {
		msgs = append(msgs, "already in a group: "+strings.Join(alreadyGrouped, ", "))
	}
	msg := strings.Join(msgs, "; ")
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "member_emails", Error: msg})
}

func (svc *Service) validateNewGroup(ng *NewGroup) error {
	ng.Clean()
	var flds []core.FieldError
	if ng.Name == "" {
		flds = append(flds, core.FieldError{Field: "name", Error: "this field is required"})
	}
	if ng.Semester == "" {
		flds = append(flds, core.FieldError{Field: "semester", Error: "this field is required"})
	} else if sem, err := svc.semesters.Normalize(ng.Semester); err != nil {
		flds = append(flds, core.FieldError{Field: "semester", Error: err.Error()})
	} else {
		ng.Semester = sem
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// Create creates a group with its initial members in one transaction, queueing a join code invitation per member.
// Nothing is created when any candidate member is unregistered or already grouped.
func (svc *Service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	mentor, err := account.Require(ctx, account.RoleMentor)
	if err != nil {
		return Group{}, err
	}
	if err = svc.validateNewGroup(&ng); err != nil {
		return Group{}, err
	}
	code, err := newJoinCode()
	if err != nil {
		return Group{}, errors.Wrap(err, "generating join code")
	}

	now := core.NowFunc()
	grp := Group{
		ID:          uuid.New().String(),
		Name:        ng.Name,
		Semester:    ng.Semester,
		Description: ng.Description,
		JoinCode:    code,
		CreatedBy:   mentor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkCandidates(ctx, ng.MemberEmails, exec); err != nil {
			return err
		}
		var err error
		if grp, err = svc.repo.CreateGroup(ctx, grp, exec); err != nil {
			return errors.Wrap(err, "creating group")
		}
		for _, email := range ng.MemberEmails {
			if err := svc.repo.AddMembership(ctx, Membership{GroupID: grp.ID, StudentEmail: email, JoinedAt: now}, exec); err != nil {
				return errors.Wrapf(err, "adding %s", email)
			}
			if err := svc.invite(ctx, grp, email, exec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}

	svc.logger.Info(fmt.Sprintf("group %s created with %d members", grp.ID, len(ng.MemberEmails)), mentor)
	return grp, nil
}

func (svc *Service) invite(ctx context.Context, grp Group, email string, exec core.DBExecutor) error {
	inv := outbox.Invitation{Email: email, JoinCode: grp.JoinCode, GroupName: grp.Name}
	if _, err := svc.outbox.Enqueue(ctx, outbox.KindGroupInvitation, inv, exec); err != nil {
		return errors.Wrapf(err, "queueing invitation for %s", email)
	}
	return nil
}

// AddMembers adds students to an existing group, either directly or by mailing them the join code.
func (svc *Service) AddMembers(ctx context.Context, groupID string, am AddMembers) ([]MemberResult, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return nil, err
	}
	emails := core.CleanEmails(am.Emails)
	if len(emails) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "emails", Error: "this field is required"})
	}
	mode := am.Mode
	if mode == "" {
		mode = AddDirect
	}

	results := make([]MemberResult, 0, len(emails))
	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkCandidates(ctx, emails, exec); err != nil {
			return err
		}
		for _, email := range emails {
			switch mode {
			case AddDirect:
				m := Membership{GroupID: grp.ID, StudentEmail: email, JoinedAt: core.NowFunc()}
				if err := svc.repo.AddMembership(ctx, m, exec); err != nil {
					return errors.Wrapf(err, "adding %s", email)
				}
				results = append(results, MemberResult{Email: email, Status: MemberAdded})
			case AddInvite:
				if err := svc.invite(ctx, grp, email, exec); err != nil {
					return err
				}
				results = append(results, MemberResult{Email: email, Status: MemberInvited})
			default:
				return core.NewValidationError(nil, core.FieldError{Field: "mode", Error: "mode must be one of direct, invite"})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RedeemJoinCode enrolls the signed-in student into the group holding code.
func (svc *Service) RedeemJoinCode(ctx context.Context, code string) (Group, error) {
	student, err := account.Require(ctx, account.RoleStudent)
	if err != nil {
		return Group{}, err
	}
	code = strings.ToUpper(core.CleanString(code))
	if code == "" {
		return Group{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: "this field is required"})
	}

	grp, err := svc.repo.GetGroup(ctx, GetFilter{JoinCode: code})
	if err != nil {
		switch errors.Cause(err) {
		case ErrJoinCodeNotFound, ErrNotFound:
			return Group{}, ErrJoinCodeNotFound
		}
		return Group{}, errors.Wrap(err, "finding group by join code")
	}

	if _, err = svc.repo.GetMembership(ctx, student.Email); err == nil {
		return Group{}, ErrAlreadyMember
	} else if errors.Cause(err) != ErrNotMember {
		return Group{}, errors.Wrap(err, "finding membership")
	}

	m := Membership{GroupID: grp.ID, StudentEmail: student.Email, JoinedAt: core.NowFunc()}
	if err = svc.repo.AddMembership(ctx, m); err != nil {
		if errors.Cause(err) == ErrAlreadyMember {
			return Group{}, ErrAlreadyMember
		}
		return Group{}, errors.Wrap(err, "adding membership")
	}
	return grp, nil
}

// Promote advances the group to the next semester.
func (svc *Service) Promote(ctx context.Context, groupID string) (Group, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return Group{}, err
	}
	next, err := svc.semesters.Next(grp.Semester)
	if err != nil {
		return Group{}, err
	}
	grp.Semester = next
	grp.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *Service) Update(ctx context.Context, groupID string, ug UpdateGroup) (Group, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return Group{}, err
	}
	if name := core.CleanString(ug.Name); name != "" {
		grp.Name = name
	}
	if sem := core.CleanString(ug.Semester); sem != "" {
		if grp.Semester, err = svc.semesters.Normalize(sem); err != nil {
			return Group{}, core.NewValidationError(nil, core.FieldError{Field: "semester", Error: err.Error()})
		}
	}
	if ug.Description != nil {
		grp.Description = core.CleanString(*ug.Description)
	}
	grp.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGroup(ctx, grp)
}

// RotateJoinCode replaces the group's join code; the previous code stops working.
func (svc *Service) RotateJoinCode(ctx context.Context, groupID string) (Group, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return Group{}, err
	}
	if grp.JoinCode, err = newJoinCode(); err != nil {
		return Group{}, errors.Wrap(err, "generating join code")
	}
	grp.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateGroup(ctx, grp)
}

// Delete removes the group with its memberships, tasks, notices and messages.
func (svc *Service) Delete(ctx context.Context, groupID string) error {
	grp, acc, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteGroup(ctx, grp.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	svc.logger.Info(fmt.Sprintf("group %s deleted", grp.ID), acc)
	return nil
}

// Leave removes the signed-in student's membership, if any.
func (svc *Service) Leave(ctx context.Context) error {
	student, err := account.Require(ctx, account.RoleStudent)
	if err != nil {
		return err
	}
	if _, err = svc.repo.DeleteMembership(ctx, "", student.Email); err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	return nil
}

func (svc *Service) RemoveMember(ctx context.Context, groupID, email string) error {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanManage)
	if err != nil {
		return err
	}
	deleted, err := svc.repo.DeleteMembership(ctx, grp.ID, core.CleanString(email, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	if !deleted {
		return ErrNotMember
	}
	return nil
}

func (svc *Service) Get(ctx context.Context, groupID string) (Group, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanView)
	return grp, err
}

// Members lists the group's students, ordered by join date.
func (svc *Service) Members(ctx context.Context, groupID string) ([]Member, error) {
	grp, _, _, err := Authorize(ctx, svc.repo, groupID, Access.CanView)
	if err != nil {
		return nil, err
	}
	ms, err := svc.repo.QueryMemberships(ctx, MembershipFilter{GroupID: grp.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	if len(ms) == 0 {
		return []Member{}, nil
	}

	emails := make([]string, 0, len(ms))
	for _, m := range ms {
		emails = append(emails, m.StudentEmail)
	}
	accs, err := svc.accRepo.QueryAccounts(ctx, &account.QueryFilter{Emails: emails}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying member accounts")
	}
	byEmail := make(map[string]account.Account, len(accs))
	for _, acc := range accs {
		byEmail[acc.Email] = acc
	}

	members := make([]Member, 0, len(ms))
	for _, m := range ms {
		acc := byEmail[m.StudentEmail]
		members = append(members, Member{Membership: m, AccountID: acc.ID, Name: acc.Name, SAPID: acc.SAPID})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

// ListMine returns the groups visible to the signed-in account:
// all groups for admins, created groups for mentors, the joined group (if any) for students.
func (svc *Service) ListMine(ctx context.Context) ([]Group, error) {
	acc, err := account.Require(ctx)
	if err != nil {
		return nil, err
	}

	switch acc.Role {
	case account.RoleAdmin:
		return svc.repo.QueryGroups(ctx, QueryFilter{})
	case account.RoleMentor:
		return svc.repo.QueryGroups(ctx, QueryFilter{CreatedBy: acc.ID})
	case account.RoleStudent:
		grp, err := svc.GroupOf(ctx, acc.Email)
		if err != nil {
			if errors.Cause(err) == ErrNotMember {
				return []Group{}, nil
			}
			return nil, err
		}
		return []Group{grp}, nil
	}
	return nil, core.ErrForbidden
}

// GroupOf returns the group email belongs to, or ErrNotMember.
func (svc *Service) GroupOf(ctx context.Context, email string) (Group, error) {
	m, err := svc.repo.GetMembership(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return Group{}, err
	}
	return svc.repo.GetGroup(ctx, GetFilter{ID: m.GroupID})
}
