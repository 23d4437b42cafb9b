package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/group"
)

const groupColumns = "id, name, semester, description, join_code, created_by, created_at, updated_at"

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	q := `INSERT INTO groups (` + groupColumns + `)
		VALUES (:id, :name, :semester, :description, :join_code, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, grp); err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, filter group.GetFilter, exec ...core.DBExecutor) (group.Group, error) {
	w := &where{}
	notFound := group.ErrNotFound
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return group.Group{}, notFound
		}
		w.add("id = ?", filter.ID)
	case filter.JoinCode != "":
		w.add("join_code = ?", filter.JoinCode)
		notFound = group.ErrJoinCodeNotFound
	default:
		return group.Group{}, notFound
	}

	var grp group.Group
	q := repo.db.db.Rebind("SELECT " + groupColumns + " FROM groups" + w.String())
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &grp, q, w.args...); err != nil {
		if isNoRows(err) {
			return group.Group{}, notFound
		}
		return group.Group{}, errors.Wrap(err, "selecting group")
	}
	return grp, nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter, exec ...core.DBExecutor) ([]group.Group, error) {
	w := &where{}
	if filter.CreatedBy != "" {
		w.add("created_by = ?", filter.CreatedBy)
	}
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	q, args, err := repo.db.in("SELECT "+groupColumns+" FROM groups"+w.String()+" ORDER BY created_at DESC", w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building groups query")
	}
	grps := make([]group.Group, 0)
	if err = sqlx.SelectContext(ctx, repo.db.ext(exec), &grps, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	return grps, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	q := `UPDATE groups SET name = :name, semester = :semester, description = :description, join_code = :join_code,
		updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, grp)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	if n, err := rowsAffected(res); err != nil {
		return group.Group{}, err
	} else if n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return grp, nil
}

// DeleteGroup relies on the ON DELETE CASCADE foreign keys for dependent rows.
func (repo *groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return group.ErrNotFound
	}
	res, err := repo.db.ext(exec).ExecContext(ctx, "DELETE FROM groups WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo *groupRepository) AddMembership(ctx context.Context, m group.Membership, exec ...core.DBExecutor) error {
	q := "INSERT INTO group_members (group_id, student_email, joined_at) VALUES (:group_id, :student_email, :joined_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, m); err != nil {
		if isUniqueViolation(err) {
			return group.ErrAlreadyMember
		}
		return errors.Wrap(err, "inserting membership")
	}
	return nil
}

func (repo *groupRepository) GetMembership(ctx context.Context, email string, exec ...core.DBExecutor) (group.Membership, error) {
	var m group.Membership
	q := "SELECT group_id, student_email, joined_at FROM group_members WHERE student_email = $1"
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &m, q, email); err != nil {
		if isNoRows(err) {
			return group.Membership{}, group.ErrNotMember
		}
		return group.Membership{}, errors.Wrap(err, "selecting membership")
	}
	return m, nil
}

func (repo *groupRepository) QueryMemberships(ctx context.Context, filter group.MembershipFilter, exec ...core.DBExecutor) ([]group.Membership, error) {
	w := &where{}
	if filter.GroupID != "" {
		w.add("group_id = ?", filter.GroupID)
	}
	if len(filter.Emails) > 0 {
		w.add("student_email IN (?)", filter.Emails)
	}
	q := "SELECT group_id, student_email, joined_at FROM group_members" + w.String() + " ORDER BY joined_at, student_email"
	q, args, err := repo.db.in(q, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building memberships query")
	}
	ms := make([]group.Membership, 0)
	if err = sqlx.SelectContext(ctx, repo.db.ext(exec), &ms, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting memberships")
	}
	return ms, nil
}

func (repo *groupRepository) DeleteMembership(ctx context.Context, groupID, email string, exec ...core.DBExecutor) (bool, error) {
	w := &where{}
	w.add("student_email = ?", email)
	if groupID != "" {
		w.add("group_id = ?", groupID)
	}
	q := repo.db.db.Rebind("DELETE FROM group_members" + w.String())
	res, err := repo.db.ext(exec).ExecContext(ctx, q, w.args...)
	if err != nil {
		return false, errors.Wrap(err, "deleting membership")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
