package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/chat"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/notice"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	defer repo.db.lockWrite(exec)()
	repo.db.tables.groups[grp.ID] = grp
	return grp, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, filter group.GetFilter, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if grp, ok := repo.db.tables.groups[filter.ID]; ok {
			return grp, nil
		}
	case filter.JoinCode != "":
		for _, grp := range repo.db.tables.groups {
			if grp.JoinCode == filter.JoinCode {
				return grp, nil
			}
		}
		return group.Group{}, group.ErrJoinCodeNotFound
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter group.QueryFilter, _ ...core.DBExecutor) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grps := make([]group.Group, 0)
	for _, grp := range repo.db.tables.groups {
		if filter.CreatedBy != "" && grp.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, grp.ID) {
			continue
		}
		grps = append(grps, grp)
	}
	sort.Slice(grps, func(i, j int) bool {
		if c := compareTimes(grps[i].CreatedAt, grps[j].CreatedAt); c != 0 {
			return c > 0
		}
		return grps[i].ID < grps[j].ID
	})
	return grps, nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	defer repo.db.lockWrite(exec)()

	orig, ok := repo.db.tables.groups[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	grp.CreatedBy = orig.CreatedBy
	grp.CreatedAt = orig.CreatedAt
	repo.db.tables.groups[grp.ID] = grp
	return grp, nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	t := &repo.db.tables
	if _, ok := t.groups[id]; !ok {
		return group.ErrNotFound
	}
	delete(t.groups, id)
	for email, m := range t.members {
		if m.GroupID == id {
			delete(t.members, email)
		}
	}
	for taskID, tsk := range t.tasks {
		if tsk.GroupID == id {
			t.deleteTask(taskID)
		}
	}
	notices := make([]notice.Notice, 0, len(t.notices))
	for _, n := range t.notices {
		if n.GroupID == nil || *n.GroupID != id {
			notices = append(notices, n)
		}
	}
	t.notices = notices
	msgs := make([]chat.Message, 0, len(t.messages))
	for _, m := range t.messages {
		if m.GroupID != id {
			msgs = append(msgs, m)
		}
	}
	t.messages = msgs
	return nil
}

func (repo *groupRepository) AddMembership(_ context.Context, m group.Membership, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.tables.members[m.StudentEmail]; ok {
		return group.ErrAlreadyMember
	}
	if _, ok := repo.db.tables.groups[m.GroupID]; !ok {
		return group.ErrNotFound
	}
	repo.db.tables.members[m.StudentEmail] = m
	return nil
}

func (repo *groupRepository) GetMembership(_ context.Context, email string, _ ...core.DBExecutor) (group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.tables.members[email]; ok {
		return m, nil
	}
	return group.Membership{}, group.ErrNotMember
}

func (repo *groupRepository) QueryMemberships(_ context.Context, filter group.MembershipFilter, _ ...core.DBExecutor) ([]group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ms := make([]group.Membership, 0)
	for _, m := range repo.db.tables.members {
		if filter.GroupID != "" && m.GroupID != filter.GroupID {
			continue
		}
		if len(filter.Emails) > 0 && !contains(filter.Emails, m.StudentEmail) {
			continue
		}
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool {
		if c := compareTimes(ms[i].JoinedAt, ms[j].JoinedAt); c != 0 {
			return c < 0
		}
		return ms[i].StudentEmail < ms[j].StudentEmail
	})
	return ms, nil
}

func (repo *groupRepository) DeleteMembership(_ context.Context, groupID, email string, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	m, ok := repo.db.tables.members[email]
	if !ok || (groupID != "" && m.GroupID != groupID) {
		return false, nil
	}
	delete(repo.db.tables.members, email)
	return true, nil
}
