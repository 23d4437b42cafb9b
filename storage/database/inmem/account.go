package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CheckUniqueness(_ context.Context, email, sapID string, excluded []account.Account, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excl := make(map[string]struct{}, len(excluded))
	for _, acc := range excluded {
		excl[acc.ID] = struct{}{}
	}
	for _, acc := range repo.db.tables.accounts {
		if _, ok := excl[acc.ID]; ok {
			continue
		}
		if acc.Email == email {
			return account.ErrEmailExists
		}
		if sapID != "" && acc.SAPID == sapID {
			return account.ErrSAPIDExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	defer repo.db.lockWrite(exec)()

	for _, other := range repo.db.tables.accounts {
		if other.Email == acc.Email {
			return account.Account{}, account.ErrEmailExists
		}
		if acc.SAPID != "" && other.SAPID == acc.SAPID {
			return account.Account{}, account.ErrSAPIDExists
		}
	}
	repo.db.tables.accounts[acc.ID] = acc
	return acc, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if acc, ok := repo.db.tables.accounts[filter.ID]; ok {
			return acc, nil
		}
	case filter.Email != "":
		email := strings.ToLower(filter.Email)
		for _, acc := range repo.db.tables.accounts {
			if acc.Email == email {
				return acc, nil
			}
		}
	case filter.SAPID != "":
		for _, acc := range repo.db.tables.accounts {
			if acc.SAPID == filter.SAPID {
				return acc, nil
			}
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) QueryAccounts(_ context.Context, filter *account.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	accs := make([]account.Account, 0, len(repo.db.tables.accounts))
	for _, acc := range repo.db.tables.accounts {
		if filter == nil || matchAccount(acc, filter) {
			accs = append(accs, acc)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(accs, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareAccounts(accs[i], accs[j], ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return accs[i].ID < accs[j].ID
	})
	return accs, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.tables.accounts[acc.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	repo.db.tables.accounts[acc.ID] = acc
	return acc, nil
}

func matchAccount(acc account.Account, filter *account.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(acc.Name), s) &&
			!strings.Contains(acc.Email, s) &&
			!strings.Contains(strings.ToLower(acc.SAPID), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !contains(filter.Roles, acc.Role.String()) {
		return false
	}
	if filter.IsActive != nil && acc.IsActive != *filter.IsActive {
		return false
	}
	if len(filter.Emails) > 0 && !contains(filter.Emails, acc.Email) {
		return false
	}
	if len(filter.IDs) > 0 && !contains(filter.IDs, acc.ID) {
		return false
	}
	if !filter.Since.IsZero() && acc.CreatedAt.Before(filter.Since) {
		return false
	}
	return true
}

func compareAccounts(a, b account.Account, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return compareTimes(a.LastLogin, b.LastLogin)
	}
	return 0
}
