package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

const accountColumns = "id, email, name, sap_id, role, is_active, password_hash, created_at, updated_at, last_login"

var accountOrderings = map[string]string{
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type accountRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	Name         string       `db:"name"`
	SAPID        null.String  `db:"sap_id"`
	Role         account.Role `db:"role"`
	IsActive     bool         `db:"is_active"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    null.Time    `db:"created_at"`
	UpdatedAt    null.Time    `db:"updated_at"`
	LastLogin    null.Time    `db:"last_login"`
}

func newAccountRow(acc account.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		Email:        acc.Email,
		Name:         acc.Name,
		SAPID:        null.NewString(acc.SAPID, acc.SAPID != ""),
		Role:         acc.Role,
		IsActive:     acc.IsActive,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    null.TimeFrom(acc.CreatedAt),
		UpdatedAt:    null.TimeFrom(acc.UpdatedAt),
		LastLogin:    null.NewTime(acc.LastLogin, !acc.LastLogin.IsZero()),
	}
}

func (r accountRow) toAccount() account.Account {
	return account.Account{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		SAPID:        r.SAPID.String,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time.UTC(),
		UpdatedAt:    r.UpdatedAt.Time.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, email, sapID string, excluded []account.Account, exec ...core.DBExecutor) error {
	w := &where{}
	if sapID != "" {
		w.add("(email = ? OR sap_id = ?)", email, sapID)
	} else {
		w.add("email = ?", email)
	}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, acc := range excluded {
			ids = append(ids, acc.ID)
		}
		w.add("id NOT IN (?)", ids)
	}

	q, args, err := repo.db.in("SELECT email, sap_id FROM accounts"+w.String()+" LIMIT 1", w.args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var found struct {
		Email string      `db:"email"`
		SAPID null.String `db:"sap_id"`
	}
	if err = sqlx.GetContext(ctx, repo.db.ext(exec), &found, q, args...); err != nil {
		if isNoRows(err) {
			return nil
		}
		return errors.Wrap(err, "checking account uniqueness")
	}
	if found.Email == email {
		return account.ErrEmailExists
	}
	return account.ErrSAPIDExists
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	q := `INSERT INTO accounts (` + accountColumns + `)
		VALUES (:id, :email, :name, :sap_id, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, newAccountRow(acc)); err != nil {
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter account.GetFilter, exec ...core.DBExecutor) (account.Account, error) {
	w := &where{}
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return account.Account{}, account.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", strings.ToLower(filter.Email))
	case filter.SAPID != "":
		w.add("sap_id = ?", filter.SAPID)
	default:
		return account.Account{}, account.ErrNotFound
	}

	var row accountRow
	q := repo.db.db.Rebind("SELECT " + accountColumns + " FROM accounts" + w.String())
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &row, q, w.args...); err != nil {
		if isNoRows(err) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "selecting account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) QueryAccounts(ctx context.Context, filter *account.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]account.Account, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR email ILIKE ? OR sap_id ILIKE ?)", pattern, pattern, pattern)
		}
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if len(filter.Emails) > 0 {
			w.add("email IN (?)", filter.Emails)
		}
		if len(filter.IDs) > 0 {
			w.add("id IN (?)", filter.IDs)
		}
		if !filter.Since.IsZero() {
			w.add("created_at >= ?", filter.Since)
		}
	}

	q := "SELECT " + accountColumns + " FROM accounts" + w.String() + orderBy(ordering, accountOrderings, "created_at DESC")
	q, args, err := repo.db.in(q, w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building accounts query")
	}
	var rows []accountRow
	if err = sqlx.SelectContext(ctx, repo.db.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting accounts")
	}
	accs := make([]account.Account, 0, len(rows))
	for _, r := range rows {
		accs = append(accs, r.toAccount())
	}
	return accs, nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	q := `UPDATE accounts SET email = :email, name = :name, sap_id = :sap_id, role = :role, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, newAccountRow(acc))
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n, err := rowsAffected(res); err != nil {
		return account.Account{}, err
	} else if n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

// orderBy renders the known fields of ordering, falling back to def.
func orderBy(ordering []core.DBOrdering, known map[string]string, def string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := known[ord.Field]; ok {
			parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
