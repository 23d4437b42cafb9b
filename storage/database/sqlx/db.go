package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
)

// DB wraps the application database shared by the repositories.
type DB struct {
	db *sqlx.DB
}

var _ core.Transactor = (*DB)(nil)

func NewDB(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// InTx runs fn in a transaction committed when fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = errors.Wrap(err, "committing transaction")
		}
	}()
	return fn(tx)
}

// ext returns the executor repository calls should run on.
func (d *DB) ext(exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		switch e := exec[0].(type) {
		case sqlx.ExtContext:
			return e
		case *sql.Tx:
			return &sqlx.Tx{Tx: e, Mapper: d.db.Mapper}
		}
	}
	return d.db
}

// exe is ext for code written against database/sql executors.
func (d *DB) exe(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return d.db
}

// in expands the slice arguments of query and rebinds it for postgres.
func (d *DB) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return d.db.Rebind(q), a, nil
}

// where accumulates AND-ed conditions with "?" placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// isUUID reports whether id can match a UUID primary key. Malformed ids would fail in postgres with 22P02.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading affected rows")
	}
	return n, nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}
