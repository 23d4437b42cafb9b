package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/trackit/core"
	appfs "github.com/trezcool/trackit/fs"
)

// migrationsDir is the directory of appfs.FS holding the goose migrations.
const migrationsDir = "migrations"

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sql.Open(conf.Database.Engine, u.String())
}

// Open opens the application database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// provisioner creates the application role and database from an admin connection.
type provisioner struct {
	admin *sql.DB
	conf  core.DatabaseConfig
}

func (p provisioner) exists(ctx context.Context, query, name string) (bool, error) {
	var found bool
	err := p.admin.QueryRowContext(ctx, query, name).Scan(&found)
	if errors.Cause(err) == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

// ensureRole creates the app role, allowed to create databases, when missing.
func (p provisioner) ensureRole(ctx context.Context) error {
	if p.conf.User == "" || p.conf.User == p.conf.AdminUser {
		return nil
	}
	found, err := p.exists(ctx, "SELECT true FROM pg_roles WHERE rolname = $1", p.conf.User)
	if err != nil {
		return errors.Wrap(err, "looking up app role")
	}
	if found {
		return nil
	}
	if _, err = p.admin.ExecContext(ctx, p.createRoleStmt()); err != nil {
		return errors.Wrap(err, "creating app role")
	}
	return nil
}

// ensureDatabase creates the app database owned by the app role when missing.
func (p provisioner) ensureDatabase(ctx context.Context) error {
	found, err := p.exists(ctx, "SELECT true FROM pg_database WHERE datname = $1", p.conf.Name)
	if err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if found {
		return nil
	}
	if _, err = p.admin.ExecContext(ctx, p.createDatabaseStmt()); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// DDL takes no bind parameters: names and the password are quoted instead.

func (p provisioner) createRoleStmt() string {
	return "CREATE ROLE " + pq.QuoteIdentifier(p.conf.User) + " LOGIN CREATEDB PASSWORD " + pq.QuoteLiteral(p.conf.Password)
}

func (p provisioner) createDatabaseStmt() string {
	q := "CREATE DATABASE " + pq.QuoteIdentifier(p.conf.Name)
	if p.conf.User != "" {
		q += " OWNER " + pq.QuoteIdentifier(p.conf.User)
	}
	return q
}

// Provision makes sure the app role and database exist. It connects to the "postgres" maintenance database
// with the admin credentials when they are configured.
func Provision(ctx context.Context, conf *core.Config) error {
	admin, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = admin.Close() }()
	if err = ping(admin); err != nil {
		return err
	}

	p := provisioner{admin: admin, conf: conf.Database}
	if err = p.ensureRole(ctx); err != nil {
		return err
	}
	return p.ensureDatabase(ctx)
}

// Migrate runs a goose command (up, down, status...) against the embedded migrations.
func Migrate(db *sql.DB, cmd string, args ...string) error {
	if err := goose.RunFS(cmd, db, appfs.FS, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", cmd)
	}
	return nil
}
