package sqlxrepos_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/trezcool/trackit/storage/database"
	sqlxrepos "github.com/trezcool/trackit/storage/database/sqlx"
)

// the repositories run against a real postgres only when TRACKIT_TEST_DATABASE_URL names a disposable database
const dbURLEnv = "TRACKIT_TEST_DATABASE_URL"

var sqlDB *sqlx.DB

func TestMain(m *testing.M) {
	if url := os.Getenv(dbURLEnv); url != "" {
		var err error
		if sqlDB, err = sqlx.Open("postgres", url); err != nil {
			fmt.Printf("sqlx.Open(): %v\n", err)
			os.Exit(1)
		}
		if err = database.Migrate(sqlDB.DB, "up"); err != nil {
			fmt.Printf("database.Migrate(): %v\n", err)
			os.Exit(1)
		}
	}

	// run tests
	code := m.Run()

	// clean up
	if sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			fmt.Printf("sqlDB.Close(): %v\n", err)
		}
	}
	os.Exit(code)
}

// openDB empties every table and returns the repositories' DB; it skips the test without a database.
func openDB(t *testing.T) *sqlxrepos.DB {
	t.Helper()
	if sqlDB == nil {
		t.Skipf("%s not set", dbURLEnv)
	}
	q := "TRUNCATE accounts, groups, group_members, tasks, submissions, notices, messages, outbox CASCADE"
	if _, err := sqlDB.ExecContext(context.Background(), q); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
	return sqlxrepos.NewDB(sqlDB)
}
