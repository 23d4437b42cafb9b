package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/chat"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/notice"
	"github.com/trezcool/trackit/core/outbox"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
)

type (
	// DB is an in-memory store mirroring the postgres schema, cascades included.
	DB struct {
		mutex  sync.RWMutex
		tables tables

		txMutex sync.Mutex
	}

	tables struct {
		accounts    map[string]account.Account
		groups      map[string]group.Group
		members     map[string]group.Membership // by student email
		tasks       map[string]task.Task
		submissions map[string]submission.Submission
		notices     []notice.Notice // insertion order
		messages    []chat.Message  // insertion order
		events      []outbox.Event  // insertion order
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		accounts:    make(map[string]account.Account),
		groups:      make(map[string]group.Group),
		members:     make(map[string]group.Membership),
		tasks:       make(map[string]task.Task),
		submissions: make(map[string]submission.Submission),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.groups {
		c.groups[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.tasks {
		c.tasks[k] = copyTask(v)
	}
	for k, v := range t.submissions {
		c.submissions[k] = copySubmission(v)
	}
	c.notices = append(c.notices, t.notices...)
	c.messages = append(c.messages, t.messages...)
	c.events = append(c.events, t.events...)
	return c
}

// InTx serializes transactions and restores the previous state when fn fails.
// Writes made without the executor handed to fn wait until the transaction ends,
// so calling them from inside fn deadlocks. Reads are not isolated.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	restore := func() {
		db.mutex.Lock()
		db.tables = snapshot
		db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(&tx{db: db}); err != nil {
		restore()
	}
	return err
}

// lockWrite locks the tables for a write and returns the unlock func.
func (db *DB) lockWrite(exec []core.DBExecutor) func() {
	if len(exec) == 0 || !db.owns(exec[0]) {
		db.txMutex.Lock()
		db.mutex.Lock()
		return func() {
			db.mutex.Unlock()
			db.txMutex.Unlock()
		}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

func (db *DB) owns(exec core.DBExecutor) bool {
	t, ok := exec.(*tx)
	return ok && t.db == db
}

var errNoSQL = errors.New("inmemdb: transactions do not run SQL")

// tx marks repository calls made inside InTx.
type tx struct {
	db *DB
}

var _ core.DBExecutor = (*tx)(nil)

func (*tx) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNoSQL }
func (*tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (*tx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNoSQL }
func (*tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}
func (*tx) QueryRow(string, ...interface{}) *sql.Row { return nil }
func (*tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}

func copyTask(t task.Task) task.Task {
	if t.Labels != nil {
		t.Labels = append([]string{}, t.Labels...)
	}
	if t.Subtasks != nil {
		t.Subtasks = append([]task.Subtask{}, t.Subtasks...)
	}
	return t
}

func copySubmission(s submission.Submission) submission.Submission {
	if s.Grade != nil {
		g := *s.Grade
		s.Grade = &g
	}
	if s.Feedback != nil {
		f := *s.Feedback
		s.Feedback = &f
	}
	if s.Rubric != nil {
		r := *s.Rubric
		s.Rubric = &r
	}
	return s
}
