package sqlxrepos

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

const outboxColumns = "id, kind, payload, status, attempts, last_error, created_at, processed_at, channels, claimed_until"

// outboxRow is scanned by sqlx and by sqlboiler's raw queries, hence both tags.
type outboxRow struct {
	ID           string         `db:"id" boil:"id"`
	Kind         string         `db:"kind" boil:"kind"`
	Payload      types.JSONText `db:"payload" boil:"payload"`
	Status       string         `db:"status" boil:"status"`
	Attempts     int            `db:"attempts" boil:"attempts"`
	LastError    string         `db:"last_error" boil:"last_error"`
	CreatedAt    null.Time      `db:"created_at" boil:"created_at"`
	ProcessedAt  null.Time      `db:"processed_at" boil:"processed_at"`
	Channels     pq.StringArray `db:"channels" boil:"channels"`
	ClaimedUntil null.Time      `db:"claimed_until" boil:"claimed_until"`
}

func newOutboxRow(e outbox.Event) outboxRow {
	return outboxRow{
		ID:           e.ID,
		Kind:         e.Kind,
		Payload:      types.JSONText(e.Payload),
		Status:       string(e.Status),
		Attempts:     e.Attempts,
		LastError:    e.LastError,
		CreatedAt:    null.TimeFrom(e.CreatedAt),
		ProcessedAt:  null.NewTime(e.ProcessedAt, !e.ProcessedAt.IsZero()),
		Channels:     pq.StringArray(append([]string{}, e.Channels...)),
		ClaimedUntil: null.NewTime(e.ClaimedUntil, !e.ClaimedUntil.IsZero()),
	}
}

func (r outboxRow) toEvent() outbox.Event {
	e := outbox.Event{
		ID:        r.ID,
		Kind:      r.Kind,
		Payload:   json.RawMessage(r.Payload),
		Status:    outbox.Status(r.Status),
		Attempts:  r.Attempts,
		LastError: r.LastError,
		CreatedAt: r.CreatedAt.Time.UTC(),
	}
	if r.ProcessedAt.Valid {
		e.ProcessedAt = r.ProcessedAt.Time.UTC()
	}
	if len(r.Channels) > 0 {
		e.Channels = []string(r.Channels)
	}
	if r.ClaimedUntil.Valid {
		e.ClaimedUntil = r.ClaimedUntil.Time.UTC()
	}
	return e
}

type outboxRepository struct {
	db *DB
}

var _ outbox.Repository = (*outboxRepository)(nil)

func NewOutboxRepository(db *DB) *outboxRepository {
	return &outboxRepository{db: db}
}

func (repo *outboxRepository) CreateEvent(ctx context.Context, e outbox.Event, exec ...core.DBExecutor) (outbox.Event, error) {
	q := `INSERT INTO outbox (` + outboxColumns + `)
		VALUES (:id, :kind, :payload, :status, :attempts, :last_error, :created_at, :processed_at, :channels, :claimed_until)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, newOutboxRow(e)); err != nil {
		return outbox.Event{}, errors.Wrap(err, "inserting outbox event")
	}
	return e, nil
}

func (repo *outboxRepository) GetEvent(ctx context.Context, id string, exec ...core.DBExecutor) (outbox.Event, error) {
	if !isUUID(id) {
		return outbox.Event{}, outbox.ErrNotFound
	}
	var row outboxRow
	q := "SELECT " + outboxColumns + " FROM outbox WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &row, q, id); err != nil {
		if isNoRows(err) {
			return outbox.Event{}, outbox.ErrNotFound
		}
		return outbox.Event{}, errors.Wrap(err, "selecting outbox event")
	}
	return row.toEvent(), nil
}

func (repo *outboxRepository) QueryEvents(ctx context.Context, status outbox.Status, limit int, exec ...core.DBExecutor) ([]outbox.Event, error) {
	q := "SELECT " + outboxColumns + " FROM outbox WHERE status = $1 ORDER BY created_at, id"
	args := []interface{}{string(status)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []outboxRow
	if err := sqlx.SelectContext(ctx, repo.db.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting outbox events")
	}
	events := make([]outbox.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo *outboxRepository) UpdateEvent(ctx context.Context, e outbox.Event, exec ...core.DBExecutor) (outbox.Event, error) {
	q := `UPDATE outbox SET status = :status, attempts = :attempts, last_error = :last_error,
		processed_at = :processed_at, channels = :channels, claimed_until = NULL WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, newOutboxRow(e))
	if err != nil {
		return outbox.Event{}, errors.Wrap(err, "updating outbox event")
	}
	if n, err := rowsAffected(res); err != nil {
		return outbox.Event{}, err
	} else if n == 0 {
		return outbox.Event{}, outbox.ErrNotFound
	}
	e.ClaimedUntil = time.Time{}
	return e, nil
}

// ClaimEvents locks the picked rows with SKIP LOCKED so that relays polling at the same time split the batch.
func (repo *outboxRepository) ClaimEvents(ctx context.Context, limit int, until time.Time, exec ...core.DBExecutor) ([]outbox.Event, error) {
	q := `UPDATE outbox SET claimed_until = $1
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status = 'pending' AND (claimed_until IS NULL OR claimed_until <= $2)
			ORDER BY created_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	var lim interface{} // NULL: no limit
	if limit > 0 {
		lim = limit
	}

	var rows []outboxRow
	if err := queries.Raw(q, until, core.NowFunc(), lim).Bind(ctx, repo.db.exe(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "claiming outbox events")
	}
	events := make([]outbox.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	// RETURNING does not keep the subquery's order
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}
