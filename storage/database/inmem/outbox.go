package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

type outboxRepository struct {
	db *DB
}

var _ outbox.Repository = (*outboxRepository)(nil)

func NewOutboxRepository(db *DB) *outboxRepository {
	return &outboxRepository{db: db}
}

func (repo *outboxRepository) CreateEvent(_ context.Context, e outbox.Event, exec ...core.DBExecutor) (outbox.Event, error) {
	defer repo.db.lockWrite(exec)()
	repo.db.tables.events = append(repo.db.tables.events, e)
	return e, nil
}

func (repo *outboxRepository) GetEvent(_ context.Context, id string, _ ...core.DBExecutor) (outbox.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.tables.events {
		if e.ID == id {
			return e, nil
		}
	}
	return outbox.Event{}, outbox.ErrNotFound
}

func (repo *outboxRepository) QueryEvents(_ context.Context, status outbox.Status, limit int, _ ...core.DBExecutor) ([]outbox.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]outbox.Event, 0)
	for _, e := range repo.db.tables.events {
		if e.Status != status {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (repo *outboxRepository) UpdateEvent(_ context.Context, e outbox.Event, exec ...core.DBExecutor) (outbox.Event, error) {
	defer repo.db.lockWrite(exec)()

	for i, orig := range repo.db.tables.events {
		if orig.ID == e.ID {
			e.Kind, e.Payload, e.CreatedAt = orig.Kind, orig.Payload, orig.CreatedAt
			e.ClaimedUntil = time.Time{}
			repo.db.tables.events[i] = e
			return e, nil
		}
	}
	return outbox.Event{}, outbox.ErrNotFound
}

func (repo *outboxRepository) ClaimEvents(_ context.Context, limit int, until time.Time, exec ...core.DBExecutor) ([]outbox.Event, error) {
	defer repo.db.lockWrite(exec)()

	now := core.NowFunc()
	events := make([]outbox.Event, 0)
	for i, e := range repo.db.tables.events {
		if e.Status != outbox.StatusPending || e.ClaimedUntil.After(now) {
			continue
		}
		e.ClaimedUntil = until
		repo.db.tables.events[i] = e
		e.Channels = append([]string(nil), e.Channels...)
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}
