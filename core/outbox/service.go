package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

var ErrNotFound = core.NewError(core.KindNotFound, "outbox event not found")

type (
	Repository interface {
		CreateEvent(ctx context.Context, e Event, exec ...core.DBExecutor) (Event, error)
		GetEvent(ctx context.Context, id string, exec ...core.DBExecutor) (Event, error)
		// QueryEvents returns events with status, oldest first, at most limit (0: no limit).
		QueryEvents(ctx context.Context, status Status, limit int, exec ...core.DBExecutor) ([]Event, error)
		// UpdateEvent also releases the event's claim.
		UpdateEvent(ctx context.Context, e Event, exec ...core.DBExecutor) (Event, error)
		// ClaimEvents picks at most limit pending events that no relay holds, oldest first,
		// and marks them as held until the given time. Concurrent callers never get the same event.
		ClaimEvents(ctx context.Context, limit int, until time.Time, exec ...core.DBExecutor) ([]Event, error)
	}

	// Dispatcher delivers an event to its final destination.
	Dispatcher interface {
		Dispatch(ctx context.Context, e Event) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enqueue records a pending event; pass the executor of the surrounding transaction.
func (svc *Service) Enqueue(ctx context.Context, kind string, payload interface{}, exec ...core.DBExecutor) (Event, error) {
	e, err := NewEvent(kind, payload)
	if err != nil {
		return Event{}, err
	}
	e, err = svc.repo.CreateEvent(ctx, e, exec...)
	if err != nil {
		return Event{}, errors.Wrap(err, "creating outbox event")
	}
	return e, nil
}

// Failed lists events that exhausted their attempts; admins only.
func (svc *Service) Failed(ctx context.Context) ([]Event, error) {
	if _, err := account.Require(ctx, account.RoleAdmin); err != nil {
		return nil, err
	}
	return svc.repo.QueryEvents(ctx, StatusFailed, 0)
}

// Retry puts a failed event back in the queue; admins only.
func (svc *Service) Retry(ctx context.Context, id string) (Event, error) {
	if _, err := account.Require(ctx, account.RoleAdmin); err != nil {
		return Event{}, err
	}
	e, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.Status != StatusFailed {
		return Event{}, core.NewError(core.KindInvalidState, fmt.Sprintf("event is %s", e.Status))
	}
	e.Status = StatusPending
	e.Attempts = 0
	e.LastError = ""
	e.ClaimedUntil = time.Time{}
	return svc.repo.UpdateEvent(ctx, e)
}

// Relay polls pending events and hands them to a Dispatcher.
type Relay struct {
	repo        Repository
	dispatcher  Dispatcher
	logger      core.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	lease       time.Duration
}

func NewRelay(repo Repository, dispatcher Dispatcher, conf core.OutboxConfig, logger core.Logger) *Relay {
	r := &Relay{
		repo:        repo,
		dispatcher:  dispatcher,
		logger:      logger,
		interval:    conf.PollInterval,
		batchSize:   conf.BatchSize,
		maxAttempts: conf.MaxAttempts,
		lease:       conf.ClaimTimeout,
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Second
	}
	if r.batchSize <= 0 {
		r.batchSize = 20
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 5
	}
	if r.lease <= 0 {
		r.lease = time.Minute
	}
	return r
}

// Run processes the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error(fmt.Sprintf("processing outbox: %v", err), err)
			}
		}
	}
}

// ProcessOnce claims one batch of pending events, dispatches it and returns how many were sent and how many failed for good.
// Several relays may run against the same outbox; each event is handed to one of them at a time.
func (r *Relay) ProcessOnce(ctx context.Context) (sent, failed int, err error) {
	events, err := r.repo.ClaimEvents(ctx, r.batchSize, core.NowFunc().Add(r.lease))
	if err != nil {
		return 0, 0, errors.Wrap(err, "claiming pending events")
	}

	for _, e := range events {
		dErr := r.dispatcher.Dispatch(ctx, e)
		e.Attempts++
		e.ProcessedAt = core.NowFunc()
		e.ClaimedUntil = time.Time{}
		if dErr == nil {
			e.Status = StatusSent
			e.LastError = ""
			sent++
		} else {
			var partial *DeliveryError
			if errors.As(dErr, &partial) {
				for _, c := range partial.Delivered {
					if !e.Reached(c) {
						e.Channels = append(e.Channels, c)
					}
				}
			}
			e.LastError = dErr.Error()
			if e.Attempts >= r.maxAttempts {
				e.Status = StatusFailed
				failed++
			}
			r.logger.Error(
				fmt.Sprintf("dispatching %s event %s (attempt %d/%d): %v", e.Kind, e.ID, e.Attempts, r.maxAttempts, dErr),
				dErr, map[string]interface{}{"event_id": e.ID, "kind": e.Kind},
			)
		}
		if _, err = r.repo.UpdateEvent(ctx, e); err != nil {
			return sent, failed, errors.Wrap(err, "updating outbox event")
		}
	}
	return sent, failed, nil
}
