package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// event kinds
const (
	KindGroupInvitation = "group.invitation"
)

// Event is a side effect recorded in the same transaction as the write that caused it.
type Event struct {
	ID          string          `json:"id" db:"id"`
	Kind        string          `json:"kind" db:"kind"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      Status          `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	LastError   string          `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt time.Time       `json:"processed_at" db:"processed_at"`
	// Channels lists the dispatcher channels that already took the event.
	Channels []string `json:"channels,omitempty" db:"channels"`
	// ClaimedUntil is set while a relay works on the event.
	ClaimedUntil time.Time `json:"-" db:"claimed_until"`
}

// Reached reports whether channel already took the event.
func (e Event) Reached(channel string) bool {
	for _, c := range e.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// DeliveryError is returned by a dispatcher with several channels when only some of them took the event.
type DeliveryError struct {
	Delivered []string
	Err       error
}

func (e *DeliveryError) Error() string { return e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }

func NewEvent(kind string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.Wrap(err, "marshalling outbox payload")
	}
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   data,
		Status:    StatusPending,
		CreatedAt: core.NowFunc(),
	}, nil
}

// Invitation is the payload of KindGroupInvitation events: the join code of a group mailed to a student.
type Invitation struct {
	Email     string `json:"email"`
	JoinCode  string `json:"joinCode"`
	GroupName string `json:"groupName"`
}

func (e Event) Invitation() (Invitation, error) {
	var inv Invitation
	if e.Kind != KindGroupInvitation {
		return inv, errors.Errorf("event %s is a %q event", e.ID, e.Kind)
	}
	if err := json.Unmarshal(e.Payload, &inv); err != nil {
		return inv, errors.Wrap(err, "unmarshalling invitation")
	}
	return inv, nil
}

// Validate reports the missing fields of an invitation.
func (inv Invitation) Validate() error {
	var fields []core.FieldError
	for _, f := range []struct{ name, value string }{
		{"email", inv.Email},
		{"joinCode", inv.JoinCode},
		{"groupName", inv.GroupName},
	} {
		if core.CleanString(f.value) == "" {
			fields = append(fields, core.FieldError{Field: f.name, Error: "this field is required"})
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New("missing required fields"), fields...)
	}
	return nil
}
