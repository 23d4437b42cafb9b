package notifysvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/outbox"
)

// Channel is one named destination of a Fanout.
type Channel struct {
	Name string
	outbox.Dispatcher
}

// Fanout hands each event to every channel the event has not reached yet.
// When only some channels take it, the returned *outbox.DeliveryError names them so that the retry skips them.
type Fanout []Channel

var _ outbox.Dispatcher = Fanout(nil)

func (f Fanout) Dispatch(ctx context.Context, e outbox.Event) error {
	var delivered, msgs []string
	for _, c := range f {
		if e.Reached(c.Name) {
			continue
		}
		if err := c.Dispatch(ctx, e); err != nil {
			msgs = append(msgs, err.Error())
			continue
		}
		delivered = append(delivered, c.Name)
	}
	if len(msgs) == 0 {
		return nil
	}
	err := errors.New(strings.Join(msgs, "; "))
	if len(delivered) == 0 {
		return err
	}
	return &outbox.DeliveryError{Delivered: delivered, Err: err}
}
