package notifysvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
)

// EmailDispatcher mails outbox events to their recipients.
type EmailDispatcher struct {
	mailSvc core.EmailService
}

var _ outbox.Dispatcher = (*EmailDispatcher)(nil)

func NewEmailDispatcher(mailSvc core.EmailService) *EmailDispatcher {
	return &EmailDispatcher{mailSvc: mailSvc}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, e outbox.Event) error {
	switch e.Kind {
	case outbox.KindGroupInvitation:
		inv, err := e.Invitation()
		if err != nil {
			return err
		}
		return d.SendInvitation(ctx, inv)
	}
	return errors.Errorf("no email for %s events", e.Kind)
}

// SendInvitation mails a group join code and waits for the delivery outcome.
func (d *EmailDispatcher) SendInvitation(ctx context.Context, inv outbox.Invitation) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      fmt.Sprintf("Your join code for %s", inv.GroupName),
		TemplateName: "join_code",
		TemplateData: map[string]interface{}{
			"GroupName": inv.GroupName,
			"JoinCode":  inv.JoinCode,
		},
	}
	if err := d.mailSvc.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "mailing join code to %s", inv.Email)
	}
	return nil
}
