package notifysvc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/outbox"
	emailsvc "github.com/trezcool/trackit/services/email"
	"github.com/trezcool/trackit/tests"
)

func TestEmailDispatcher_Dispatch(t *testing.T) {
	env := testutil.NewEnv(t)

	e, err := outbox.NewEvent(outbox.KindGroupInvitation, outbox.Invitation{Email: "ada@test.io", JoinCode: "ABC123", GroupName: "Alpha"})
	require.NoError(t, err)
	require.NoError(t, env.Invitations.Dispatch(context.Background(), e))

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@test.io", sent[0].To[0].Address)
	assert.Equal(t, "Your join code for Alpha", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "ABC123")
	assert.Contains(t, sent[0].HTMLContent, "ABC123")

	t.Run("unknown kind", func(t *testing.T) {
		err := env.Invitations.Dispatch(context.Background(), outbox.Event{Kind: "group.deleted"})
		assert.EqualError(t, err, "no email for group.deleted events")
	})

	t.Run("incomplete invitation", func(t *testing.T) {
		err := env.Invitations.SendInvitation(context.Background(), outbox.Invitation{Email: "ada@test.io"})
		assert.True(t, core.IsValidationError(err))
		assert.EqualError(t, err, "missing required fields")
	})

	assert.Len(t, emailsvc.SentMessages(), 1)
}
