package account

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_text(t *testing.T) {
	for _, r := range AllRoles {
		t.Run(r.String(), func(t *testing.T) {
			data, err := json.Marshal(struct{ Role Role }{r})
			require.NoError(t, err)

			var got struct{ Role Role }
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, r, got.Role)

			v, err := r.Value()
			require.NoError(t, err)
			var scanned Role
			require.NoError(t, scanned.Scan([]byte(v.(string))))
			assert.Equal(t, r, scanned)
		})
	}
}

func TestRole_invalid(t *testing.T) {
	_, err := ParseRole("Admin")
	assert.Equal(t, ErrUnknownRole, errors.Cause(err))

	var zero Role
	assert.False(t, zero.Valid())
	_, err = json.Marshal(struct{ Role Role }{zero})
	assert.Error(t, err)
	_, err = zero.Value()
	assert.Equal(t, ErrUnknownRole, err)

	var r Role
	assert.EqualError(t, r.Scan(3), "cannot scan int into Role")
	assert.Error(t, json.Unmarshal([]byte(`{"Role":"dean"}`), &struct{ Role *Role }{&r}))
}
