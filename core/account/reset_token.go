package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokens from a clock running this much ahead are still accepted
const resetTokenSkew = time.Minute

// resetToken is the credential of a password reset link, written "<issued>.<mac>":
// issued is the unix time it was made in base 36 and mac an HMAC-SHA256 binding it to the account state.
// Signing in or changing the password changes that state, so a token works until it expires or one of them happens.
type resetToken struct {
	issued time.Time
	mac    []byte
}

func newResetToken(acc Account, secret string, now time.Time) resetToken {
	issued := now.Truncate(time.Second)
	return resetToken{issued: issued, mac: resetMAC(acc, secret, issued)}
}

func (t resetToken) String() string {
	return strconv.FormatInt(t.issued.Unix(), 36) + "." + base64.RawURLEncoding.EncodeToString(t.mac)
}

func parseResetToken(s string) (resetToken, error) {
	issued, mac, ok := strings.Cut(s, ".")
	if !ok || issued == "" || mac == "" {
		return resetToken{}, errInvalidToken
	}
	secs, err := strconv.ParseInt(issued, 36, 64)
	if err != nil || secs <= 0 {
		return resetToken{}, errInvalidToken
	}
	sum, err := base64.RawURLEncoding.DecodeString(mac)
	if err != nil || len(sum) != sha256.Size {
		return resetToken{}, errInvalidToken
	}
	return resetToken{issued: time.Unix(secs, 0), mac: sum}, nil
}

// check tells whether t was issued for acc, as it is now, less than ttl ago.
func (t resetToken) check(acc Account, secret string, ttl time.Duration, now time.Time) error {
	if !hmac.Equal(t.mac, resetMAC(acc, secret, t.issued)) {
		return errInvalidToken
	}
	if t.issued.After(now.Add(resetTokenSkew)) {
		return errInvalidToken
	}
	if now.Sub(t.issued) > ttl {
		return errTokenExpired
	}
	return nil
}

func resetMAC(acc Account, secret string, issued time.Time) []byte {
	h := hmac.New(sha256.New, []byte("trackit/password-reset/"+secret))
	field := func(b []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	field([]byte(acc.ID))
	field(acc.PasswordHash)
	var login, at [8]byte
	if !acc.LastLogin.IsZero() {
		binary.BigEndian.PutUint64(login[:], uint64(acc.LastLogin.UnixNano()))
	}
	binary.BigEndian.PutUint64(at[:], uint64(issued.Unix()))
	field(login[:])
	field(at[:])
	return h.Sum(nil)
}
