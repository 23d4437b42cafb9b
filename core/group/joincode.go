package group

import (
	"crypto/rand"
	"math/big"
)

const (
	joinCodeLen      = 6
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var newJoinCode = generateJoinCode // mockable

// generateJoinCode draws a uniformly random code over [A-Z0-9].
// Collisions are left to the storage unique constraint.
func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, joinCodeLen)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
