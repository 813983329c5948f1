package order

import (
	"crypto/rand"
	"math/big"
)

// No 0/O or 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewConfirmationCode returns an upper-case delivery confirmation code.
func NewConfirmationCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
