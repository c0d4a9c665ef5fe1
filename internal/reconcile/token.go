package reconcile

import (
	"crypto/rand"
	"math/big"
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenSegment  = 10
)

// TokenGenerator produces a fresh entry token on every call.
type TokenGenerator func() (string, error)

// GenerateToken returns TKT_<10>_<10> drawn uniformly from [A-Za-z0-9].
func GenerateToken() (string, error) {
	first, err := randomSegment(tokenSegment)
	if err != nil {
		return "", err
	}
	second, err := randomSegment(tokenSegment)
	if err != nil {
		return "", err
	}
	return "TKT_" + first + "_" + second, nil
}

func randomSegment(n int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tokenAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
