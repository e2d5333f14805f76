package queue

import (
	"crypto/rand"
	"math/big"
)

const (
	claimTokenLength   = 32
	claimTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

func newClaimToken() (string, error) {
	limit := big.NewInt(int64(len(claimTokenAlphabet)))
	buf := make([]byte, claimTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = claimTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
