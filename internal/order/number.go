package order

import (
	"crypto/rand"
	"math/big"
	"time"
)

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewNumber returns "ORD-<yyyymmddHHMMSS>-<6 random [A-Z0-9]>".
func NewNumber(now time.Time) string {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return "ORD-" + now.UTC().Format("20060102150405") + "-" + string(suffix)
}
