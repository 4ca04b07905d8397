package txid

import (
	"crypto/rand"
	"strconv"
	"time"
)

const (
	prefix    = "TXN"
	suffixLen = 9
	alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Next returns a fresh transaction handle: the TXN prefix, a millisecond
// timestamp for rough ordering, and a random base-36 suffix. Uniqueness is
// probabilistic, not guaranteed; the store reports a collision as a
// duplicate-key conflict and the caller regenerates.
func Next() string {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible to fall back to.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + string(buf)
}
