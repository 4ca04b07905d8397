package txid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		id := Next()

		assert.True(t, strings.HasPrefix(id, "TXN"))
		// TXN + 13-digit millis + 9-char suffix
		assert.Len(t, id, 3+13+9)

		suffix := id[len(id)-9:]
		for _, c := range suffix {
			assert.Contains(t, alphabet, string(c))
		}
	})

	t.Run("NoObviousCollisions", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 1000; i++ {
			id := Next()
			_, dup := seen[id]
			assert.False(t, dup, "duplicate id generated: %s", id)
			seen[id] = struct{}{}
		}
	})
}
