package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Regexp(t, `^TKT_[A-Za-z0-9]{10}_[A-Za-z0-9]{10}$`, token)
		assert.Len(t, token, 25)
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestGenerateToken_UsesWholeAlphabet(t *testing.T) {
	seen := map[rune]bool{}
	for i := 0; i < 300; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		for _, r := range token[4:] {
			seen[r] = true
		}
	}
	// 6000 draws over 62 symbols: missing one is vanishingly unlikely.
	for _, r := range tokenAlphabet {
		assert.True(t, seen[r], "symbol %q never drawn", r)
	}
}
