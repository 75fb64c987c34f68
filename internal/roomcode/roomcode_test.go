package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		assert.Len(t, code, CodeLength)
	}
}

func TestGenerateAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		for _, c := range code {
			assert.Contains(t, Alphabet, string(c))
		}
	}
}

func TestAlphabetExcludesAmbiguous(t *testing.T) {
	for _, forbidden := range []string{"0", "1", "I", "O"} {
		assert.False(t, strings.Contains(Alphabet, forbidden), "alphabet must not contain %s", forbidden)
	}
	assert.Len(t, Alphabet, 32)
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Generate()] = true
	}
	// 50 draws from a 32^8 space colliding down to a handful would mean a
	// broken random source
	assert.Greater(t, len(seen), 45)
}
