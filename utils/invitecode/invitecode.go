// Package invitecode generates fixed-length room invite codes from a
// configurable alphabet using a cryptographically secure random source.
//
// The generator only guarantees randomness, not uniqueness; callers are
// expected to check generated codes against existing rooms and retry on
// collision with a bounded attempt budget.
package invitecode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

var (
	ErrInvalidLength = errors.New("invite code length must be positive")
	ErrEmptyAlphabet = errors.New("invite code alphabet must not be empty")
)

// Generator produces random invite codes. Length and alphabet are
// construction-time invariants; Generate never re-validates them.
type Generator struct {
	length   int
	alphabet []rune
}

// New creates a Generator. Duplicate alphabet characters are collapsed so
// the output distribution stays uniform over distinct characters.
func New(length int, alphabet string) (*Generator, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	if alphabet == "" {
		return nil, ErrEmptyAlphabet
	}

	seen := make(map[rune]bool, len(alphabet))
	distinct := make([]rune, 0, len(alphabet))
	for _, r := range alphabet {
		if !seen[r] {
			seen[r] = true
			distinct = append(distinct, r)
		}
	}

	return &Generator{
		length:   length,
		alphabet: distinct,
	}, nil
}

// Generate returns a new random code of the configured length.
func (g *Generator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))

	var sb strings.Builder
	sb.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteRune(g.alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// AlphabetSize returns the number of distinct characters codes draw from.
func (g *Generator) AlphabetSize() int {
	return len(g.alphabet)
}
