package invitecode

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_CodeLengthAndCharset(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("codes have the configured length and stay inside the alphabet", prop.ForAll(
		func(length int) bool {
			alphabet := "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
			g, err := New(length, alphabet)
			if err != nil {
				return false
			}

			for range 50 {
				code, err := g.Generate()
				if err != nil {
					return false
				}
				if len(code) != length {
					return false
				}
				for _, r := range code {
					if !strings.ContainsRune(alphabet, r) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_CodesAreWellDistributed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a batch of codes is mostly collision free", prop.ForAll(
		func(count int) bool {
			g, err := New(8, "ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
			if err != nil {
				return false
			}

			// With 32^8 possible codes, any collision in a small batch
			// points at a broken random source.
			seen := make(map[string]bool, count)
			for range count {
				code, err := g.Generate()
				if err != nil {
					return false
				}
				if seen[code] {
					return false
				}
				seen[code] = true
			}
			return true
		},
		gen.IntRange(100, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
