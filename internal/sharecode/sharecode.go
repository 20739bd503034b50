// Package sharecode generates and checks the 8-digit codes that identify
// anonymous uploads.
package sharecode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

const (
	Length = 8

	minCode = 10_000_000
	maxCode = 99_999_999
)

var span = big.NewInt(maxCode - minCode + 1)

// Generator draws share codes from a random source.
type Generator struct {
	source io.Reader
}

// NewGenerator returns a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{source: rand.Reader}
}

// NewGeneratorWithSource is used by tests to make generation deterministic.
func NewGeneratorWithSource(source io.Reader) *Generator {
	return &Generator{source: source}
}

// Generate returns a uniformly distributed code in [10000000, 99999999].
// Uniqueness is not checked.
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.source, span)
	if err != nil {
		return "", fmt.Errorf("drawing share code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}

// Generate draws a code from crypto/rand.
func Generate() (string, error) {
	return NewGenerator().Generate()
}

// Valid reports whether code is exactly eight ASCII digits.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
