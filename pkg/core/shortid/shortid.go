// Package shortid generates URL-safe link ids.
package shortid

import (
	"crypto/rand"
	"fmt"
)

// Alphabet has exactly 64 symbols so a 6-bit mask picks uniformly.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// DefaultLength is used when a non-positive length is requested.
const DefaultLength = 6

// Generate returns length random characters from Alphabet.
func Generate(length int) (string, error) {
	const op = "shortid.Generate"

	if length <= 0 {
		length = DefaultLength
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for i := range b {
		b[i] = Alphabet[b[i]&63]
	}
	return string(b), nil
}

// Generator is a fixed-length id source.
type Generator struct {
	Length int
}

// NewGenerator returns a Generator producing ids of the given length.
func NewGenerator(length int) *Generator {
	return &Generator{Length: length}
}

func (g *Generator) Generate() (string, error) {
	return Generate(g.Length)
}
