// Package shortcode generates and validates the compact identifiers used in
// short links. Generated codes carry no uniqueness guarantee of their own;
// uniqueness is the caller's responsibility.
package shortcode

import (
	"math/rand"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet is the 62-symbol alphanumeric alphabet codes are drawn from.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultLength is the code length used when none is configured.
	DefaultLength = 5

	// MinCustomLength and MaxCustomLength bound caller-supplied custom codes.
	MinCustomLength = 3
	MaxCustomLength = 20
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidCustomCode reports whether code is acceptable as a caller-supplied
// short code: 3-20 characters, alphanumeric plus hyphen and underscore.
func ValidCustomCode(code string) bool {
	if len(code) < MinCustomLength || len(code) > MaxCustomLength {
		return false
	}
	return customCodeRe.MatchString(code)
}

// Generator produces short codes of a fixed length.
type Generator struct {
	length int
}

// New creates a Generator producing codes of the given length.
// A non-positive length falls back to DefaultLength.
func New(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Generate returns a new code. It uses nanoid over the alphanumeric alphabet
// and falls back to plain random sampling from the same alphabet if the
// underlying entropy source is unavailable, keeping the same output shape.
func (g *Generator) Generate() string {
	code, err := gonanoid.Generate(alphabet, g.length)
	if err != nil {
		return g.generateFallback()
	}
	return code
}

func (g *Generator) generateFallback() string {
	b := make([]byte, g.length)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
