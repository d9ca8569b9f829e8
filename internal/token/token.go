// Package token formats and parses the human-readable credential strings
// "{prefix}_{environment}_{key}".
package token

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformed is returned when a string does not match the token grammar.
var ErrMalformed = errors.New("token: malformed")

var grammar = regexp.MustCompile(`^[a-z]+_[a-z]+_.+$`)

// Token is a parsed credential string.
type Token struct {
	Type        string // "sk", "pk", or whatever prefix was configured
	Environment string
	Key         string // encoded key material, may contain underscores
}

// Valid reports whether s matches the token grammar.
func Valid(s string) bool {
	return grammar.MatchString(s)
}

// Parse splits s on its first two underscores.
func Parse(s string) (Token, error) {
	if !Valid(s) {
		return Token{}, ErrMalformed
	}
	parts := strings.SplitN(s, "_", 3)
	return Token{Type: parts[0], Environment: parts[1], Key: parts[2]}, nil
}

// Prefix returns the lookup partition "{prefix}_{environment}_".
func (t Token) Prefix() string {
	return Prefix(t.Type, t.Environment)
}

// String reassembles the full token string.
func (t Token) String() string {
	return Format(t.Type, t.Environment, t.Key)
}

// Prefix builds "{prefix}_{environment}_".
func Prefix(prefix, environment string) string {
	return prefix + "_" + environment + "_"
}

// Format builds "{prefix}_{environment}_{key}".
func Format(prefix, environment, key string) string {
	return Prefix(prefix, environment) + key
}
