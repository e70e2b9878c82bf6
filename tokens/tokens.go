// Package tokens issues and validates the short attendance codes printed on
// registration badges.
package tokens

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
)

const (
	// Alphabet is the set of characters a token is drawn from
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length is the fixed number of characters in a token
	Length = 6
	// MaxAttempts bounds how many tokens Allocate tries before giving up
	MaxAttempts = 5
)

var (
	// ErrMalformedToken is returned for input that is not a well formed token
	ErrMalformedToken = errors.New("malformed token")
	// ErrTokenTaken is returned by an insert func when the token already exists
	ErrTokenTaken = errors.New("token already taken")
	// ErrTokenAllocationFailed is returned when every attempt collided
	ErrTokenAllocationFailed = errors.New("token allocation failed")
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a random token. It is not unique on its own, see Allocate.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Normalize trims surrounding whitespace and upper cases manual entry
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate checks a normalized token for length and alphabet
func Validate(token string) error {
	if len(token) != Length {
		return ErrMalformedToken
	}
	for i := 0; i < len(token); i++ {
		if strings.IndexByte(Alphabet, token[i]) < 0 {
			return ErrMalformedToken
		}
	}
	return nil
}

// Allocator hands out tokens and persists them through an insert func
type Allocator struct {
	generate    func() (string, error)
	maxAttempts int
}

// NewAllocator returns an Allocator backed by Generate
func NewAllocator() *Allocator {
	return &Allocator{generate: Generate, maxAttempts: MaxAttempts}
}

// Allocate generates a token and passes it to insert. When insert reports
// ErrTokenTaken a fresh token is tried, up to MaxAttempts times.
func (a *Allocator) Allocate(ctx context.Context, insert func(ctx context.Context, token string) error) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		token, err := a.generate()
		if err != nil {
			return "", err
		}
		err = insert(ctx, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrTokenTaken) {
			return "", err
		}
		zap.S().Warnw("token collision, regenerating", "attempt", attempt)
	}
	return "", ErrTokenAllocationFailed
}
