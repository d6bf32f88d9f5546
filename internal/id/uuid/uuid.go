// Package uuid generates crawl run and request identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/guugle/internal/crawler"
)

// Generator creates UUID strings.
type Generator struct{}

var _ crawler.IDGenerator = Generator{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a time-ordered UUIDv7 string, used for crawl run ids.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRequestID returns a random UUIDv4 string for HTTP request correlation.
// It falls back to the nil UUID if the random source fails.
func (Generator) NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil.String()
	}
	return id.String()
}
