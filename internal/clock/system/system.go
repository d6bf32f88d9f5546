// Package system provides the wall clock used to time crawl runs.
package system

import (
	"time"

	"github.com/JakeFAU/guugle/internal/crawler"
)

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
