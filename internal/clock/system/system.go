// Package system provides a real clock implementation.
package system

import "time"

// Clock implements crawl.Clock using time.Now. All persisted timestamps are
// UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
