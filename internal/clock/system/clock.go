// Package system provides the wall clock used to timestamp queue items and
// samples.
package system

import "time"

// Clock implements crawler.Clock on top of time.Now, always in UTC so catalog
// rows and sample events compare cleanly across hosts.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
