package models

import "time"

type RateLimitCounter struct {
	Identifier   string
	Action       string
	Attempts     int
	LastAttempt  time.Time
	LockoutUntil *time.Time
}

// Locked reports whether the counter is in an active lockout at now.
func (c RateLimitCounter) Locked(now time.Time) bool {
	return c.LockoutUntil != nil && now.Before(*c.LockoutUntil)
}

// RateLimitHit carries everything the store needs to apply one attempt atomically.
type RateLimitHit struct {
	Identifier  string
	Action      string
	Now         time.Time
	WindowStart time.Time
	Threshold   int
	LockUntil   time.Time
}
