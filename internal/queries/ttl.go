package queries

import "time"

// TTLs bounds staleness per resource class.
type TTLs struct {
	Profile   time.Duration
	Sessions  time.Duration
	Session   time.Duration
	Feed      time.Duration
	Palmares  time.Duration
	PRs       time.Duration
	Follows   time.Duration
	MyProfile time.Duration
}

// DefaultTTLs returns the standard staleness bounds.
func DefaultTTLs() TTLs {
	return TTLs{
		Profile:   60 * time.Second,
		Sessions:  30 * time.Second,
		Session:   60 * time.Second,
		Feed:      20 * time.Second,
		Palmares:  300 * time.Second,
		PRs:       120 * time.Second,
		Follows:   30 * time.Second,
		MyProfile: 30 * time.Second,
	}
}
