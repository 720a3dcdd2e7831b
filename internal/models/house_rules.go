// internal/models/house_rules.go
package models

// SessionBounds limits the settings a session may be created with.
type SessionBounds struct {
	MinRounds int
	MaxRounds int

	// MinSeconds and MaxSeconds bound the time per turn.
	MinSeconds int
	MaxSeconds int
}

// DefaultSessionBounds are used when no configuration overrides them.
var DefaultSessionBounds = SessionBounds{
	MinRounds:  1,
	MaxRounds:  10,
	MinSeconds: 30,
	MaxSeconds: 180,
}

// AllowsRounds reports whether n rounds is within bounds.
func (b SessionBounds) AllowsRounds(n int) bool {
	return n >= b.MinRounds && n <= b.MaxRounds
}

// AllowsSeconds reports whether a turn of n seconds is within bounds.
func (b SessionBounds) AllowsSeconds(n int) bool {
	return n >= b.MinSeconds && n <= b.MaxSeconds
}
