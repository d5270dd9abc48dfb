package business

import "time"

// Profile captures a registered business and the attributes the matchmaker
// scores on. Reputation and partner success rates live in [0,1]; nil
// Reputation means the business has no rating yet and scoring falls back to
// the 0.5 default.
type Profile struct {
	ID            string
	Name          string
	Skills        []string
	Location      *string
	Reputation    *float64
	PriorPartners map[string]float64
	CreatedAt     time.Time
}

// Matchable reports whether the profile qualifies for pairing. Profiles
// without any declared skill never enter the candidate pool.
func (p Profile) Matchable() bool {
	return len(p.Skills) > 0
}
