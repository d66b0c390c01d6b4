package model

import "time"

// ExpirationPolicy decides the logical validity of a registration from its age.
// A zero MaxAge means registrations never expire.
type ExpirationPolicy struct {
	MaxAge time.Duration
}

func NewExpirationPolicy(maxAge time.Duration) ExpirationPolicy {
	return ExpirationPolicy{MaxAge: maxAge}
}

// IsExpired is the policy as a free function.
func IsExpired(reg *Registration, now time.Time, policy ExpirationPolicy) bool {
	return policy.IsExpired(reg, now)
}

func (p ExpirationPolicy) Enabled() bool {
	return p.MaxAge > 0
}

func (p ExpirationPolicy) IsExpired(reg *Registration, now time.Time) bool {
	if !p.Enabled() {
		return false
	}

	return now.Sub(reg.CreatedAt) > p.MaxAge
}

// Cutoff is the oldest creation time still considered valid at now.
// It returns the zero time when the policy is disabled.
func (p ExpirationPolicy) Cutoff(now time.Time) time.Time {
	if !p.Enabled() {
		return time.Time{}
	}

	return now.Add(-p.MaxAge)
}

// Active returns the registrations that are not expired at now, never nil.
func (p ExpirationPolicy) Active(regs []*Registration, now time.Time) []*Registration {
	out := make([]*Registration, 0, len(regs))
	for _, reg := range regs {
		if !p.IsExpired(reg, now) {
			out = append(out, reg)
		}
	}

	return out
}

// Expired returns the registrations that are expired at now, never nil.
func (p ExpirationPolicy) Expired(regs []*Registration, now time.Time) []*Registration {
	out := make([]*Registration, 0)
	for _, reg := range regs {
		if p.IsExpired(reg, now) {
			out = append(out, reg)
		}
	}

	return out
}
