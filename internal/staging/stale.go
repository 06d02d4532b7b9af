package staging

import "time"

// CheckStale classifies how long a session has sat idle against policy,
// per spec.md §4.5's check_stale_session: below the ask threshold is
// normal, at or past it the caller should ask the user whether to
// continue, and at or past the auto-compact threshold the caller must
// compact before any further operation runs.
func CheckStale(idle time.Duration, policy StalePolicy) StaleStatus {
	switch {
	case idle >= policy.AutoCompactThreshold:
		return StaleAutoCompacted
	case idle >= policy.AskThreshold:
		return StaleShouldAsk
	default:
		return StaleNone
	}
}
