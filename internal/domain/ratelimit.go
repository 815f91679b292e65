package domain

import "time"

// DefaultReportCooldown is the minimum gap between two reports by one user.
const DefaultReportCooldown = 15 * time.Minute

// RateLimiter enforces the cooldown between successive report submissions.
// The check here is advisory; stores apply CooldownElapsed atomically with
// the insert of the new report.
type RateLimiter struct {
	Cooldown time.Duration
}

// NotBefore is the instant a user's previous report must predate for a new
// report at now to be accepted.
func (l RateLimiter) NotBefore(now time.Time) time.Time {
	return now.Add(-l.Cooldown)
}

// Allow reports whether u may submit a report at now. It does not mutate u.
func (l RateLimiter) Allow(u UserTrust, now time.Time) bool {
	return CooldownElapsed(u.LastReportAt, l.NotBefore(now))
}

// CooldownElapsed reports whether last is unset or strictly before notBefore.
func CooldownElapsed(last *time.Time, notBefore time.Time) bool {
	return last == nil || last.Before(notBefore)
}

// RecordReport stamps a new submission on u.
func RecordReport(u *UserTrust, at time.Time) {
	t := at
	u.LastReportAt = &t
	u.TotalReports++
}
