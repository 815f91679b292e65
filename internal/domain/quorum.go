package domain

import (
	"math"
	"time"
)

// DefaultResolutionQuorum is the number of distinct non-reporter confirmations
// that resolve a report.
const DefaultResolutionQuorum = 3

// QuorumPolicy configures how a report becomes resolved.
type QuorumPolicy struct {
	Required int
	// CreatorShortcut lets the reporter resolve with a single confirmation.
	CreatorShortcut bool
}

// DefaultQuorumPolicy returns a quorum of three with the creator shortcut on.
func DefaultQuorumPolicy() QuorumPolicy {
	return QuorumPolicy{Required: DefaultResolutionQuorum, CreatorShortcut: true}
}

// Progress describes where a report stands after a confirmation.
type Progress struct {
	Resolved      bool `json:"resolved"`
	Confirmations int  `json:"confirmations"`
	Required      int  `json:"required"`
	// ByCreator is set when the reporter resolved the report directly.
	ByCreator bool `json:"byCreator,omitempty"`
}

// ResolutionQuorum tracks confirmations that service has been restored.
type ResolutionQuorum struct {
	Gate   GeoGate
	Policy QuorumPolicy
}

// Confirm records userID's confirmation on r and resolves the report when the
// reporter confirms (with the shortcut enabled) or the quorum is reached.
func (q ResolutionQuorum) Confirm(r *Report, userID string, at Point, now time.Time) (Progress, error) {
	required := max(q.Policy.Required, 1)
	progress := Progress{Confirmations: len(r.Confirmations), Required: required}

	if r.Status.Terminal() {
		return progress, ErrReportResolved
	}
	if !q.Gate.Eligible(r.Location, at) {
		return progress, ErrTooFar
	}

	if userID == r.ReporterID && q.Policy.CreatorShortcut {
		Resolve(r, now)
		progress.Resolved = true
		progress.ByCreator = true
		return progress, nil
	}

	if _, ok := r.Confirmations[userID]; ok {
		return progress, ErrAlreadyConfirmed
	}
	if r.Confirmations == nil {
		r.Confirmations = make(map[string]Confirmation)
	}
	r.Confirmations[userID] = Confirmation{Location: at, ConfirmedAt: now}
	progress.Confirmations = len(r.Confirmations)

	if progress.Confirmations >= required {
		Resolve(r, now)
		progress.Resolved = true
	}
	return progress, nil
}

// Resolve moves r to StatusResolved and stamps the resolution time and the
// outage duration in whole minutes. It is a no-op on a resolved report.
func Resolve(r *Report, now time.Time) {
	if r.Status.Terminal() {
		return
	}
	resolvedAt := now
	minutes := int(math.Round(resolvedAt.Sub(r.ReportedAt).Minutes()))
	r.Status = StatusResolved
	r.ResolvedAt = &resolvedAt
	r.OutageDurationMinutes = &minutes
}
