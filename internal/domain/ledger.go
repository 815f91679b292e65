package domain

import "time"

// VoteLedger records one vote per user on a report.
type VoteLedger struct {
	Gate GeoGate
}

// Cast applies voterID's vote to r and returns the recounted tally.
//
// Preconditions are checked in order, each with its own error: the report is
// not resolved, the voter is not the reporter, the voter is within the
// eligibility radius, and the vote type is recognised. A voter's earlier
// entry is replaced, never added to.
func (l VoteLedger) Cast(r *Report, voterID string, voteType VoteType, at Point, now time.Time) (Tally, error) {
	if r.Status.Terminal() {
		return r.Tally(), ErrReportResolved
	}
	if voterID == r.ReporterID {
		return r.Tally(), ErrSelfVote
	}
	if !l.Gate.Eligible(r.Location, at) {
		return r.Tally(), ErrTooFar
	}
	if !voteType.Valid() {
		return r.Tally(), ErrInvalidVoteType
	}

	if r.Votes == nil {
		r.Votes = make(map[string]Vote)
	}
	r.Votes[voterID] = Vote{Type: voteType, Location: at, CastAt: now}

	t := r.Tally()
	r.Upvotes = t.Upvotes
	r.Downvotes = t.Downvotes
	return t, nil
}
