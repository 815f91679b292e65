package domain

// NextStatus maps a vote tally to a report status. It never returns
// StatusResolved; resolution is entered only through ResolutionQuorum.
func NextStatus(upvotes, downvotes int) Status {
	switch {
	case downvotes >= 3 && downvotes > upvotes:
		return StatusFalse
	case upvotes >= 4:
		return StatusConfirmed
	case upvotes >= 2:
		return StatusLikely
	default:
		return StatusUnverified
	}
}

// Recompute sets r.Status from its cached tally unless r is resolved,
// and returns the status it held before.
func Recompute(r *Report) Status {
	prev := r.Status
	if prev.Terminal() {
		return prev
	}
	r.Status = NextStatus(r.Upvotes, r.Downvotes)
	return prev
}
