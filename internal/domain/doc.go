// Package domain models crowd-verified outage reports and the rules that move
// a report through its lifecycle.
//
// # Report Lifecycle
//
// A report is created as "unverified" at a fixed point. Nearby users vote on
// it and the status is recomputed from the vote tally after every vote:
//
//	downvotes >= 3 and downvotes > upvotes  →  false
//	upvotes >= 4                            →  confirmed
//	upvotes >= 2                            →  likely
//	otherwise                               →  unverified
//
// There is no ratchet: a confirmed report moves back to likely if later votes
// shift the balance. "resolved" is only reachable through [ResolutionQuorum]
// and is terminal. Once resolved, votes and confirmations are rejected.
//
// # Ledgers
//
// Votes and resolution confirmations are maps keyed by user id, so a user
// holds at most one entry in each. A repeated vote replaces the earlier one.
// Upvote and downvote counts are always recounted from the full ledger.
//
// # Geography
//
// Points are WGS-84 longitude/latitude pairs (GeoJSON order). Distances are
// great-circle distances on a sphere of radius [EarthRadiusMeters] using the
// haversine formula. A flat lng/lat approximation is not used anywhere.
//
//	Region:       lng 80.0..88.2, lat 26.3..30.4 (default operating territory)
//	Discovery:    5000 m around the caller
//	Eligibility:  1000 m from the report for voting and resolution
//
// # Trust
//
// Users start with a credibility score of 50. A vote that agrees with the
// report's status (upvote on confirmed, downvote on false) earns 2 points,
// capped at 100, and counts as an accurate report. [RewardEveryAlignedVote]
// pays every aligned vote while the report sits in that status;
// [RewardOnTransition] pays only the vote that moved the report into it.
//
// The functions in this package are pure: they mutate the values they are
// given and never perform I/O. Persistence belongs to the caller.
package domain
