package domain

import "fmt"

// RewardPolicy selects which aligned votes earn credibility.
type RewardPolicy string

const (
	// RewardEveryAlignedVote pays every aligned vote cast while the report
	// holds confirmed or false, including votes after the transition.
	RewardEveryAlignedVote RewardPolicy = "every"
	// RewardOnTransition pays only the vote that moved the report into
	// confirmed or false.
	RewardOnTransition RewardPolicy = "transition"
)

// DefaultRewardPoints is the credibility earned by an aligned vote.
const DefaultRewardPoints = 2

// ParseRewardPolicy validates a policy name.
func ParseRewardPolicy(s string) (RewardPolicy, error) {
	switch p := RewardPolicy(s); p {
	case RewardEveryAlignedVote, RewardOnTransition:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reward policy %q", s)
	}
}

// Reward is a credibility adjustment owed to a voter.
type Reward struct {
	UserID string
	Points int
	Cap    int
}

// ApplyTo raises u's score by the reward, clamped to [0, Cap], and counts an
// accurate report.
func (rw Reward) ApplyTo(u *UserTrust) {
	u.CredibilityScore = min(max(u.CredibilityScore+rw.Points, 0), rw.Cap)
	u.AccurateReports++
}

// CredibilityScorer decides whether a vote earns its voter credibility.
type CredibilityScorer struct {
	Policy RewardPolicy
	Points int
	Cap    int
}

// DefaultCredibilityScorer pays 2 points per aligned vote, capped at 100.
func DefaultCredibilityScorer() CredibilityScorer {
	return CredibilityScorer{Policy: RewardEveryAlignedVote, Points: DefaultRewardPoints, Cap: MaxCredibility}
}

// Score returns the reward for a vote of voteType that left the report in
// next after it was in prev.
func (c CredibilityScorer) Score(prev, next Status, voterID string, voteType VoteType) (Reward, bool) {
	aligned := (next == StatusConfirmed && voteType == VoteUp) ||
		(next == StatusFalse && voteType == VoteDown)
	if !aligned {
		return Reward{}, false
	}
	if c.Policy == RewardOnTransition && prev == next {
		return Reward{}, false
	}
	return Reward{UserID: voterID, Points: c.Points, Cap: c.Cap}, true
}
