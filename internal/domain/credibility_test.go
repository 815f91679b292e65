package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredibilityScorer_Score(t *testing.T) {
	every := DefaultCredibilityScorer()
	transition := CredibilityScorer{Policy: RewardOnTransition, Points: 2, Cap: 100}

	tests := []struct {
		name       string
		scorer     CredibilityScorer
		prev, next Status
		vote       VoteType
		want       bool
	}{
		{"upvote crossing into confirmed", every, StatusLikely, StatusConfirmed, VoteUp, true},
		{"upvote while already confirmed", every, StatusConfirmed, StatusConfirmed, VoteUp, true},
		{"downvote into false", every, StatusUnverified, StatusFalse, VoteDown, true},
		{"downvote on confirmed", every, StatusConfirmed, StatusConfirmed, VoteDown, false},
		{"upvote on likely", every, StatusUnverified, StatusLikely, VoteUp, false},
		{"upvote on false", every, StatusFalse, StatusFalse, VoteUp, false},
		{"transition policy pays the edge", transition, StatusLikely, StatusConfirmed, VoteUp, true},
		{"transition policy skips later votes", transition, StatusConfirmed, StatusConfirmed, VoteUp, false},
		{"transition policy on false edge", transition, StatusUnverified, StatusFalse, VoteDown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward, ok := tt.scorer.Score(tt.prev, tt.next, "voter", tt.vote)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, Reward{UserID: "voter", Points: 2, Cap: 100}, reward)
			}
		})
	}
}

func TestReward_ApplyTo(t *testing.T) {
	u := NewUserTrust("voter", kathmandu)
	Reward{UserID: "voter", Points: 2, Cap: 100}.ApplyTo(&u)
	assert.Equal(t, 52, u.CredibilityScore)
	assert.Equal(t, 1, u.AccurateReports)

	u.CredibilityScore = 99
	Reward{UserID: "voter", Points: 2, Cap: 100}.ApplyTo(&u)
	assert.Equal(t, 100, u.CredibilityScore, "capped")
	assert.Equal(t, 2, u.AccurateReports, "counter still moves at the cap")
}

func TestParseRewardPolicy(t *testing.T) {
	p, err := ParseRewardPolicy("transition")
	require.NoError(t, err)
	assert.Equal(t, RewardOnTransition, p)

	_, err = ParseRewardPolicy("sometimes")
	assert.Error(t, err)
}
