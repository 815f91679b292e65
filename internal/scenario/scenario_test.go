package scenario

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
)

var discard = slog.New(slog.DiscardHandler)

func TestLoad_Sample(t *testing.T) {
	sc, err := Load("testdata/creator_resolves.yaml")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.June, 3, 18, 0, 0, 0, time.UTC), sc.Start.UTC())
	assert.Len(t, sc.Users, 5)
	require.Len(t, sc.Steps, 10)
	assert.Equal(t, OpSubmit, sc.Steps[0].Op)
	assert.Equal(t, 75*time.Minute, sc.Steps[7].After)
	require.NotNil(t, sc.Steps[7].Expect.Duration)
	assert.Equal(t, 95, *sc.Steps[7].Expect.Duration)
}

func TestRun_Sample(t *testing.T) {
	sc, err := Load("testdata/creator_resolves.yaml")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), sc, &out, discard))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10)
	assert.Contains(t, lines[3], "rejected (policy)")
	assert.Contains(t, lines[5], "confirmed up=4 down=0 rewarded")
	assert.Contains(t, lines[7], "resolved after 95 minutes")
}

func TestRun_ExpectationMismatch(t *testing.T) {
	sc, err := Parse([]byte(`
users:
  - {id: asha, home: {lng: 85.30, lat: 27.70}}
  - {id: bikash, home: {lng: 85.30, lat: 27.70}}
steps:
  - {op: submit, user: asha, report: r1, at: {lng: 85.30, lat: 27.70}, area: Thamel}
  - {op: vote, user: bikash, report: r1, vote: upvote, at: {lng: 85.30, lat: 27.70}, expect: {status: likely}}
`))
	require.NoError(t, err)

	err = Run(context.Background(), sc, &bytes.Buffer{}, discard)
	require.ErrorIs(t, err, ErrExpectation)
	assert.Contains(t, err.Error(), "step 2")
}

func TestRun_ExpectedErrorKind(t *testing.T) {
	sc, err := Parse([]byte(`
users:
  - {id: asha, home: {lng: 85.30, lat: 27.70}}
  - {id: bikash, home: {lng: 85.30, lat: 27.70}}
steps:
  - {op: submit, user: asha, report: r1, at: {lng: 85.30, lat: 27.70}, area: Thamel}
  - {op: vote, user: bikash, report: r1, vote: upvote, at: {lng: 85.40, lat: 27.70}, expect: {error: eligibility}}
  - {op: vote, user: bikash, report: missing, vote: upvote, at: {lng: 85.30, lat: 27.70}, expect: {error: not_found}}
  - {after: 10m, op: submit, user: asha, report: r2, at: {lng: 85.30, lat: 27.70}, area: Thamel, expect: {error: policy}}
`))
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), sc, &bytes.Buffer{}, discard))
}

func TestRun_PolicyOverrides(t *testing.T) {
	sc, err := Parse([]byte(`
policy:
  quorum: 2
  creatorCanResolve: false
  cooldown: 1m
users:
  - {id: asha, home: {lng: 85.30, lat: 27.70}}
  - {id: bikash, home: {lng: 85.30, lat: 27.70}}
  - {id: chandra, home: {lng: 85.30, lat: 27.70}}
steps:
  - {op: submit, user: asha, report: r1, at: {lng: 85.30, lat: 27.70}, area: Thamel}
  - {after: 2m, op: submit, user: asha, report: r2, at: {lng: 85.30, lat: 27.70}, area: Thamel}
  - {op: resolve, user: asha, report: r1, at: {lng: 85.30, lat: 27.70}, expect: {resolved: false}}
  - {op: resolve, user: bikash, report: r1, at: {lng: 85.30, lat: 27.70}, expect: {resolved: true, durationMinutes: 2}}
`))
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), sc, &bytes.Buffer{}, discard))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", `users: []`, "no steps"},
		{"unknown op", `steps: [{op: teleport, user: a}]`, "unknown op"},
		{"missing report", `steps: [{op: vote, user: a}]`, "needs a report name"},
		{"missing user", `steps: [{op: nearby}]`, "missing user"},
		{"unknown key", `steps: [{op: nearby, user: a, colour: red}]`, "colour"},
		{"negative after", `steps: [{op: nearby, user: a, after: -1m}]`, "negative after"},
		{"user without id", "users: [{home: {lng: 1, lat: 1}}]\nsteps: [{op: nearby, user: a}]", "missing id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOverrides_Apply(t *testing.T) {
	off := false
	got, err := Overrides{
		Quorum:            5,
		CreatorCanResolve: &off,
		RewardPolicy:      "transition",
		Cooldown:          time.Minute,
		VoteRadius:        250,
	}.apply(lifecycle.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 5, got.Quorum.Required)
	assert.False(t, got.Quorum.CreatorShortcut)
	assert.Equal(t, domain.RewardOnTransition, got.Scorer.Policy)
	assert.Equal(t, time.Minute, got.Limiter.Cooldown)
	assert.InDelta(t, 250.0, got.Gate.EligibilityRadius, 0)

	_, err = Overrides{RewardPolicy: "sometimes"}.apply(lifecycle.DefaultPolicy())
	assert.Error(t, err)
}
