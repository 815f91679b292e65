// Package scenario replays scripted report lifecycles against an in-memory
// store and a fake clock.
//
// A scenario is a YAML document listing users and timed steps:
//
//	start: 2025-06-03T18:00:00Z
//	users:
//	  - id: alice
//	    home: {lng: 85.30, lat: 27.70}
//	steps:
//	  - op: submit
//	    user: alice
//	    report: r1
//	    at: {lng: 85.30, lat: 27.70}
//	    area: Baneshwor
//	  - after: 10m
//	    op: vote
//	    user: bob
//	    report: r1
//	    vote: upvote
//	    at: {lng: 85.30, lat: 27.70}
//	    expect: {status: likely}
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
)

// Step operations.
const (
	OpSubmit  = "submit"
	OpVote    = "vote"
	OpResolve = "resolve"
	OpNearby  = "nearby"
)

// Scenario is a scripted sequence of lifecycle operations.
type Scenario struct {
	Name   string    `yaml:"name"`
	Start  time.Time `yaml:"start"`
	Policy Overrides `yaml:"policy"`
	Users  []User    `yaml:"users"`
	Steps  []Step    `yaml:"steps"`
}

// Overrides adjusts the default lifecycle policy. Zero values keep defaults.
type Overrides struct {
	Quorum            int           `yaml:"quorum"`
	CreatorCanResolve *bool         `yaml:"creatorCanResolve"`
	RewardPolicy      string        `yaml:"rewardPolicy"`
	Cooldown          time.Duration `yaml:"cooldown"`
	VoteRadius        float64       `yaml:"voteRadius"`
}

// Point is a longitude/latitude pair.
type Point struct {
	Lng float64 `yaml:"lng"`
	Lat float64 `yaml:"lat"`
}

func (p Point) domain() domain.Point { return domain.Point{Lng: p.Lng, Lat: p.Lat} }

// User is registered before the first step.
type User struct {
	ID   string `yaml:"id"`
	Home Point  `yaml:"home"`
}

// Step is one operation, run after advancing the clock by After.
// Report names the report a submit creates or a later step refers to.
type Step struct {
	After       time.Duration `yaml:"after"`
	Op          string        `yaml:"op"`
	User        string        `yaml:"user"`
	Report      string        `yaml:"report"`
	At          Point         `yaml:"at"`
	Area        string        `yaml:"area"`
	Description string        `yaml:"description"`
	Vote        string        `yaml:"vote"`
	Radius      float64       `yaml:"radius"`
	Expect      Expect        `yaml:"expect"`
}

// Expect lists the outcomes a step must produce. Unset fields are not checked.
// Error holds an error kind such as "policy" or "eligibility".
type Expect struct {
	Status   string `yaml:"status"`
	Error    string `yaml:"error"`
	Rewarded *bool  `yaml:"rewarded"`
	Resolved *bool  `yaml:"resolved"`
	Active   *int   `yaml:"active"`
	Duration *int   `yaml:"durationMinutes"`
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario and checks its steps are well formed.
// Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("no steps")
	}
	for i, u := range sc.Users {
		if u.ID == "" {
			return fmt.Errorf("user %d: missing id", i+1)
		}
	}
	for i, st := range sc.Steps {
		if st.After < 0 {
			return fmt.Errorf("step %d: negative after", i+1)
		}
		switch st.Op {
		case OpSubmit, OpVote, OpResolve:
			if st.Report == "" {
				return fmt.Errorf("step %d: %s needs a report name", i+1, st.Op)
			}
		case OpNearby:
		default:
			return fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		if st.User == "" {
			return fmt.Errorf("step %d: missing user", i+1)
		}
	}
	return nil
}

func (o Overrides) apply(p lifecycle.Policy) (lifecycle.Policy, error) {
	if o.Quorum > 0 {
		p.Quorum.Required = o.Quorum
	}
	if o.CreatorCanResolve != nil {
		p.Quorum.CreatorShortcut = *o.CreatorCanResolve
	}
	if o.RewardPolicy != "" {
		rp, err := domain.ParseRewardPolicy(o.RewardPolicy)
		if err != nil {
			return p, err
		}
		p.Scorer.Policy = rp
	}
	if o.Cooldown > 0 {
		p.Limiter.Cooldown = o.Cooldown
	}
	if o.VoteRadius > 0 {
		p.Gate.EligibilityRadius = o.VoteRadius
	}
	return p, nil
}
