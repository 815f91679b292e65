package domain

import (
	"maps"
	"time"
)

// MaxDescriptionLength is the longest description accepted, in characters.
const MaxDescriptionLength = 200

// Status is the lifecycle state of a report.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusLikely     Status = "likely"
	StatusConfirmed  Status = "confirmed"
	StatusFalse      Status = "false"
	StatusResolved   Status = "resolved"
)

// Terminal reports whether no further votes or confirmations are accepted.
func (s Status) Terminal() bool {
	return s == StatusResolved
}

// VoteType is a user's judgement on a report.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Valid reports whether v is a recognised vote type.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Vote is a single ledger entry, keyed by voter id on the report.
type Vote struct {
	Type     VoteType  `json:"type"`
	Location Point     `json:"location"`
	CastAt   time.Time `json:"castAt"`
}

// Confirmation is a user's attestation that service has been restored.
type Confirmation struct {
	Location    Point     `json:"location"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// Tally is the aggregate vote count of a ledger.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Report is a crowd-submitted claim of an outage at a location.
type Report struct {
	ID          string `json:"id"`
	ReporterID  string `json:"reporterId"`
	Location    Point  `json:"location"`
	Area        string `json:"area"`
	Description string `json:"description,omitempty"`
	IPAddress   string `json:"-"`
	Status      Status `json:"status"`

	Votes     map[string]Vote `json:"votes"`
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`

	Confirmations map[string]Confirmation `json:"confirmations"`

	ReportedAt            time.Time  `json:"reportedAt"`
	ResolvedAt            *time.Time `json:"resolvedAt,omitempty"`
	OutageDurationMinutes *int       `json:"outageDurationMinutes,omitempty"`

	// Version increases by one on every persisted mutation.
	Version int64 `json:"-"`
}

// NewReport creates an unverified report with empty ledgers.
func NewReport(id, reporterID string, location Point, area, description, ip string, now time.Time) *Report {
	return &Report{
		ID:            id,
		ReporterID:    reporterID,
		Location:      location,
		Area:          area,
		Description:   description,
		IPAddress:     ip,
		Status:        StatusUnverified,
		Votes:         make(map[string]Vote),
		Confirmations: make(map[string]Confirmation),
		ReportedAt:    now,
	}
}

// Tally counts the ledger by vote type.
func (r *Report) Tally() Tally {
	var t Tally
	for _, v := range r.Votes {
		switch v.Type {
		case VoteUp:
			t.Upvotes++
		case VoteDown:
			t.Downvotes++
		}
	}
	return t
}

// Clone returns a deep copy so callers can mutate it without sharing maps.
func (r *Report) Clone() *Report {
	c := *r
	c.Votes = maps.Clone(r.Votes)
	if c.Votes == nil {
		c.Votes = make(map[string]Vote)
	}
	c.Confirmations = maps.Clone(r.Confirmations)
	if c.Confirmations == nil {
		c.Confirmations = make(map[string]Confirmation)
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		c.ResolvedAt = &t
	}
	if r.OutageDurationMinutes != nil {
		d := *r.OutageDurationMinutes
		c.OutageDurationMinutes = &d
	}
	return &c
}

const (
	// DefaultCredibility is the score every user starts with.
	DefaultCredibility = 50
	// MaxCredibility caps the score.
	MaxCredibility = 100
)

// UserTrust is the trust record of a registered user.
type UserTrust struct {
	ID               string     `json:"id"`
	HomeLocation     Point      `json:"homeLocation"`
	CredibilityScore int        `json:"credibilityScore"`
	TotalReports     int        `json:"totalReports"`
	AccurateReports  int        `json:"accurateReports"`
	LastReportAt     *time.Time `json:"lastReportAt,omitempty"`
}

// NewUserTrust returns a fresh record with the default credibility.
func NewUserTrust(id string, home Point) UserTrust {
	return UserTrust{
		ID:               id,
		HomeLocation:     home,
		CredibilityScore: DefaultCredibility,
	}
}
