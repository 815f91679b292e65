package mongo

import (
	"cmp"
	"slices"
	"time"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

// geoPoint is a GeoJSON point as required by 2dsphere indexes.
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

func toGeoPoint(p domain.Point) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}}
}

func (g geoPoint) point() domain.Point {
	if len(g.Coordinates) != 2 {
		return domain.Point{}
	}
	return domain.Point{Lng: g.Coordinates[0], Lat: g.Coordinates[1]}
}

// Ledgers are stored as arrays keyed by user_id; user ids are not safe
// document field names.
type voteDoc struct {
	UserID   string    `bson:"user_id"`
	Type     string    `bson:"type"`
	Location geoPoint  `bson:"location"`
	CastAt   time.Time `bson:"cast_at"`
}

type confirmationDoc struct {
	UserID      string    `bson:"user_id"`
	Location    geoPoint  `bson:"location"`
	ConfirmedAt time.Time `bson:"confirmed_at"`
}

type reportDoc struct {
	ID                    string            `bson:"_id"`
	ReporterID            string            `bson:"reporter_id"`
	Location              geoPoint          `bson:"location"`
	Area                  string            `bson:"area"`
	Description           string            `bson:"description,omitempty"`
	IPAddress             string            `bson:"ip_address,omitempty"`
	Status                string            `bson:"status"`
	Votes                 []voteDoc         `bson:"votes"`
	Upvotes               int               `bson:"upvotes"`
	Downvotes             int               `bson:"downvotes"`
	Confirmations         []confirmationDoc `bson:"resolution_confirmations"`
	ReportedAt            time.Time         `bson:"reported_at"`
	ResolvedAt            *time.Time        `bson:"resolved_at,omitempty"`
	OutageDurationMinutes *int              `bson:"outage_duration_minutes,omitempty"`
	Version               int64             `bson:"version"`
}

func toReportDoc(r *domain.Report) reportDoc {
	doc := reportDoc{
		ID:                    r.ID,
		ReporterID:            r.ReporterID,
		Location:              toGeoPoint(r.Location),
		Area:                  r.Area,
		Description:           r.Description,
		IPAddress:             r.IPAddress,
		Status:                string(r.Status),
		Votes:                 make([]voteDoc, 0, len(r.Votes)),
		Upvotes:               r.Upvotes,
		Downvotes:             r.Downvotes,
		Confirmations:         make([]confirmationDoc, 0, len(r.Confirmations)),
		ReportedAt:            r.ReportedAt,
		ResolvedAt:            r.ResolvedAt,
		OutageDurationMinutes: r.OutageDurationMinutes,
		Version:               r.Version,
	}
	for id, v := range r.Votes {
		doc.Votes = append(doc.Votes, voteDoc{UserID: id, Type: string(v.Type), Location: toGeoPoint(v.Location), CastAt: v.CastAt})
	}
	for id, c := range r.Confirmations {
		doc.Confirmations = append(doc.Confirmations, confirmationDoc{UserID: id, Location: toGeoPoint(c.Location), ConfirmedAt: c.ConfirmedAt})
	}
	// Stable order keeps replacements deterministic.
	slices.SortFunc(doc.Votes, func(a, b voteDoc) int { return cmp.Compare(a.UserID, b.UserID) })
	slices.SortFunc(doc.Confirmations, func(a, b confirmationDoc) int { return cmp.Compare(a.UserID, b.UserID) })
	return doc
}

func (d reportDoc) report() *domain.Report {
	r := &domain.Report{
		ID:                    d.ID,
		ReporterID:            d.ReporterID,
		Location:              d.Location.point(),
		Area:                  d.Area,
		Description:           d.Description,
		IPAddress:             d.IPAddress,
		Status:                domain.Status(d.Status),
		Votes:                 make(map[string]domain.Vote, len(d.Votes)),
		Upvotes:               d.Upvotes,
		Downvotes:             d.Downvotes,
		Confirmations:         make(map[string]domain.Confirmation, len(d.Confirmations)),
		ReportedAt:            d.ReportedAt.UTC(),
		OutageDurationMinutes: d.OutageDurationMinutes,
		Version:               d.Version,
	}
	if d.ResolvedAt != nil {
		t := d.ResolvedAt.UTC()
		r.ResolvedAt = &t
	}
	for _, v := range d.Votes {
		r.Votes[v.UserID] = domain.Vote{Type: domain.VoteType(v.Type), Location: v.Location.point(), CastAt: v.CastAt.UTC()}
	}
	for _, c := range d.Confirmations {
		r.Confirmations[c.UserID] = domain.Confirmation{Location: c.Location.point(), ConfirmedAt: c.ConfirmedAt.UTC()}
	}
	return r
}

type userDoc struct {
	ID               string     `bson:"_id"`
	HomeLocation     geoPoint   `bson:"home_location"`
	CredibilityScore int        `bson:"credibility_score"`
	TotalReports     int        `bson:"total_reports"`
	AccurateReports  int        `bson:"accurate_reports"`
	LastReportAt     *time.Time `bson:"last_report_at,omitempty"`
}

func toUserDoc(u domain.UserTrust) userDoc {
	return userDoc{
		ID:               u.ID,
		HomeLocation:     toGeoPoint(u.HomeLocation),
		CredibilityScore: u.CredibilityScore,
		TotalReports:     u.TotalReports,
		AccurateReports:  u.AccurateReports,
		LastReportAt:     u.LastReportAt,
	}
}

func (d userDoc) user() domain.UserTrust {
	u := domain.UserTrust{
		ID:               d.ID,
		HomeLocation:     d.HomeLocation.point(),
		CredibilityScore: d.CredibilityScore,
		TotalReports:     d.TotalReports,
		AccurateReports:  d.AccurateReports,
	}
	if d.LastReportAt != nil {
		t := d.LastReportAt.UTC()
		u.LastReportAt = &t
	}
	return u
}
