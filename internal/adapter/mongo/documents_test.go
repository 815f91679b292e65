package mongo

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

func sampleReport() *domain.Report {
	at := time.Date(2025, time.June, 3, 18, 0, 0, 0, time.UTC)
	r := domain.NewReport("r-1", "alice", domain.Point{Lng: 85.30, Lat: 27.70}, "Baneshwor", "dark since six", "10.0.0.1", at)
	r.Votes["bob"] = domain.Vote{Type: domain.VoteUp, Location: domain.Point{Lng: 85.301, Lat: 27.701}, CastAt: at.Add(time.Minute)}
	r.Votes["carol"] = domain.Vote{Type: domain.VoteDown, Location: domain.Point{Lng: 85.302, Lat: 27.70}, CastAt: at.Add(2 * time.Minute)}
	r.Upvotes, r.Downvotes = 1, 1
	r.Confirmations["dave"] = domain.Confirmation{Location: domain.Point{Lng: 85.30, Lat: 27.702}, ConfirmedAt: at.Add(time.Hour)}
	domain.Resolve(r, at.Add(2*time.Hour))
	r.Version = 7
	return r
}

func TestReportDoc_RoundTripThroughBSON(t *testing.T) {
	want := sampleReport()

	raw, err := bson.Marshal(toReportDoc(want))
	require.NoError(t, err)

	var doc reportDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))

	if diff := cmp.Diff(want, doc.report()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportDoc_GeoJSONLayout(t *testing.T) {
	raw, err := bson.Marshal(toReportDoc(sampleReport()))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	loc, ok := m["location"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "Point", loc["type"])
	assert.Equal(t, bson.A{85.30, 27.70}, loc["coordinates"], "GeoJSON is lng first")

	votes, ok := m["votes"].(bson.A)
	require.True(t, ok)
	require.Len(t, votes, 2)
	assert.Equal(t, "bob", votes[0].(bson.M)["user_id"], "votes are sorted by user")
	assert.Equal(t, "10.0.0.1", m["ip_address"])
	assert.EqualValues(t, 7, m["version"])
}

func TestUserDoc_RoundTrip(t *testing.T) {
	last := time.Date(2025, time.June, 3, 18, 0, 0, 0, time.UTC)
	want := domain.NewUserTrust("alice", domain.Point{Lng: 85.3, Lat: 27.7})
	want.TotalReports = 3
	want.LastReportAt = &last

	raw, err := bson.Marshal(toUserDoc(want))
	require.NoError(t, err)
	var doc userDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))

	assert.Equal(t, want, doc.user())
}

func TestUserDoc_OmitsUnsetLastReport(t *testing.T) {
	raw, err := bson.Marshal(toUserDoc(domain.NewUserTrust("alice", domain.Point{Lng: 85.3, Lat: 27.7})))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	_, present := m["last_report_at"]
	assert.False(t, present, "the cooldown filter treats a missing field as elapsed")
}
