package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportEvent(t *testing.T) {
	r := newTestReport()
	r.Upvotes = 2
	r.Status = StatusLikely

	e := NewReportEvent(EventStatusChanged, r, "u2", StatusUnverified, baseTime)
	assert.Equal(t, EventStatusChanged, e.Kind)
	assert.Equal(t, "report-1", e.ReportID)
	assert.Equal(t, "u2", e.ActorID)
	assert.Equal(t, StatusLikely, e.Status)
	assert.Equal(t, StatusUnverified, e.PreviousStatus)
	assert.Equal(t, 2, e.Upvotes)
	assert.Equal(t, "Baneshwor", e.Area)
	assert.Nil(t, e.OutageDurationMinutes)
}

func TestNewReportEvent_UnchangedStatusOmitsPrevious(t *testing.T) {
	r := newTestReport()
	e := NewReportEvent(EventReportSubmitted, r, r.ReporterID, r.Status, baseTime)
	assert.Empty(t, e.PreviousStatus)
}

func TestNewReportEvent_ResolvedCarriesDuration(t *testing.T) {
	r := newTestReport()
	Resolve(r, baseTime.Add(42*time.Minute))

	e := NewReportEvent(EventReportResolved, r, r.ReporterID, StatusConfirmed, *r.ResolvedAt)
	require.NotNil(t, e.OutageDurationMinutes)
	assert.Equal(t, 42, *e.OutageDurationMinutes)
	assert.Equal(t, StatusConfirmed, e.PreviousStatus)
	assert.True(t, e.OccurredAt.Equal(baseTime.Add(42*time.Minute)))
}
