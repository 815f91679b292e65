package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testEvent(kind domain.EventKind) domain.ReportEvent {
	now := time.Date(2025, 6, 3, 19, 35, 0, 0, time.UTC)
	r := domain.NewReport("report-1", "alice", domain.Point{Lng: 85.3, Lat: 27.7}, "Baneshwor", "", "10.0.0.1", now.Add(-95*time.Minute))
	prev := r.Status
	domain.Resolve(r, now)
	return domain.NewReportEvent(kind, r, "alice", prev, now)
}

func TestSerializeToMessage(t *testing.T) {
	event := testEvent(domain.EventReportResolved)

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("report-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"report.resolved"`)
	assert.Contains(t, string(msg.Value), `"outageDurationMinutes":95`)
	assert.Contains(t, string(msg.Value), `"previousStatus":"unverified"`)
	assert.NotContains(t, string(msg.Value), "10.0.0.1")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("report.resolved"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-06-03T19:35:00Z"), msg.Headers[1].Value)
}

func TestPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w, logger: slog.Default()}

	err := p.Publish(context.Background(), testEvent(domain.EventStatusChanged), testEvent(domain.EventReportResolved))
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("report.status_changed"), w.msgs[0].Headers[0].Value)

	require.NoError(t, p.Publish(context.Background()))
	assert.Len(t, w.msgs, 2)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: w, logger: slog.Default()}

	err := p.Publish(context.Background(), testEvent(domain.EventReportSubmitted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}
