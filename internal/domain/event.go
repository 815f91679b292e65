package domain

import "time"

// EventKind names a lifecycle event published after a mutation is persisted.
type EventKind string

const (
	EventReportSubmitted EventKind = "report.submitted"
	EventStatusChanged   EventKind = "report.status_changed"
	EventReportResolved  EventKind = "report.resolved"
)

// ReportEvent is the serialized form destined for the events topic.
type ReportEvent struct {
	Kind           EventKind `json:"kind"`
	ReportID       string    `json:"reportId"`
	ActorID        string    `json:"actorId"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	Upvotes        int       `json:"upvotes"`
	Downvotes      int       `json:"downvotes"`
	Location       Point     `json:"location"`
	Area           string    `json:"area,omitempty"`
	// OutageDurationMinutes is set on report.resolved.
	OutageDurationMinutes *int      `json:"outageDurationMinutes,omitempty"`
	OccurredAt            time.Time `json:"occurredAt"`
}

// NewReportEvent snapshots r for kind.
func NewReportEvent(kind EventKind, r *Report, actorID string, prev Status, at time.Time) ReportEvent {
	e := ReportEvent{
		Kind:       kind,
		ReportID:   r.ID,
		ActorID:    actorID,
		Status:     r.Status,
		Upvotes:    r.Upvotes,
		Downvotes:  r.Downvotes,
		Location:   r.Location,
		Area:       r.Area,
		OccurredAt: at,
	}
	if prev != r.Status {
		e.PreviousStatus = prev
	}
	if kind == EventReportResolved {
		e.OutageDurationMinutes = r.OutageDurationMinutes
	}
	return e
}
