package lifecycle

import (
	"context"
	"time"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

// Store persists reports and user trust records.
//
// Implementations must make CreateReport and UpdateReport atomic: either every
// write they describe is visible afterwards, or none is.
type Store interface {
	FindReport(ctx context.Context, id string) (*domain.Report, error)
	FindUser(ctx context.Context, id string) (domain.UserTrust, error)
	CreateUser(ctx context.Context, u domain.UserTrust) error

	// CreateReport inserts r and records the submission on its reporter, but
	// only if the reporter's last report is strictly before notBefore.
	// It returns domain.ErrCooldown otherwise and sets r.Version on success.
	CreateReport(ctx context.Context, r *domain.Report, notBefore time.Time) error

	// UpdateReport replaces the stored report if its version still equals
	// expectedVersion, applying reward to the rewarded user in the same unit
	// of work. It returns domain.ErrVersionConflict when the version moved
	// and sets r.Version to the new version on success.
	UpdateReport(ctx context.Context, r *domain.Report, expectedVersion int64, reward *domain.Reward) error

	// Nearby returns unresolved reports within radiusMeters of center,
	// most recent first, at most limit of them.
	Nearby(ctx context.Context, center domain.Point, radiusMeters float64, limit int) ([]*domain.Report, error)

	// ReportsByReporter returns a user's reports, most recent first. A limit
	// of zero means no limit.
	ReportsByReporter(ctx context.Context, reporterID string, limit int) ([]*domain.Report, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Locker serialises mutations of a single report.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (func(), error)
}

// Publisher delivers lifecycle events after the mutation is persisted.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.ReportEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...domain.ReportEvent) error { return nil }
