// Package memory is an in-process Store for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

// Store keeps reports and users in maps behind one mutex. Every read and
// write copies, so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
	users   map[string]domain.UserTrust
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		reports: make(map[string]*domain.Report),
		users:   make(map[string]domain.UserTrust),
	}
}

func (s *Store) FindReport(_ context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("memory.FindReport %s: %w", id, domain.ErrReportNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) FindUser(_ context.Context, id string) (domain.UserTrust, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.UserTrust{}, fmt.Errorf("memory.FindUser %s: %w", id, domain.ErrUserNotFound)
	}
	return copyUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, u domain.UserTrust) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("memory.CreateUser %s: %w", u.ID, domain.ErrUserExists)
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) CreateReport(_ context.Context, r *domain.Report, notBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[r.ReporterID]
	if !ok {
		return fmt.Errorf("memory.CreateReport: %w", domain.ErrUserNotFound)
	}
	if !domain.CooldownElapsed(u.LastReportAt, notBefore) {
		return fmt.Errorf("memory.CreateReport: %w", domain.ErrCooldown)
	}
	domain.RecordReport(&u, r.ReportedAt)
	s.users[u.ID] = u

	r.Version = 1
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *Store) UpdateReport(_ context.Context, r *domain.Report, expectedVersion int64, reward *domain.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reports[r.ID]
	if !ok {
		return fmt.Errorf("memory.UpdateReport %s: %w", r.ID, domain.ErrReportNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("memory.UpdateReport %s: %w", r.ID, domain.ErrVersionConflict)
	}

	if reward != nil {
		u, ok := s.users[reward.UserID]
		if !ok {
			return fmt.Errorf("memory.UpdateReport reward: %w", domain.ErrUserNotFound)
		}
		reward.ApplyTo(&u)
		s.users[u.ID] = u
	}

	r.Version = expectedVersion + 1
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *Store) Nearby(_ context.Context, center domain.Point, radiusMeters float64, limit int) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Report{}
	for _, r := range s.reports {
		if r.Status == domain.StatusResolved {
			continue
		}
		if domain.Distance(center, r.Location) <= radiusMeters {
			out = append(out, r.Clone())
		}
	}
	return truncate(sortRecentFirst(out), limit), nil
}

func (s *Store) ReportsByReporter(_ context.Context, reporterID string, limit int) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Report{}
	for _, r := range s.reports {
		if r.ReporterID == reporterID {
			out = append(out, r.Clone())
		}
	}
	return truncate(sortRecentFirst(out), limit), nil
}

func sortRecentFirst(rs []*domain.Report) []*domain.Report {
	slices.SortFunc(rs, func(a, b *domain.Report) int {
		if c := b.ReportedAt.Compare(a.ReportedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rs
}

func truncate(rs []*domain.Report, limit int) []*domain.Report {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

func copyUser(u domain.UserTrust) domain.UserTrust {
	if u.LastReportAt != nil {
		t := *u.LastReportAt
		u.LastReportAt = &t
	}
	return u
}
