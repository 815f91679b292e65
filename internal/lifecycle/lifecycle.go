// Package lifecycle orchestrates outage reports through submission, voting and
// resolution against an injected Store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/observability"
)

// Service is the report lifecycle orchestrator.
type Service struct {
	store     Store
	locker    Locker
	publisher Publisher
	policy    Policy
	ledger    domain.VoteLedger
	quorum    domain.ResolutionQuorum
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	newID     func() string
}

// New creates a Service. A nil locker falls back to an in-process
// KeyedLocker and a nil publisher drops events.
func New(store Store, locker Locker, publisher Publisher, policy Policy, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if policy.NearbyLimit <= 0 {
		policy.NearbyLimit = DefaultNearbyLimit
	}
	if policy.UpdateAttempts <= 0 {
		policy.UpdateAttempts = DefaultUpdateAttempts
	}
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		policy:    policy,
		ledger:    domain.VoteLedger{Gate: policy.Gate},
		quorum:    domain.ResolutionQuorum{Gate: policy.Gate, Policy: policy.Quorum},
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		newID:     uuid.NewString,
	}
}

// SubmitRequest carries a new outage report.
type SubmitRequest struct {
	ReporterID  string
	Location    domain.Point
	Area        string
	Description string
	IPAddress   string
}

// SubmitReport validates and stores a new unverified report.
func (s *Service) SubmitReport(ctx context.Context, req SubmitRequest) (*domain.Report, error) {
	const op = "submit_report"
	defer s.observe(op, time.Now())

	if err := s.validateSubmit(req); err != nil {
		return nil, s.reject(op, err, "user_id", req.ReporterID)
	}

	user, err := s.store.FindUser(ctx, req.ReporterID)
	if err != nil {
		return nil, s.reject(op, err, "user_id", req.ReporterID)
	}

	now := s.clock.Now()
	if !s.policy.Limiter.Allow(user, now) {
		return nil, s.reject(op, domain.ErrCooldown, "user_id", req.ReporterID)
	}

	r := domain.NewReport(s.newID(), req.ReporterID, req.Location, strings.TrimSpace(req.Area), req.Description, req.IPAddress, now)
	if err := s.store.CreateReport(ctx, r, s.policy.Limiter.NotBefore(now)); err != nil {
		return nil, s.reject(op, err, "user_id", req.ReporterID)
	}

	s.metrics.ReportsSubmitted.Inc()
	s.logger.Info("report submitted", "report_id", r.ID, "user_id", r.ReporterID, "area", r.Area)
	s.publish(ctx, domain.NewReportEvent(domain.EventReportSubmitted, r, r.ReporterID, r.Status, now))
	return r, nil
}

func (s *Service) validateSubmit(req SubmitRequest) error {
	if req.ReporterID == "" {
		return fmt.Errorf("reporter id: %w", domain.ErrMissingField)
	}
	if strings.TrimSpace(req.Area) == "" {
		return fmt.Errorf("area: %w", domain.ErrMissingField)
	}
	if !req.Location.Valid() {
		return domain.ErrInvalidLocation
	}
	if utf8.RuneCountInString(req.Description) > domain.MaxDescriptionLength {
		return domain.ErrDescriptionTooLong
	}
	if !s.policy.Gate.ValidateRegion(req.Location) {
		return domain.ErrOutsideRegion
	}
	return nil
}

// VoteResult is the state of a report after a vote.
type VoteResult struct {
	Status   domain.Status `json:"status"`
	Tally    domain.Tally  `json:"tally"`
	Rewarded bool          `json:"rewarded"`
}

// CastVote records voterID's vote on a report, recomputes its status and
// rewards the voter when the vote agrees with a confirmed or false outcome.
func (s *Service) CastVote(ctx context.Context, reportID, voterID string, voteType domain.VoteType, at domain.Point) (VoteResult, error) {
	const op = "cast_vote"
	defer s.observe(op, time.Now())

	if _, err := s.store.FindUser(ctx, voterID); err != nil {
		return VoteResult{}, s.reject(op, err, "report_id", reportID, "user_id", voterID)
	}

	var (
		prev   domain.Status
		result VoteResult
	)
	r, err := s.mutate(ctx, reportID, func(r *domain.Report, now time.Time) (*domain.Reward, error) {
		tally, err := s.ledger.Cast(r, voterID, voteType, at, now)
		if err != nil {
			return nil, err
		}
		prev = domain.Recompute(r)
		result = VoteResult{Status: r.Status, Tally: tally}

		reward, ok := s.policy.Scorer.Score(prev, r.Status, voterID, voteType)
		if !ok {
			return nil, nil
		}
		result.Rewarded = true
		return &reward, nil
	})
	if err != nil {
		return VoteResult{}, s.reject(op, err, "report_id", reportID, "user_id", voterID)
	}

	s.metrics.VotesCast.WithLabelValues(string(voteType)).Inc()
	if result.Rewarded {
		s.metrics.CredibilityReward.Inc()
	}
	s.logger.Info("vote cast",
		"report_id", reportID,
		"user_id", voterID,
		"vote", voteType,
		"status", r.Status,
		"upvotes", result.Tally.Upvotes,
		"downvotes", result.Tally.Downvotes,
	)
	if prev != r.Status {
		s.metrics.StatusTransitions.WithLabelValues(string(prev), string(r.Status)).Inc()
		s.publish(ctx, domain.NewReportEvent(domain.EventStatusChanged, r, voterID, prev, s.clock.Now()))
	}
	return result, nil
}

// ResolveResult is the state of a report after a restoration confirmation.
type ResolveResult struct {
	Status   domain.Status   `json:"status"`
	Progress domain.Progress `json:"progress"`
}

// ConfirmResolution records userID's confirmation that service is restored.
func (s *Service) ConfirmResolution(ctx context.Context, reportID, userID string, at domain.Point) (ResolveResult, error) {
	const op = "confirm_resolution"
	defer s.observe(op, time.Now())

	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return ResolveResult{}, s.reject(op, err, "report_id", reportID, "user_id", userID)
	}

	var (
		prev     domain.Status
		progress domain.Progress
	)
	r, err := s.mutate(ctx, reportID, func(r *domain.Report, now time.Time) (*domain.Reward, error) {
		prev = r.Status
		p, err := s.quorum.Confirm(r, userID, at, now)
		if err != nil {
			return nil, err
		}
		progress = p
		return nil, nil
	})
	if err != nil {
		return ResolveResult{}, s.reject(op, err, "report_id", reportID, "user_id", userID)
	}

	if !progress.ByCreator {
		s.metrics.Confirmations.Inc()
	}
	if !progress.Resolved {
		s.logger.Info("resolution confirmed",
			"report_id", reportID,
			"user_id", userID,
			"confirmations", progress.Confirmations,
			"required", progress.Required,
		)
		return ResolveResult{Status: r.Status, Progress: progress}, nil
	}

	mode := "quorum"
	if progress.ByCreator {
		mode = "creator"
	}
	s.metrics.Resolutions.WithLabelValues(mode).Inc()
	s.metrics.StatusTransitions.WithLabelValues(string(prev), string(r.Status)).Inc()
	s.logger.Info("report resolved",
		"report_id", reportID,
		"user_id", userID,
		"mode", mode,
		"duration_minutes", *r.OutageDurationMinutes,
	)
	s.publish(ctx, domain.NewReportEvent(domain.EventReportResolved, r, userID, prev, *r.ResolvedAt))
	return ResolveResult{Status: r.Status, Progress: progress}, nil
}

// NearbyResult lists active reports around a point and the caller's own.
type NearbyResult struct {
	Active []*domain.Report `json:"active"`
	Own    []*domain.Report `json:"own"`
}

// Nearby returns unresolved reports within radiusMeters of center, most
// recent first, together with every report callerID has filed. A radius of
// zero selects the configured nearby radius.
func (s *Service) Nearby(ctx context.Context, center domain.Point, radiusMeters float64, callerID string) (NearbyResult, error) {
	const op = "nearby"
	defer s.observe(op, time.Now())

	if !center.Valid() {
		return NearbyResult{}, s.reject(op, domain.ErrInvalidLocation, "user_id", callerID)
	}
	radiusMeters, err := s.policy.Gate.SearchRadius(radiusMeters)
	if err != nil {
		return NearbyResult{}, s.reject(op, err, "user_id", callerID)
	}

	result := NearbyResult{Active: []*domain.Report{}, Own: []*domain.Report{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		active, err := s.store.Nearby(gctx, center, radiusMeters, s.policy.NearbyLimit)
		if err != nil {
			return fmt.Errorf("active reports: %w", err)
		}
		result.Active = active
		return nil
	})
	if callerID != "" {
		g.Go(func() error {
			own, err := s.store.ReportsByReporter(gctx, callerID, 0)
			if err != nil {
				return fmt.Errorf("own reports: %w", err)
			}
			result.Own = own
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NearbyResult{}, s.reject(op, err, "user_id", callerID)
	}
	return result, nil
}

// GetReport returns a single report.
func (s *Service) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	r, err := s.store.FindReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// RegisterUser creates a trust record for a user whose home lies in the
// operating region.
func (s *Service) RegisterUser(ctx context.Context, id string, home domain.Point) (domain.UserTrust, error) {
	const op = "register_user"
	switch {
	case strings.TrimSpace(id) == "":
		return domain.UserTrust{}, s.reject(op, fmt.Errorf("user id: %w", domain.ErrMissingField))
	case !home.Valid():
		return domain.UserTrust{}, s.reject(op, domain.ErrInvalidLocation, "user_id", id)
	case !s.policy.Gate.ValidateRegion(home):
		return domain.UserTrust{}, s.reject(op, domain.ErrOutsideRegion, "user_id", id)
	}

	u := domain.NewUserTrust(id, home)
	if err := s.store.CreateUser(ctx, u); err != nil {
		return domain.UserTrust{}, s.reject(op, err, "user_id", id)
	}
	s.logger.Info("user registered", "user_id", id)
	return u, nil
}

// CheckReadiness pings the store when it supports it.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// mutate runs one read-modify-write of a report under its lock. fn mutates
// the fresh copy it is given; a version conflict on save reruns fn from a
// newly read copy up to the configured number of attempts.
func (s *Service) mutate(ctx context.Context, id string, fn func(r *domain.Report, now time.Time) (*domain.Reward, error)) (*domain.Report, error) {
	unlock, err := s.locker.Lock(ctx, "report:"+id)
	if err != nil {
		return nil, fmt.Errorf("lock report %s: %w", id, err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		r, err := s.store.FindReport(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := r.Version

		reward, err := fn(r, s.clock.Now())
		if err != nil {
			return nil, err
		}

		err = s.store.UpdateReport(ctx, r, expected, reward)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= s.policy.UpdateAttempts {
			return nil, err
		}
		s.metrics.StoreConflicts.Inc()
		s.logger.Debug("report version conflict, retrying", "report_id", id, "attempt", attempt)
	}
}

func (s *Service) publish(ctx context.Context, events ...domain.ReportEvent) {
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.metrics.PublishFailures.Add(float64(len(events)))
		s.logger.Warn("publish report events", "error", err, "count", len(events))
	}
}

func (s *Service) reject(op string, err error, attrs ...any) error {
	kind := domain.KindOf(err)
	s.metrics.Rejections.WithLabelValues(op, kind.String()).Inc()

	if kind == domain.KindStore {
		s.logger.Error(op+" failed", append(attrs, "error", err)...)
	} else {
		s.logger.Warn(op+" rejected", append(attrs, "kind", kind.String(), "reason", err.Error())...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) observe(op string, start time.Time) {
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
