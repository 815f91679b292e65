package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/outage-verify-service/internal/adapter/memory"
	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
	"github.com/couchcryptid/outage-verify-service/internal/observability"
)

// ErrExpectation is returned when a step's outcome differs from its Expect.
var ErrExpectation = errors.New("expectation failed")

type outcome struct {
	status   domain.Status
	rewarded bool
	resolved bool
	active   int
	duration *int
	detail   string
}

type runner struct {
	svc  *lifecycle.Service
	refs map[string]string
}

// Run executes sc step by step, writing one line per step to w. It stops at
// the first step whose outcome does not match its expectation.
func Run(ctx context.Context, sc *Scenario, w io.Writer, logger *slog.Logger) error {
	policy, err := sc.Policy.apply(lifecycle.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("scenario policy: %w", err)
	}

	clock := clockwork.NewFakeClock()
	if !sc.Start.IsZero() {
		clock = clockwork.NewFakeClockAt(sc.Start)
	}
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	rn := &runner{
		svc:  lifecycle.New(memory.NewStore(), nil, nil, policy, clock, logger, metrics),
		refs: make(map[string]string),
	}

	for _, u := range sc.Users {
		if _, err := rn.svc.RegisterUser(ctx, u.ID, u.Home.domain()); err != nil {
			return fmt.Errorf("register %s: %w", u.ID, err)
		}
	}

	var elapsed time.Duration
	for i, st := range sc.Steps {
		clock.Advance(st.After)
		elapsed += st.After

		out, opErr := rn.step(ctx, st)
		line := fmt.Sprintf("%3d  +%-8s %-8s %-8s %-8s", i+1, elapsed, st.Op, st.User, st.Report)
		if opErr != nil {
			fmt.Fprintf(w, "%s rejected (%s): %v\n", line, domain.KindOf(opErr), opErr)
		} else {
			fmt.Fprintf(w, "%s %s\n", line, out.detail)
		}

		if err := check(st.Expect, out, opErr); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

func (rn *runner) step(ctx context.Context, st Step) (outcome, error) {
	switch st.Op {
	case OpSubmit:
		r, err := rn.svc.SubmitReport(ctx, lifecycle.SubmitRequest{
			ReporterID:  st.User,
			Location:    st.At.domain(),
			Area:        st.Area,
			Description: st.Description,
		})
		if err != nil {
			return outcome{}, err
		}
		rn.refs[st.Report] = r.ID
		return outcome{status: r.Status, detail: string(r.Status)}, nil

	case OpVote:
		res, err := rn.svc.CastVote(ctx, rn.ref(st.Report), st.User, domain.VoteType(st.Vote), st.At.domain())
		if err != nil {
			return outcome{}, err
		}
		detail := fmt.Sprintf("%s up=%d down=%d", res.Status, res.Tally.Upvotes, res.Tally.Downvotes)
		if res.Rewarded {
			detail += " rewarded"
		}
		return outcome{status: res.Status, rewarded: res.Rewarded, detail: detail}, nil

	case OpResolve:
		res, err := rn.svc.ConfirmResolution(ctx, rn.ref(st.Report), st.User, st.At.domain())
		if err != nil {
			return outcome{}, err
		}
		out := outcome{status: res.Status, resolved: res.Progress.Resolved}
		if !res.Progress.Resolved {
			out.detail = fmt.Sprintf("%s %d/%d confirmations", res.Status, res.Progress.Confirmations, res.Progress.Required)
			return out, nil
		}
		r, err := rn.svc.GetReport(ctx, rn.ref(st.Report))
		if err != nil {
			return outcome{}, err
		}
		out.duration = r.OutageDurationMinutes
		out.detail = fmt.Sprintf("%s after %d minutes", res.Status, *r.OutageDurationMinutes)
		return out, nil

	default:
		res, err := rn.svc.Nearby(ctx, st.At.domain(), st.Radius, st.User)
		if err != nil {
			return outcome{}, err
		}
		return outcome{
			active: len(res.Active),
			detail: fmt.Sprintf("active=%d own=%d", len(res.Active), len(res.Own)),
		}, nil
	}
}

// ref resolves a report name to its id. Unknown names pass through so a
// step can refer to a report that does not exist.
func (rn *runner) ref(name string) string {
	if id, ok := rn.refs[name]; ok {
		return id
	}
	return name
}

func check(want Expect, got outcome, err error) error {
	if want.Error != "" {
		if err == nil {
			return fmt.Errorf("%w: want %s error, got success", ErrExpectation, want.Error)
		}
		if kind := domain.KindOf(err).String(); kind != want.Error {
			return fmt.Errorf("%w: want %s error, got %s: %v", ErrExpectation, want.Error, kind, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: unexpected error: %v", ErrExpectation, err)
	}

	switch {
	case want.Status != "" && domain.Status(want.Status) != got.status:
		return fmt.Errorf("%w: want status %s, got %s", ErrExpectation, want.Status, got.status)
	case want.Rewarded != nil && *want.Rewarded != got.rewarded:
		return fmt.Errorf("%w: want rewarded=%t", ErrExpectation, *want.Rewarded)
	case want.Resolved != nil && *want.Resolved != got.resolved:
		return fmt.Errorf("%w: want resolved=%t", ErrExpectation, *want.Resolved)
	case want.Active != nil && *want.Active != got.active:
		return fmt.Errorf("%w: want %d active, got %d", ErrExpectation, *want.Active, got.active)
	case want.Duration != nil && (got.duration == nil || *want.Duration != *got.duration):
		return fmt.Errorf("%w: want duration %d minutes", ErrExpectation, *want.Duration)
	}
	return nil
}
