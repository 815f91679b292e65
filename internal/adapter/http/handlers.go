package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
)

const maxBodyBytes = 16 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// registerRequest carries the home location; the user id comes from the token.
type registerRequest struct {
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
}

type submitRequest struct {
	Lng         *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Lat         *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Area        string   `json:"area" validate:"notblank"`
	Description string   `json:"description" validate:"max=200"`
}

// The vote type is checked by the ledger after eligibility, not here.
type voteRequest struct {
	VoteType string   `json:"voteType" validate:"required"`
	Lng      *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Lat      *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
}

type resolveRequest struct {
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
}

type submitResponse struct {
	ReportID string `json:"reportId"`
}

type voteResponse struct {
	Status    domain.Status `json:"status"`
	Upvotes   int           `json:"upvotes"`
	Downvotes int           `json:"downvotes"`
	Rewarded  bool          `json:"rewarded"`
}

type resolveResponse struct {
	Status        domain.Status `json:"status"`
	Resolved      bool          `json:"resolved"`
	Confirmations int           `json:"confirmations"`
	Required      int           `json:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	u, err := s.svc.RegisterUser(r.Context(), userIDFrom(r.Context()), domain.Point{Lng: *req.Lng, Lat: *req.Lat})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	report, err := s.svc.SubmitReport(r.Context(), lifecycle.SubmitRequest{
		ReporterID:  userIDFrom(r.Context()),
		Location:    domain.Point{Lng: *req.Lng, Lat: *req.Lat},
		Area:        req.Area,
		Description: req.Description,
		IPAddress:   clientIP(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ReportID: report.ID})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.svc.CastVote(r.Context(), r.PathValue("id"), userIDFrom(r.Context()),
		domain.VoteType(req.VoteType), domain.Point{Lng: *req.Lng, Lat: *req.Lat})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		Status:    res.Status,
		Upvotes:   res.Tally.Upvotes,
		Downvotes: res.Tally.Downvotes,
		Rewarded:  res.Rewarded,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.svc.ConfirmResolution(r.Context(), r.PathValue("id"), userIDFrom(r.Context()),
		domain.Point{Lng: *req.Lng, Lat: *req.Lat})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		Status:        res.Status,
		Resolved:      res.Progress.Resolved,
		Confirmations: res.Progress.Confirmations,
		Required:      res.Progress.Required,
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	if errLng != nil || errLat != nil {
		s.writeError(w, domain.ErrInvalidLocation)
		return
	}

	var radius float64
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, &domain.Error{Kind: domain.KindValidation, Reason: "radius must be a number of meters"})
			return
		}
		radius = v
	}

	res, err := s.svc.Nearby(r.Context(), domain.Point{Lng: lng, Lat: lat}, radius, userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.Error{Kind: domain.KindValidation, Reason: "malformed JSON body"}
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.Error{Kind: domain.KindValidation, Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch {
	case field == "lng" || field == "lat":
		return domain.ErrInvalidLocation
	case field == "description" && fe.Tag() == "max":
		return domain.ErrDescriptionTooLong
	case fe.Tag() == "required" || fe.Tag() == "notblank":
		return fmt.Errorf("%s: %w", field, domain.ErrMissingField)
	default:
		return &domain.Error{Kind: domain.KindValidation, Reason: fmt.Sprintf("%s failed %s validation", field, fe.Tag())}
	}
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPolicy:
		return http.StatusConflict
	case domain.KindEligibility:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	msg := "internal error"
	var de *domain.Error
	if kind != domain.KindStore && errors.As(err, &de) {
		msg = de.Reason
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody(kind.String(), msg))
}

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(kind, msg string) errorEnvelope {
	return errorEnvelope{Error: errorDetail{Kind: kind, Message: msg}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
