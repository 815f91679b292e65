package domain

import "errors"

// ErrorKind classifies why an operation was rejected.
type ErrorKind int

const (
	// KindStore covers persistence failures and anything unclassified.
	KindStore ErrorKind = iota
	// KindValidation is a missing or malformed field.
	KindValidation
	// KindPolicy is a rule violation such as a self-vote or cooldown.
	KindPolicy
	// KindEligibility means the caller is too far from the report.
	KindEligibility
	// KindNotFound means a referenced report or user does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPolicy:
		return "policy"
	case KindEligibility:
		return "eligibility"
	case KindNotFound:
		return "not_found"
	default:
		return "store"
	}
}

// Error is a classified rejection. Sentinels below are compared with errors.Is.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

var (
	ErrMissingField       = &Error{Kind: KindValidation, Reason: "required field is missing"}
	ErrInvalidLocation    = &Error{Kind: KindValidation, Reason: "valid coordinates (lng, lat) are required"}
	ErrDescriptionTooLong = &Error{Kind: KindValidation, Reason: "description must be at most 200 characters"}
	ErrInvalidVoteType    = &Error{Kind: KindValidation, Reason: "vote type must be either upvote or downvote"}
	ErrInvalidRadius      = &Error{Kind: KindValidation, Reason: "radius must be a non-negative number of meters"}
	ErrRadiusTooLarge     = &Error{Kind: KindValidation, Reason: "radius exceeds the maximum search radius"}

	ErrOutsideRegion    = &Error{Kind: KindPolicy, Reason: "location is outside the supported region"}
	ErrCooldown         = &Error{Kind: KindPolicy, Reason: "wait before submitting another report"}
	ErrSelfVote         = &Error{Kind: KindPolicy, Reason: "users cannot verify their own report"}
	ErrReportResolved   = &Error{Kind: KindPolicy, Reason: "report is already resolved"}
	ErrAlreadyConfirmed = &Error{Kind: KindPolicy, Reason: "restoration already confirmed by this user"}
	ErrUserExists       = &Error{Kind: KindPolicy, Reason: "user already exists"}
	ErrTooFar           = &Error{Kind: KindEligibility, Reason: "caller is not within the required radius of the report"}
	ErrReportNotFound   = &Error{Kind: KindNotFound, Reason: "report not found"}
	ErrUserNotFound     = &Error{Kind: KindNotFound, Reason: "user not found"}
	ErrVersionConflict  = &Error{Kind: KindStore, Reason: "report was modified concurrently"}
)

// KindOf returns the kind of the first *Error in err's chain, or KindStore.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStore
}
