// Package businessflow contains the use cases behind the backoffice endpoints
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/rules"
)

// Business flow error constants
var (
	// Backend errors
	ErrUpstreamUnauthorized = services.ErrUpstreamUnauthorized
	ErrUpstreamFailed       = errors.New("backoffice backend request failed")

	// Tag errors
	ErrTagNotFound         = errors.New("tag not found")
	ErrTagValidationFailed = errors.New("tag validation failed")
	ErrGroupNotFound       = rules.ErrGroupNotFound
	ErrRuleNotFound        = rules.ErrRuleNotFound
	ErrDraftNotFound       = errors.New("draft not found")
	ErrDraftLimitExceeded  = errors.New("draft exceeds the group or rule limit")
	ErrUnknownDraftOp      = errors.New("unknown draft operation")

	// Segment errors
	ErrSegmentValidationFailed = errors.New("segment setup validation failed")
	ErrSegmentSetupBusy        = errors.New("another segment setup is in progress")

	// User errors
	ErrInvalidIDList     = errors.New("invalid id list")
	ErrInvalidTimeWindow = errors.New("invalid time window")

	// Infrastructure errors
	ErrCacheNotAvailable  = errors.New("cache not available")
	ErrAuditNotAvailable  = errors.New("audit log not available")
	ErrAuditEntryNotFound = errors.New("audit entry not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
	Details any
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// WithDetails attaches data the handler returns alongside the error code
func (e *BusinessError) WithDetails(details any) *BusinessError {
	e.Details = details
	return e
}

// AsBusinessError extracts the outermost BusinessError from an error chain
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// upstreamError wraps a backend failure keeping its status and message visible
func upstreamError(code, message string, err error) *BusinessError {
	if errors.Is(err, ErrUpstreamUnauthorized) {
		return NewBusinessError("UPSTREAM_UNAUTHORIZED", "Access token was rejected by the backoffice backend", err)
	}
	var ue *services.UpstreamError
	if errors.As(err, &ue) {
		return NewBusinessError(code, message, fmt.Errorf("%w: %w", ErrUpstreamFailed, err)).WithDetails(ue.Message)
	}
	return NewBusinessError(code, message, fmt.Errorf("%w: %w", ErrUpstreamFailed, err))
}

// UpstreamStatus returns the backend status code carried by err, or 0
func UpstreamStatus(err error) int {
	var ue *services.UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

func IsUpstreamUnauthorized(err error) bool {
	return errors.Is(err, ErrUpstreamUnauthorized)
}

func IsUpstreamFailed(err error) bool {
	return errors.Is(err, ErrUpstreamFailed)
}

func IsTagNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}

func IsTagValidationFailed(err error) bool {
	return errors.Is(err, ErrTagValidationFailed)
}

func IsGroupNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsDraftNotFound(err error) bool {
	return errors.Is(err, ErrDraftNotFound)
}

func IsDraftLimitExceeded(err error) bool {
	return errors.Is(err, ErrDraftLimitExceeded)
}

func IsUnknownDraftOp(err error) bool {
	return errors.Is(err, ErrUnknownDraftOp)
}

func IsSegmentValidationFailed(err error) bool {
	return errors.Is(err, ErrSegmentValidationFailed)
}

func IsSegmentSetupBusy(err error) bool {
	return errors.Is(err, ErrSegmentSetupBusy)
}

func IsInvalidIDList(err error) bool {
	return errors.Is(err, ErrInvalidIDList)
}

func IsInvalidTimeWindow(err error) bool {
	return errors.Is(err, ErrInvalidTimeWindow)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}

func IsAuditNotAvailable(err error) bool {
	return errors.Is(err, ErrAuditNotAvailable)
}

func IsAuditEntryNotFound(err error) bool {
	return errors.Is(err, ErrAuditEntryNotFound)
}
