package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrUnauthorized     ErrorType = "UNAUTHORIZED"
	ErrNotAllowListed   ErrorType = "NOT_ALLOW_LISTED"
	ErrNoActiveStake    ErrorType = "NO_ACTIVE_STAKE"
	ErrCooldownActive   ErrorType = "COOLDOWN_ACTIVE"
	ErrAlreadyWithdrawn ErrorType = "ALREADY_WITHDRAWN"
	ErrInvalidTier      ErrorType = "INVALID_TIER"
	ErrInvalidAmount    ErrorType = "INVALID_AMOUNT"
	ErrStakeStillLocked ErrorType = "STAKE_STILL_LOCKED"
	ErrTransferFailed   ErrorType = "TRANSFER_FAILED"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrReadOnly         ErrorType = "READ_ONLY"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	// ReleaseTime is set for STAKE_STILL_LOCKED so callers know when to retry.
	ReleaseTime int64 `json:"release_time,omitempty"`
	HTTPStatus  int   `json:"-"`
	Cause       error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewStakeStillLocked(releaseTime int64) *AppError {
	err := New(ErrStakeStillLocked, fmt.Sprintf("stake locked until %d", releaseTime), nil)
	err.ReleaseTime = releaseTime
	return err
}

func NewTransferFailed(cause error) *AppError {
	return New(ErrTransferFailed, "asset transfer declined", cause)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidTier, ErrInvalidAmount, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrNotAllowListed, ErrReadOnly:
		return http.StatusForbidden
	case ErrNoActiveStake, ErrNotFound:
		return http.StatusNotFound
	case ErrStakeStillLocked, ErrAlreadyWithdrawn:
		return http.StatusConflict
	case ErrCooldownActive:
		return http.StatusTooManyRequests
	case ErrTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrNotAllowListed:
		return "Ask the owner to add the account to the allow-list."
	case ErrCooldownActive:
		return "Wait for the cooldown interval to elapse before staking again."
	case ErrStakeStillLocked:
		return "Retry after the release time."
	case ErrAlreadyWithdrawn:
		return "The account has already completed its withdrawal."
	case ErrInvalidTier:
		return "Check the tier id against the configured tier table."
	case ErrTransferFailed:
		return "Check the asset balance and retry."
	case ErrAuthFailed:
		return "Check API keys."
	default:
		return ""
	}
}
