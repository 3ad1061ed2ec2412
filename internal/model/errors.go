package model

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check against these.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotRegistered     = errors.New("identity is not registered")
	ErrSessionExpired    = errors.New("session expired, please re-authenticate")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrOutOfStock        = errors.New("reward out of stock")
	ErrEmptyComment      = errors.New("comment must not be empty")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrUnknownMission    = errors.New("unknown mission")
	ErrUnknownReward     = errors.New("unknown reward")
	ErrEmptyCart         = errors.New("cart is empty")
)

// ErrorCode categorizes engine errors per the error taxonomy.
type ErrorCode string

const (
	// CodeLocal covers local persistence parse/quota failures.
	CodeLocal ErrorCode = "LOCAL"
	// CodeRemoteFetch covers failed reads from the remote store.
	CodeRemoteFetch ErrorCode = "REMOTE_FETCH"
	// CodeRemoteWrite covers failed writes to the remote store.
	CodeRemoteWrite ErrorCode = "REMOTE_WRITE"
	// CodeSessionExpired covers identity mismatches at checkout.
	CodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	// CodeValidation covers user input rejected before any I/O.
	CodeValidation ErrorCode = "VALIDATION"
)

// Error is a categorized engine error. It wraps an underlying cause so that
// errors.Is continues to match sentinels.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a validation sentinel.
func NewValidationError(op string, err error) *Error {
	return &Error{Code: CodeValidation, Op: op, Err: err}
}

// NewRemoteWriteError wraps a failed remote write.
func NewRemoteWriteError(op string, err error) *Error {
	return &Error{Code: CodeRemoteWrite, Op: op, Err: err}
}

// NewRemoteFetchError wraps a failed remote read.
func NewRemoteFetchError(op string, err error) *Error {
	return &Error{Code: CodeRemoteFetch, Op: op, Err: err}
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsSessionExpired reports whether err signals a checkout identity mismatch.
func IsSessionExpired(err error) bool {
	return hasCode(err, CodeSessionExpired) || errors.Is(err, ErrSessionExpired)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
