package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when an operation needs a viewer identity and none is present.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnauthorized is returned when the viewer may not touch the resource.
	ErrUnauthorized = errors.New("not authorized")
	// ErrDuplicateVote is returned when a viewer repeats the vote direction they already cast.
	ErrDuplicateVote = errors.New("you can up/down vote only +1/-1 at a time")
	// ErrInvalidVote is returned when a vote value is not +1 or -1.
	ErrInvalidVote = errors.New("vote value must be 1 or -1")
	// ErrPostNotFound is returned when a post is not found.
	ErrPostNotFound = errors.New("post not found")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrTitleTaken is returned when a post title collides with an existing one.
	ErrTitleTaken = errors.New("post with this title already exists")
	// ErrEmailTaken is returned when an email collides with an existing user.
	ErrEmailTaken = errors.New("email is already taken")
	// ErrInvalidInput is returned when a request argument is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps an opaque persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage as a match so callers don't need the concrete type.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Storage wraps err as a StorageError unless it is nil or already a domain error.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsDomain reports whether err is one of the package's user-facing sentinels.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrUnauthenticated, ErrUnauthorized, ErrDuplicateVote, ErrInvalidVote,
		ErrPostNotFound, ErrUserNotFound, ErrTitleTaken, ErrEmailTaken,
		ErrInvalidInput, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Extensions exposes the stable code to GraphQL clients.
func (e *HTTPError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognised is
// reported as a generic storage failure so query text never leaks.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusForbidden, ErrUnauthorized.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrDuplicateVote):
		return NewHTTPError(http.StatusConflict, ErrDuplicateVote.Error(), "DUPLICATE_VOTE")
	case errors.Is(err, ErrInvalidVote):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidVote.Error(), "INVALID_VOTE")
	case errors.Is(err, ErrPostNotFound):
		return NewHTTPError(http.StatusNotFound, ErrPostNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrTitleTaken):
		return NewHTTPError(http.StatusConflict, ErrTitleTaken.Error(), "CONFLICT")
	case errors.Is(err, ErrEmailTaken):
		return NewHTTPError(http.StatusConflict, ErrEmailTaken.Error(), "CONFLICT")
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidInput.Error(), "INVALID_INPUT")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "STORAGE_ERROR")
	}
}
