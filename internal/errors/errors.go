package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when a request field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user does not exist")
	// ErrBookNotFound is returned when a book is not found.
	ErrBookNotFound = errors.New("book not found")
	// ErrBorrowNotFound is returned when a borrow record is not found.
	ErrBorrowNotFound = errors.New("borrow record not found")
	// ErrOutOfStock is returned when a book has no copies left to lend.
	ErrOutOfStock = errors.New("book is out of stock")
	// ErrInvalidStatus is returned for a status value outside the known set.
	ErrInvalidStatus = errors.New("invalid borrow status")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrBookInUse is returned when deleting a book with requested or
	// borrowed records.
	ErrBookInUse = errors.New("book has active borrow records")
	// ErrBookHasHistory is returned when deleting a book that closed borrow
	// records still reference.
	ErrBookHasHistory = errors.New("book has borrow history")
	// ErrEmailTaken is returned when registering an email twice.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidRole is returned for a role outside user|admin.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInvalidToken is returned for missing, expired or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrForbidden is returned when the caller's role is not allowed.
	ErrForbidden = errors.New("you do not have permission to access this resource")
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Validation wraps a field-level message so it maps to 400 with that text.
func Validation(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

// statusByError lists every domain error with the status and client-facing
// message it maps to.
var statusByError = []struct {
	err     error
	status  int
	message string
}{
	{ErrUserNotFound, http.StatusNotFound, "User does not exist"},
	{ErrBookNotFound, http.StatusNotFound, "Book not found"},
	{ErrBorrowNotFound, http.StatusNotFound, "Borrow record not found"},
	{ErrValidation, http.StatusBadRequest, "Validation failed"},
	{ErrOutOfStock, http.StatusBadRequest, "Book is out of stock"},
	{ErrInvalidStatus, http.StatusBadRequest, "Invalid status"},
	{ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
	{ErrInvalidTransition, http.StatusConflict, "Status change not allowed"},
	{ErrBookInUse, http.StatusConflict, "Book has active borrow records"},
	{ErrBookHasHistory, http.StatusConflict, "Book has borrow history and cannot be deleted"},
	{ErrEmailTaken, http.StatusConflict, "Email already registered"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password"},
	{ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{ErrForbidden, http.StatusForbidden, "You do not have permission to access this resource"},
}

// MapErrorToHTTP maps domain errors to HTTP errors. The wrapping context
// added on the way up is dropped from the message; anything unrecognised
// becomes a generic 500 so store errors never reach the client.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	for _, entry := range statusByError {
		if errors.Is(err, entry.err) {
			return NewHTTPError(entry.status, entry.message)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "Internal server error")
}
