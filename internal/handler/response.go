package handler

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"booknest/internal/auth"
	"booknest/internal/errors"
)

// ClaimsContextKey is where the JWT middleware stores the parsed token.
const ClaimsContextKey = "user"

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// HTTPErrorHandler renders every error as a failed envelope. Domain errors
// go through MapErrorToHTTP; echo's own errors keep their status. Anything
// that maps to 500 is logged with its real cause.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var status int
	var message string
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		status = he.Code
		switch status {
		case http.StatusNotFound:
			message = "API endpoint not found"
		case http.StatusMethodNotAllowed:
			message = "Method not allowed"
		case http.StatusInternalServerError:
			message = "Internal server error"
		default:
			message = fmt.Sprint(he.Message)
		}
	} else {
		httpErr := errors.MapErrorToHTTP(err)
		status, message = httpErr.StatusCode, httpErr.Message
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, Response{Success: false, Message: message})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

// CurrentClaims returns the claims of the authenticated caller, if the
// request passed through the JWT middleware.
func CurrentClaims(c echo.Context) (*auth.Claims, bool) {
	token, ok := c.Get(ClaimsContextKey).(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*auth.Claims)
	return claims, ok && claims != nil
}

func parseID(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Validation("Invalid " + label)
	}
	return uint(id), nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseDate accepts RFC 3339 timestamps, MySQL-style datetimes and plain
// dates. An empty string yields nil.
func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Validation("Invalid date for field: " + field)
}
