package router

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"booknest/internal/auth"
	"booknest/internal/config"
	"booknest/internal/errors"
	"booknest/internal/handler"
	"booknest/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	authHandler *handler.AuthHandler,
	bookHandler *handler.BookHandler,
	borrowHandler *handler.BorrowHandler,
) {
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
	}))

	e.Validator = NewValidator()

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")
	api.GET("/health", handler.Health)

	authn := requireAuth(jwtService, tokenStore)

	// Public routes. Registration reads a bearer token when one is sent so
	// admins can create other admins.
	var register []echo.MiddlewareFunc
	if cfg.AuthRequired {
		register = append(register, optional(authn))
	}
	api.POST("/auth/register", authHandler.Register, register...)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/me", authHandler.Me, authn...)

	// With AUTH_REQUIRED unset every guard below is empty and the API
	// stays open.
	member, admin := guards(cfg.AuthRequired, authn)

	api.GET("/books", bookHandler.ListBooks)
	api.GET("/books/:id", bookHandler.GetBook)
	api.POST("/books", bookHandler.CreateBook, admin...)
	api.PUT("/books/:id", bookHandler.UpdateBook, admin...)
	api.DELETE("/books/:id", bookHandler.DeleteBook, admin...)

	api.POST("/borrows", borrowHandler.CreateBorrow, member...)
	api.GET("/borrows", borrowHandler.ListBorrows, admin...)
	api.GET("/borrows/user/:user_id", borrowHandler.ListUserBorrows, member...)
	api.GET("/borrows/:id", borrowHandler.GetBorrow, member...)
	api.PUT("/borrows/:id/status", borrowHandler.UpdateStatus, admin...)
}

func guards(required bool, authn []echo.MiddlewareFunc) (member, admin []echo.MiddlewareFunc) {
	if !required {
		return nil, nil
	}
	member = append(append(member, authn...), requireRole(model.RoleUser, model.RoleAdmin))
	admin = append(append(admin, authn...), requireRole(model.RoleAdmin))
	return member, admin
}

// CustomValidator wraps validator for Echo and turns its errors into
// client-facing messages keyed by JSON field name.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a validator that reports JSON field names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Validation("Invalid request body")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errors.Validation("Missing required field: " + fe.Field())
	case "email":
		return errors.Validation("Invalid email address")
	default:
		return errors.Validation("Invalid value for field: " + fe.Field())
	}
}
