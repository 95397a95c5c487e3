package router

import (
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"booknest/internal/auth"
	"booknest/internal/errors"
	"booknest/internal/handler"
	"booknest/internal/model"
)

// requireAuth verifies the bearer access token and rejects tokens revoked
// by logout.
func requireAuth(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) []echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    jwtService.Secret(),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    handler.ClaimsContextKey,
		TokenLookup:   "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.ErrInvalidToken
		},
	})

	notRevoked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := handler.CurrentClaims(c)
			if !ok || claims.Type != auth.TokenTypeAccess || claims.ID == "" {
				return errors.ErrInvalidToken
			}
			revoked, err := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return err
			}
			if revoked {
				return errors.ErrInvalidToken
			}
			return next(c)
		}
	}

	return []echo.MiddlewareFunc{verify, notRevoked}
}

// requireRole checks the role of an already authenticated caller.
func requireRole(allowed ...model.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := handler.CurrentClaims(c)
			if !ok {
				return errors.ErrInvalidToken
			}
			for _, role := range allowed {
				if claims.Role == role {
					return next(c)
				}
			}
			return errors.ErrForbidden
		}
	}
}

// optional runs chain only for requests that carry an Authorization header.
func optional(chain []echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := next
		for i := len(chain) - 1; i >= 0; i-- {
			guarded = chain[i](guarded)
		}
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return guarded(c)
		}
	}
}
