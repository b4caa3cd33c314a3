package auth

import (
	"context"
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/model"
)

// ClaimsContextKey is the echo context key holding the *Claims of a
// verified bearer token.
const ClaimsContextKey = "auth.claims"

type viewerKey struct{}

// WithViewer returns a copy of ctx carrying viewer.
func WithViewer(ctx context.Context, viewer model.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewer)
}

// ViewerFromContext returns the viewer stored in ctx, or an anonymous viewer.
func ViewerFromContext(ctx context.Context) model.Viewer {
	if v, ok := ctx.Value(viewerKey{}).(model.Viewer); ok {
		return v
	}
	return model.Anonymous()
}

// ClaimsFrom returns the verified claims of the current request, if any.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ClaimsContextKey).(*Claims)
	return claims, ok
}

// Middleware resolves the request viewer from an optional bearer token.
// Requests without a token continue as anonymous; a token that fails
// verification or was revoked is rejected with 401.
func Middleware(tokens *JWTService, store TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContextKey:  ClaimsContextKey,
		ParseTokenFunc: func(c echo.Context, raw string) (interface{}, error) {
			claims, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				return nil, err
			}
			revoked, err := store.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, ErrTokenRevoked
			}
			return claims, nil
		},
		SuccessHandler: func(c echo.Context) {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithViewer(req.Context(), model.SignedIn(claims.UserID))))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var missing *echojwt.TokenExtractionError
			if errors.As(err, &missing) {
				return nil
			}
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: ErrInvalidToken.Error(),
				Code:  "UNAUTHENTICATED",
			})
		},
		ContinueOnIgnoredError: true,
	})
}
