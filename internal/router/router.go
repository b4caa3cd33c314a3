package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"tsreddit/internal/handler"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Posts   *handler.PostHandler
	Users   *handler.UserHandler
	Auth    *handler.AuthHandler
	GraphQL http.Handler
	// Health reports whether the server's dependencies are reachable.
	Health func(c echo.Context) error
}

// Register wires routes and middleware. authn resolves the request viewer
// from an optional bearer token.
func Register(e *echo.Echo, h Handlers, authn echo.MiddlewareFunc) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = NewValidator()

	health := h.Health
	if health == nil {
		health = func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		}
	}
	e.GET("/healthz", health)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if h.GraphQL != nil {
		e.Any("/graphql", echo.WrapHandler(h.GraphQL), authn)
	}

	api := e.Group("/api", authn)

	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout)

	api.GET("/me", h.Users.Me)

	api.GET("/posts", h.Posts.ListPosts)
	api.POST("/posts", h.Posts.CreatePost)
	api.GET("/posts/:id", h.Posts.GetPost)
	api.PATCH("/posts/:id", h.Posts.UpdatePost)
	api.DELETE("/posts/:id", h.Posts.DeletePost)
	api.POST("/posts/:id/vote", h.Posts.Vote)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the request validator used by every handler.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
