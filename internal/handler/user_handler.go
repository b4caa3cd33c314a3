package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tsreddit/internal/auth"
	"tsreddit/internal/service"
)

// UserHandler bundles user endpoints.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserView
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.svc.Me(ctx, auth.ViewerFromContext(ctx))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, UserView{ID: user.ID, Name: user.Name, Email: user.Email})
}
