package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tsreddit/internal/auth"
	"tsreddit/internal/errors"
	"tsreddit/internal/loader"
	"tsreddit/internal/model"
	"tsreddit/internal/service"
)

// PostHandler handles feed, post and vote endpoints.
type PostHandler struct {
	posts  service.PostService
	votes  service.VoteService
	scopes loader.Factory
}

// NewPostHandler creates a new post handler.
func NewPostHandler(posts service.PostService, votes service.VoteService, scopes loader.Factory) *PostHandler {
	return &PostHandler{posts: posts, votes: votes, scopes: scopes}
}

// FeedResponse is one page of the feed.
type FeedResponse struct {
	Posts      []PostView `json:"posts"`
	HasMore    bool       `json:"has_more"`
	NextCursor *int64     `json:"next_cursor,omitempty"`
}

// CreatePostRequest represents a new post.
type CreatePostRequest struct {
	Title string `json:"title" validate:"required,max=300"`
	Text  string `json:"text" validate:"required"`
}

// UpdatePostRequest renames a post.
type UpdatePostRequest struct {
	Title string `json:"title" validate:"required,max=300"`
}

// VoteRequest casts a vote. Value must be 1 or -1.
type VoteRequest struct {
	Value int `json:"value"`
}

// VoteResponse reports a cast vote.
type VoteResponse struct {
	Success bool `json:"success"`
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid id",
			Code:  "INVALID_INPUT",
		})
	}
	return uint(id), nil
}

func invalidBody(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

// ListPosts godoc
// @Summary List posts, newest first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 50)"
// @Param cursor query int false "Creation time of the last post already seen, unix milliseconds"
// @Success 200 {object} FeedResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /posts [get]
func (h *PostHandler) ListPosts(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid limit",
				Code:  "INVALID_INPUT",
			})
		}
		limit = n
	}

	var cursor *time.Time
	if raw := c.QueryParam("cursor"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
				Error: "invalid cursor",
				Code:  "INVALID_INPUT",
			})
		}
		t := time.UnixMilli(ms)
		cursor = &t
	}

	ctx := c.Request().Context()
	page, err := h.posts.ListPosts(ctx, limit, cursor)
	if err != nil {
		return fail(c, err)
	}

	scope := h.scopes(ctx, auth.ViewerFromContext(ctx))
	resp := FeedResponse{
		Posts:   renderPosts(c, scope, page.Posts),
		HasMore: page.HasMore,
	}
	if n := len(page.Posts); n > 0 && page.HasMore {
		next := page.Posts[n-1].CreatedAt.UnixMilli()
		resp.NextCursor = &next
	}
	return c.JSON(http.StatusOK, resp)
}

// GetPost godoc
// @Summary Get post by id
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := h.posts.GetPost(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	scope := h.scopes(ctx, auth.ViewerFromContext(ctx))
	return c.JSON(http.StatusOK, renderPosts(c, scope, []model.Post{*post})[0])
}

// CreatePost godoc
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePostRequest true "Post data"
// @Success 201 {object} PostView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /posts [post]
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return invalidBody(err)
	}

	ctx := c.Request().Context()
	viewer := auth.ViewerFromContext(ctx)
	post, err := h.posts.CreatePost(ctx, viewer, req.Title, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, renderPosts(c, h.scopes(ctx, viewer), []model.Post{*post})[0])
}

// UpdatePost godoc
// @Summary Rename a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "New title"
// @Success 200 {object} PostView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [patch]
func (h *PostHandler) UpdatePost(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return invalidBody(err)
	}

	ctx := c.Request().Context()
	viewer := auth.ViewerFromContext(ctx)
	post, err := h.posts.UpdatePostTitle(ctx, viewer, id, req.Title)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, renderPosts(c, h.scopes(ctx, viewer), []model.Post{*post})[0])
}

// DeletePost godoc
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /posts/{id} [delete]
func (h *PostHandler) DeletePost(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.posts.DeletePost(ctx, auth.ViewerFromContext(ctx), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Vote godoc
// @Summary Up or down vote a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body VoteRequest true "1 or -1"
// @Success 200 {object} VoteResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /posts/{id}/vote [post]
func (h *PostHandler) Vote(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req VoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	ctx := c.Request().Context()
	ok, err := h.votes.CastVote(ctx, auth.ViewerFromContext(ctx), id, req.Value)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, VoteResponse{Success: ok})
}
