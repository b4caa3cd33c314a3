package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"tsreddit/internal/errors"
	"tsreddit/internal/loader"
	"tsreddit/internal/model"
	"tsreddit/internal/service"
)

// UserView is the public shape of a user. Email is only set for the viewer
// themselves.
type UserView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PostView is a post with its derived fields resolved for the viewer.
type PostView struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Points     int       `json:"points"`
	CreatorID  uint      `json:"creator_id"`
	CreatedAt  time.Time `json:"created_at"`
	Creator    *UserView `json:"creator,omitempty"`
	VoteStatus *int      `json:"vote_status"`
}

func newUserView(scope *loader.Scope, u *model.User) *UserView {
	email, _ := service.ResolveEmail(scope, u)
	return &UserView{ID: u.ID, Name: u.Name, Email: email}
}

// fail converts err into the echo error for the response, logging the
// failures that clients only see as a generic message.
func fail(c echo.Context, err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	if httpErr.Code == "STORAGE_ERROR" {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// renderPosts resolves creator and vote status for every post. All loads are
// queued before any is forced, so each loader issues one query for the page.
// A field that fails to resolve is left empty; the rest of the page is kept.
func renderPosts(c echo.Context, scope *loader.Scope, posts []model.Post) []PostView {
	_, signedIn := scope.Viewer.UserID()

	authors := make([]func() (*model.User, error), len(posts))
	statuses := make([]func() (model.VoteStatus, error), len(posts))
	for i := range posts {
		authors[i] = service.ResolveAuthor(scope, &posts[i])
		if signedIn {
			statuses[i] = service.ResolveViewerVoteStatus(scope, &posts[i])
		}
	}

	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = PostView{
			ID:        p.ID,
			Title:     p.Title,
			Text:      p.Text,
			Points:    p.Points,
			CreatorID: p.CreatorID,
			CreatedAt: p.CreatedAt,
		}
		if author, err := authors[i](); err == nil {
			views[i].Creator = newUserView(scope, author)
		} else {
			c.Logger().Warnf("resolve creator of post %d: %v", p.ID, err)
		}
		if statuses[i] != nil {
			if status, err := statuses[i](); err == nil {
				views[i].VoteStatus = status.Ptr()
			} else {
				c.Logger().Warnf("resolve vote status of post %d: %v", p.ID, err)
			}
		}
	}
	return views
}
