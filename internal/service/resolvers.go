package service

import (
	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/loader"
	"tsreddit/internal/model"
)

// ResolveAuthor schedules a lookup of the post's creator on the scope's user
// loader. Nothing is fetched until the returned function is called.
func ResolveAuthor(scope *loader.Scope, post *model.Post) func() (*model.User, error) {
	thunk := scope.Users.Load(post.CreatorID)
	return func() (*model.User, error) {
		res, err := thunk()
		if err != nil {
			return nil, err
		}
		if !res.Found {
			return nil, apperrors.ErrUserNotFound
		}
		user := res.Value
		return &user, nil
	}
}

// ResolveViewerVoteStatus schedules a lookup of the viewer's vote on post.
// A post the viewer never voted on resolves to model.NoVote().
func ResolveViewerVoteStatus(scope *loader.Scope, post *model.Post) func() (model.VoteStatus, error) {
	userID, ok := scope.Viewer.UserID()
	if !ok {
		return func() (model.VoteStatus, error) {
			return model.NoVote(), apperrors.ErrUnauthenticated
		}
	}

	thunk := scope.Votes.Load(model.VoteKey{UserID: userID, PostID: post.ID})
	return func() (model.VoteStatus, error) {
		res, err := thunk()
		if err != nil {
			return model.NoVote(), err
		}
		if !res.Found {
			return model.NoVote(), nil
		}
		return model.Voted(res.Value.Value), nil
	}
}

// ResolveEmail returns user's email only when the viewer is that user.
func ResolveEmail(scope *loader.Scope, user *model.User) (string, error) {
	if id, ok := scope.Viewer.UserID(); ok && id == user.ID {
		return user.Email, nil
	}
	return "", nil
}
