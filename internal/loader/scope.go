package loader

import (
	"context"

	"tsreddit/internal/errors"
	"tsreddit/internal/model"
	"tsreddit/internal/repository"
)

// Scope is the resolution context of one inbound request: who is asking and
// the loaders that derived fields go through. Build a new Scope per request
// and drop it once the response is written.
type Scope struct {
	Viewer model.Viewer
	Users  *Loader[uint, model.User]
	Votes  *Loader[model.VoteKey, model.Vote]
}

// NewScope creates fresh loaders over ledger for viewer.
func NewScope(ctx context.Context, ledger repository.Ledger, viewer model.Viewer, opts ...Option) *Scope {
	return &Scope{
		Viewer: viewer,
		Users:  NewUserLoader(ctx, ledger.Users(), opts...),
		Votes:  NewVoteLoader(ctx, ledger.Votes(), opts...),
	}
}

// Factory builds a fresh Scope for each inbound request.
type Factory func(ctx context.Context, viewer model.Viewer) *Scope

// NewFactory returns a Factory over ledger. opts apply to every loader it builds.
func NewFactory(ledger repository.Ledger, opts ...Option) Factory {
	return func(ctx context.Context, viewer model.Viewer) *Scope {
		return NewScope(ctx, ledger, viewer, opts...)
	}
}

// NewUserLoader batches user lookups by id.
func NewUserLoader(ctx context.Context, users repository.UserRepository, opts ...Option) *Loader[uint, model.User] {
	fetch := func(ctx context.Context, ids []uint) ([]model.User, error) {
		rows, err := users.FindByIDs(ctx, ids)
		return rows, errors.Storage("load users", err)
	}
	keyOf := func(u model.User) uint { return u.ID }
	return New(ctx, fetch, keyOf, opts...)
}

// NewVoteLoader batches vote lookups by (user, post).
func NewVoteLoader(ctx context.Context, votes repository.VoteRepository, opts ...Option) *Loader[model.VoteKey, model.Vote] {
	fetch := func(ctx context.Context, keys []model.VoteKey) ([]model.Vote, error) {
		rows, err := votes.FindByKeys(ctx, keys)
		return rows, errors.Storage("load votes", err)
	}
	return New(ctx, fetch, model.Vote.Key, opts...)
}
