package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/loader"
	"tsreddit/internal/model"
)

func TestResolveAuthor_GroupsLookups(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	bob := store.seedUser("bob")
	now := time.Now()
	var posts []model.Post
	for i, creator := range []uint{alice.ID, bob.ID, alice.ID, alice.ID, bob.ID} {
		posts = append(posts, store.seedPost(creator, string(rune('a'+i)), now))
	}
	scope := loader.NewScope(context.Background(), store.ledger(), model.Anonymous())

	resolvers := make([]func() (*model.User, error), len(posts))
	for i := range posts {
		resolvers[i] = ResolveAuthor(scope, &posts[i])
	}
	for i, resolve := range resolvers {
		user, err := resolve()
		require.NoError(t, err)
		assert.Equal(t, posts[i].CreatorID, user.ID)
	}

	assert.Equal(t, 1, store.findByIDsCalls)
}

func TestResolveAuthor_MissingUser(t *testing.T) {
	store := newMemStore()
	scope := loader.NewScope(context.Background(), store.ledger(), model.Anonymous())

	_, err := ResolveAuthor(scope, &model.Post{ID: 1, CreatorID: 77})()

	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestResolveViewerVoteStatus(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	bob := store.seedUser("bob")
	voted := store.seedPost(alice.ID, "voted", time.Now())
	untouched := store.seedPost(alice.ID, "untouched", time.Now())
	ctx := context.Background()

	_, err := NewVoteService(store.ledger(), NewLocalLocker(), nil).CastVote(ctx, model.SignedIn(bob.ID), voted.ID, -1)
	require.NoError(t, err)

	scope := loader.NewScope(ctx, store.ledger(), model.SignedIn(bob.ID))
	first := ResolveViewerVoteStatus(scope, &voted)
	second := ResolveViewerVoteStatus(scope, &untouched)

	status, err := first()
	require.NoError(t, err)
	v, ok := status.Get()
	assert.True(t, ok)
	assert.Equal(t, model.Downvote, v)

	status, err = second()
	require.NoError(t, err)
	_, ok = status.Get()
	assert.False(t, ok)
	assert.Nil(t, status.Ptr())

	assert.Equal(t, 1, store.findByKeysCalls)
}

func TestResolveViewerVoteStatus_Anonymous(t *testing.T) {
	store := newMemStore()
	scope := loader.NewScope(context.Background(), store.ledger(), model.Anonymous())

	_, err := ResolveViewerVoteStatus(scope, &model.Post{ID: 1})()

	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Zero(t, store.findByKeysCalls)
}

func TestResolveEmail(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	bob := store.seedUser("bob")

	self := loader.NewScope(context.Background(), store.ledger(), model.SignedIn(alice.ID))
	email, err := ResolveEmail(self, &alice)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	email, err = ResolveEmail(self, &bob)
	require.NoError(t, err)
	assert.Empty(t, email)

	anon := loader.NewScope(context.Background(), store.ledger(), model.Anonymous())
	email, err = ResolveEmail(anon, &alice)
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestUserService_Me(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	svc := NewUserService(store.ledger().Users(), nil)
	ctx := context.Background()

	me, err := svc.Me(ctx, model.SignedIn(alice.ID))
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Name)

	_, err = svc.Me(ctx, model.Anonymous())
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = svc.Me(ctx, model.SignedIn(404))
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_CreateUserDuplicateEmail(t *testing.T) {
	store := newMemStore()
	svc := NewUserService(store.ledger().Users(), nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, &model.User{Name: "alice", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, &model.User{Name: "alice2", Email: "a@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}
