package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/model"
	"tsreddit/internal/repository"
)

// newSQLiteLedger returns the gorm backed ledger over a private in-memory
// sqlite database.
func newSQLiteLedger(t *testing.T) repository.Ledger {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Post{}, &model.Vote{}); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repository.NewLedger(db)
}

func createUsers(t *testing.T, l repository.Ledger, n int) []model.User {
	t.Helper()
	out := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		u := model.User{Name: fmt.Sprintf("user%d", i), Email: fmt.Sprintf("user%d@example.com", i)}
		require.NoError(t, l.Users().Create(context.Background(), &u))
		out = append(out, u)
	}
	return out
}

func createPost(t *testing.T, l repository.Ledger, creator uint, title string) model.Post {
	t.Helper()
	p := model.Post{Title: title, Text: "body", CreatorID: creator}
	require.NoError(t, l.Posts().Create(context.Background(), &p))
	return p
}

func storedPoints(t *testing.T, l repository.Ledger, postID uint) int {
	t.Helper()
	points, err := l.Posts().FindPoints(context.Background(), postID)
	require.NoError(t, err)
	return points
}

func TestCastVote_SQLite_FirstDuplicateFlip(t *testing.T) {
	l := newSQLiteLedger(t)
	users := createUsers(t, l, 2)
	post := createPost(t, l, users[0].ID, "ledger")
	svc := NewVoteService(l, NewLocalLocker(), nil)
	ctx := context.Background()
	voter := model.SignedIn(users[1].ID)

	ok, err := svc.CastVote(ctx, voter, post.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, storedPoints(t, l, post.ID))

	_, err = svc.CastVote(ctx, voter, post.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateVote)
	assert.Equal(t, 1, storedPoints(t, l, post.ID))

	_, err = svc.CastVote(ctx, voter, post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, storedPoints(t, l, post.ID))

	vote, err := l.Votes().Find(ctx, model.VoteKey{UserID: users[1].ID, PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, model.Downvote, vote.Value)

	sum, err := l.Votes().SumByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, sum)
}

func TestCastVote_SQLite_MissingPostLeavesNoRow(t *testing.T) {
	l := newSQLiteLedger(t)
	users := createUsers(t, l, 1)
	svc := NewVoteService(l, NewLocalLocker(), nil)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, model.SignedIn(users[0].ID), 404, 1)
	assert.ErrorIs(t, err, apperrors.ErrPostNotFound)

	_, err = l.Votes().Find(ctx, model.VoteKey{UserID: users[0].ID, PostID: 404})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCastVote_SQLite_ConcurrentVotersMatchLedger(t *testing.T) {
	const voters = 21
	l := newSQLiteLedger(t)
	users := createUsers(t, l, voters)
	post := createPost(t, l, users[0].ID, "busy")
	svc := NewVoteService(l, NewLocalLocker(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, viewer model.Viewer) {
			defer wg.Done()
			_, err := svc.CastVote(ctx, viewer, post.ID, 1)
			assert.NoError(t, err)
			if i%2 == 0 {
				_, err = svc.CastVote(ctx, viewer, post.ID, -1)
				assert.NoError(t, err)
			}
		}(i, model.SignedIn(u.ID))
	}
	wg.Wait()

	// 11 even voters flipped down, 10 odd voters stayed up
	sum, err := l.Votes().SumByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, sum)
	assert.Equal(t, sum, storedPoints(t, l, post.ID))
}

// racingLedger inserts a competing row for the same (user, post) right after
// the service finds none, the way a concurrent writer in another process would.
type racingLedger struct {
	repository.Ledger
	races int
}

func (l *racingLedger) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Ledger) error) error {
	return l.Ledger.WithTransaction(ctx, func(ctx context.Context, tx repository.Ledger) error {
		return fn(ctx, racingTx{Ledger: tx, parent: l})
	})
}

type racingTx struct {
	repository.Ledger
	parent *racingLedger
}

func (t racingTx) Votes() repository.VoteRepository {
	return racingVotes{VoteRepository: t.Ledger.Votes(), parent: t.parent}
}

type racingVotes struct {
	repository.VoteRepository
	parent *racingLedger
}

func (v racingVotes) FindForUpdate(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	if v.parent.races > 0 {
		v.parent.races--
		rival := &model.Vote{UserID: key.UserID, PostID: key.PostID, Value: model.Downvote}
		if err := v.VoteRepository.Create(ctx, rival); err != nil {
			return nil, err
		}
		return nil, gorm.ErrRecordNotFound
	}
	return v.VoteRepository.FindForUpdate(ctx, key)
}

func TestCastVote_SQLite_RetriesUniqueViolation(t *testing.T) {
	base := newSQLiteLedger(t)
	users := createUsers(t, base, 2)
	post := createPost(t, base, users[0].ID, "raced")
	racing := &racingLedger{Ledger: base, races: 1}
	svc := NewVoteService(racing, NewLocalLocker(), nil)
	ctx := context.Background()

	ok, err := svc.CastVote(ctx, model.SignedIn(users[1].ID), post.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, racing.races)

	vote, err := base.Votes().Find(ctx, model.VoteKey{UserID: users[1].ID, PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, model.Upvote, vote.Value)
	assert.Equal(t, 1, storedPoints(t, base, post.ID))
}

func TestCastVote_SQLite_GivesUpAfterRepeatedConflicts(t *testing.T) {
	base := newSQLiteLedger(t)
	users := createUsers(t, base, 2)
	post := createPost(t, base, users[0].ID, "contended")
	racing := &racingLedger{Ledger: base, races: maxVoteAttempts}
	svc := NewVoteService(racing, NewLocalLocker(), nil)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, model.SignedIn(users[1].ID), post.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	_, err = base.Votes().Find(ctx, model.VoteKey{UserID: users[1].ID, PostID: post.ID})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, storedPoints(t, base, post.ID))
}
