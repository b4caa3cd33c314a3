package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tsreddit/internal/cache"
	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/model"
	"tsreddit/internal/repository"
)

// maxVoteAttempts bounds retries after losing an insert race on the vote
// primary key to another process.
const maxVoteAttempts = 3

// VoteService applies votes to the ledger and keeps post points in step.
type VoteService interface {
	CastVote(ctx context.Context, viewer model.Viewer, postID uint, value int) (bool, error)
	Reconcile(ctx context.Context, postID uint) (int, error)
}

type voteService struct {
	ledger repository.Ledger
	locker Locker
	cache  *cache.Client
}

// NewVoteService creates a new vote service.
func NewVoteService(ledger repository.Ledger, locker Locker, cache *cache.Client) VoteService {
	return &voteService{
		ledger: ledger,
		locker: locker,
		cache:  cache,
	}
}

// CastVote records the viewer's vote on a post. A first vote inserts a
// ledger row, a vote in the other direction flips the row, and repeating the
// current direction fails with ErrDuplicateVote. The row change and the
// points adjustment commit together or not at all.
func (s *voteService) CastVote(ctx context.Context, viewer model.Viewer, postID uint, value int) (bool, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return false, apperrors.ErrUnauthenticated
	}
	desired, err := model.ParseVoteValue(value)
	if err != nil {
		return false, err
	}
	key := model.VoteKey{UserID: userID, PostID: postID}

	unlock, err := s.locker.Lock(ctx, "vote:"+key.String())
	if err != nil {
		return false, apperrors.Storage("lock vote", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		err = s.apply(ctx, key, desired)
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < maxVoteAttempts {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
			return false, apperrors.ErrPostNotFound
		}
		return false, apperrors.Storage("cast vote", err)
	}

	_ = s.cache.Delete(ctx, postCacheKey(postID))
	return true, nil
}

func (s *voteService) apply(ctx context.Context, key model.VoteKey, desired model.VoteValue) error {
	return s.ledger.WithTransaction(ctx, func(ctx context.Context, tx repository.Ledger) error {
		existing, err := tx.Votes().FindForUpdate(ctx, key)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := &model.Vote{UserID: key.UserID, PostID: key.PostID, Value: desired}
			if err := tx.Votes().Create(ctx, vote); err != nil {
				return err
			}
			return tx.Posts().AddPoints(ctx, key.PostID, int(desired))
		case err != nil:
			return err
		case existing.Value == desired:
			return apperrors.ErrDuplicateVote
		default:
			if err := tx.Votes().UpdateValue(ctx, key, desired); err != nil {
				return err
			}
			return tx.Posts().AddPoints(ctx, key.PostID, int(desired)-int(existing.Value))
		}
	})
}

// Reconcile recomputes a post's points from its ledger rows and stores the
// result. It returns the corrected score.
func (s *voteService) Reconcile(ctx context.Context, postID uint) (int, error) {
	var points int
	err := s.ledger.WithTransaction(ctx, func(ctx context.Context, tx repository.Ledger) error {
		if _, err := tx.Posts().FindByIDForUpdate(ctx, postID); err != nil {
			return err
		}
		sum, err := tx.Votes().SumByPost(ctx, postID)
		if err != nil {
			return fmt.Errorf("sum votes: %w", err)
		}
		points = sum
		return tx.Posts().SetPoints(ctx, postID, sum)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrPostNotFound
		}
		return 0, apperrors.Storage("reconcile points", err)
	}

	_ = s.cache.Delete(ctx, postCacheKey(postID))
	return points, nil
}
