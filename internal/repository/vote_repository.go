package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tsreddit/internal/model"
)

// VoteRepository defines vote ledger persistence operations.
type VoteRepository interface {
	Find(ctx context.Context, key model.VoteKey) (*model.Vote, error)
	// FindForUpdate reads the row and holds a row lock until the surrounding
	// transaction ends.
	FindForUpdate(ctx context.Context, key model.VoteKey) (*model.Vote, error)
	FindByKeys(ctx context.Context, keys []model.VoteKey) ([]model.Vote, error)
	Create(ctx context.Context, vote *model.Vote) error
	UpdateValue(ctx context.Context, key model.VoteKey, value model.VoteValue) error
	SumByPost(ctx context.Context, postID uint) (int, error)
	DeleteByPost(ctx context.Context, postID uint) error
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Find(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	var vote model.Vote
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", key.UserID, key.PostID).
		First(&vote).Error; err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepository) FindForUpdate(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	var vote model.Vote
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND post_id = ?", key.UserID, key.PostID).
		First(&vote).Error; err != nil {
		return nil, err
	}
	return &vote, nil
}

// FindByKeys returns the votes that exist among keys, in no particular order.
func (r *voteRepository) FindByKeys(ctx context.Context, keys []model.VoteKey) ([]model.Vote, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pairs := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, []interface{}{k.UserID, k.PostID})
	}
	var votes []model.Vote
	if err := r.db.WithContext(ctx).Where("(user_id, post_id) IN ?", pairs).Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

// Create inserts a vote. A concurrent insert of the same key surfaces as gorm.ErrDuplicatedKey.
func (r *voteRepository) Create(ctx context.Context, vote *model.Vote) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(vote).Error
}

func (r *voteRepository) UpdateValue(ctx context.Context, key model.VoteKey, value model.VoteValue) error {
	res := r.db.WithContext(ctx).Model(&model.Vote{}).
		Where("user_id = ? AND post_id = ?", key.UserID, key.PostID).
		UpdateColumn("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SumByPost recomputes a post's score from the ledger.
func (r *voteRepository) SumByPost(ctx context.Context, postID uint) (int, error) {
	var sum int
	if err := r.db.WithContext(ctx).Model(&model.Vote{}).
		Where("post_id = ?", postID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *voteRepository) DeleteByPost(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&model.Vote{}).Error
}
