package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tsreddit/internal/model"
)

// PostRepository defines post persistence operations.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error)
	// ListBefore returns up to limit posts newest first, restricted to posts
	// created strictly before cursor when cursor is set.
	ListBefore(ctx context.Context, cursor *time.Time, limit int) ([]model.Post, error)
	UpdateTitle(ctx context.Context, id uint, title string) error
	Delete(ctx context.Context, id uint) error
	// AddPoints adjusts points by delta in a single statement. It returns
	// gorm.ErrRecordNotFound when the post does not exist.
	AddPoints(ctx context.Context, id uint, delta int) error
	SetPoints(ctx context.Context, id uint, points int) error
	// FindPoints reads only the current score of a post.
	FindPoints(ctx context.Context, id uint) (int, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new post.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// FindByID finds a post by ID.
func (r *postRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// FindByIDForUpdate finds a post by ID with row-level lock for update.
func (r *postRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// ListBefore pages through posts by creation time.
func (r *postRepository) ListBefore(ctx context.Context, cursor *time.Time, limit int) ([]model.Post, error) {
	q := r.db.WithContext(ctx).Model(&model.Post{})
	if cursor != nil {
		q = q.Where("created_at < ?", *cursor)
	}
	var posts []model.Post
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateTitle renames a post.
func (r *postRepository) UpdateTitle(ctx context.Context, id uint, title string) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a post.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddPoints increments points atomically so concurrent voters never lose updates.
func (r *postRepository) AddPoints(ctx context.Context, id uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPoints overwrites points with a recomputed total.
func (r *postRepository) SetPoints(ctx context.Context, id uint, points int) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("points", points)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postRepository) FindPoints(ctx context.Context, id uint) (int, error) {
	var points []int
	err := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("points", &points).Error
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return points[0], nil
}
