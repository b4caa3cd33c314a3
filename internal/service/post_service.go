package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tsreddit/internal/cache"
	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/model"
	"tsreddit/internal/repository"
)

const (
	// MaxPageSize caps how many posts one page may hold.
	MaxPageSize = 50
	// DefaultPageSize is used when the caller asks for a non-positive limit.
	DefaultPageSize = 10

	postCacheTTL = 5 * time.Minute
)

// Page is one slice of the feed, newest first.
type Page struct {
	Posts   []model.Post
	HasMore bool
}

// PostService handles feed reads and post authoring.
type PostService interface {
	ListPosts(ctx context.Context, limit int, cursor *time.Time) (*Page, error)
	GetPost(ctx context.Context, id uint) (*model.Post, error)
	CreatePost(ctx context.Context, viewer model.Viewer, title, text string) (*model.Post, error)
	UpdatePostTitle(ctx context.Context, viewer model.Viewer, id uint, title string) (*model.Post, error)
	DeletePost(ctx context.Context, viewer model.Viewer, id uint) error
}

type postService struct {
	ledger repository.Ledger
	cache  *cache.Client
}

// NewPostService creates a new post service.
func NewPostService(ledger repository.Ledger, cache *cache.Client) PostService {
	return &postService{
		ledger: ledger,
		cache:  cache,
	}
}

func postCacheKey(id uint) string {
	return fmt.Sprintf("post:%d", id)
}

// ClampLimit bounds a requested page size to [1, MaxPageSize].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// ListPosts returns posts created strictly before cursor (or the newest ones
// when cursor is nil). One extra row is read to learn whether more remain.
func (s *postService) ListPosts(ctx context.Context, limit int, cursor *time.Time) (*Page, error) {
	realLimit := ClampLimit(limit)
	posts, err := s.ledger.Posts().ListBefore(ctx, cursor, realLimit+1)
	if err != nil {
		return nil, apperrors.Storage("list posts", err)
	}

	page := &Page{Posts: posts}
	if len(posts) == realLimit+1 {
		page.Posts = posts[:realLimit]
		page.HasMore = true
	}
	return page, nil
}

// GetPost retrieves a post by ID. Title and text come from the cache when
// present; points are always read from the row, so a cache entry filled
// while a vote was committing never serves a stale score.
func (s *postService) GetPost(ctx context.Context, id uint) (*model.Post, error) {
	if data, _ := s.cache.Get(ctx, postCacheKey(id)); data != nil {
		var cached model.Post
		if err := json.Unmarshal(data, &cached); err == nil {
			points, err := s.ledger.Posts().FindPoints(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					_ = s.cache.Delete(ctx, postCacheKey(id))
					return nil, apperrors.ErrPostNotFound
				}
				return nil, apperrors.Storage("get post points", err)
			}
			cached.Points = points
			return &cached, nil
		}
	}

	post, err := s.ledger.Posts().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPostNotFound
		}
		return nil, apperrors.Storage("get post", err)
	}

	if payload, err := json.Marshal(post); err == nil {
		_ = s.cache.Set(ctx, postCacheKey(id), payload, postCacheTTL)
	}
	return post, nil
}

// CreatePost publishes a post owned by the viewer.
func (s *postService) CreatePost(ctx context.Context, viewer model.Viewer, title, text string) (*model.Post, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	post := &model.Post{Title: title, Text: text, CreatorID: userID}
	if err := s.ledger.Posts().Create(ctx, post); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrTitleTaken
		}
		return nil, apperrors.Storage("create post", err)
	}
	return post, nil
}

// UpdatePostTitle renames a post. Only its creator may do so.
func (s *postService) UpdatePostTitle(ctx context.Context, viewer model.Viewer, id uint, title string) (*model.Post, error) {
	userID, ok := viewer.UserID()
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.ErrInvalidInput
	}

	var updated *model.Post
	err := s.ledger.WithTransaction(ctx, func(ctx context.Context, tx repository.Ledger) error {
		post, err := tx.Posts().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if post.CreatorID != userID {
			return apperrors.ErrUnauthorized
		}
		if err := tx.Posts().UpdateTitle(ctx, id, title); err != nil {
			return err
		}
		post.Title = title
		updated = post
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError("update post", err)
	}

	_ = s.cache.Delete(ctx, postCacheKey(id))
	return updated, nil
}

// DeletePost removes a post and its ledger rows. Only its creator may do so.
func (s *postService) DeletePost(ctx context.Context, viewer model.Viewer, id uint) error {
	userID, ok := viewer.UserID()
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	err := s.ledger.WithTransaction(ctx, func(ctx context.Context, tx repository.Ledger) error {
		post, err := tx.Posts().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if post.CreatorID != userID {
			return apperrors.ErrUnauthorized
		}
		if err := tx.Votes().DeleteByPost(ctx, id); err != nil {
			return err
		}
		return tx.Posts().Delete(ctx, id)
	})
	if err != nil {
		return s.mapWriteError("delete post", err)
	}

	_ = s.cache.Delete(ctx, postCacheKey(id))
	return nil
}

func (s *postService) mapWriteError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrPostNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.ErrTitleTaken
	default:
		return apperrors.Storage(op, err)
	}
}
