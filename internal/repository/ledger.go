package repository

import (
	"context"

	"gorm.io/gorm"
)

// Ledger groups the repositories that must change together. A Ledger
// handed to a WithTransaction callback runs every call on that transaction.
type Ledger interface {
	Users() UserRepository
	Posts() PostRepository
	Votes() VoteRepository
	// WithTransaction executes fn within a database transaction. The
	// transaction commits if fn returns nil and rolls back otherwise,
	// including when ctx is cancelled before commit.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Ledger) error) error
}

type ledger struct {
	db    *gorm.DB
	users UserRepository
	posts PostRepository
	votes VoteRepository
}

// NewLedger creates the GORM-backed ledger store.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{
		db:    db,
		users: NewUserRepository(db),
		posts: NewPostRepository(db),
		votes: NewVoteRepository(db),
	}
}

func (l *ledger) Users() UserRepository { return l.users }
func (l *ledger) Posts() PostRepository { return l.posts }
func (l *ledger) Votes() VoteRepository { return l.votes }

func (l *ledger) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewLedger(tx))
	})
}
