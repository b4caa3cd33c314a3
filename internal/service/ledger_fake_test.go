package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"tsreddit/internal/model"
	"tsreddit/internal/repository"
)

// memState is one snapshot of the tables.
type memState struct {
	users  map[uint]model.User
	posts  map[uint]model.Post
	votes  map[model.VoteKey]model.Vote
	nextID uint
}

func (s *memState) clone() *memState {
	c := &memState{
		users:  make(map[uint]model.User, len(s.users)),
		posts:  make(map[uint]model.Post, len(s.posts)),
		votes:  make(map[model.VoteKey]model.Vote, len(s.votes)),
		nextID: s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	return c
}

// memStore is an in-memory Ledger. Transactions run one at a time on a
// private copy that replaces the live state on commit.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// fault injection, guarded by mu
	addPointsErr    error
	createConflicts int
	findByIDsCalls  int
	findByKeysCalls int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:  map[uint]model.User{},
		posts:  map[uint]model.Post{},
		votes:  map[model.VoteKey]model.Vote{},
		nextID: 1,
	}}
}

func (s *memStore) ledger() repository.Ledger {
	return &memLedger{store: s}
}

// snapshot returns a copy of the committed state.
func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) seedUser(name string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: s.state.nextID, Name: name, Email: name + "@example.com"}
	s.state.nextID++
	s.state.users[u.ID] = u
	return u
}

func (s *memStore) seedPost(creator uint, title string, createdAt time.Time) model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Post{ID: s.state.nextID, Title: title, Text: "body of " + title, CreatorID: creator, CreatedAt: createdAt}
	s.state.nextID++
	s.state.posts[p.ID] = p
	return p
}

func (s *memStore) votesOn(postID uint) (rows, sum int) {
	st := s.snapshot()
	for k, v := range st.votes {
		if k.PostID == postID {
			rows++
			sum += int(v.Value)
		}
	}
	return rows, sum
}

func (s *memStore) points(postID uint) int {
	return s.snapshot().posts[postID].Points
}

type memLedger struct {
	store *memStore
	tx    *memState
}

func (l *memLedger) Users() repository.UserRepository { return memUsers{l} }
func (l *memLedger) Posts() repository.PostRepository { return memPosts{l} }
func (l *memLedger) Votes() repository.VoteRepository { return memVotes{l} }

func (l *memLedger) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Ledger) error) error {
	if l.tx != nil {
		return fn(ctx, l)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	work := l.store.state.clone()
	if err := fn(ctx, &memLedger{store: l.store, tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.state = work
	return nil
}

// do runs op on the transaction copy, or on the live state under the store lock.
func (l *memLedger) do(op func(st *memState) error) error {
	if l.tx != nil {
		return op(l.tx)
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return op(l.store.state)
}

type memUsers struct{ l *memLedger }

func (r memUsers) Create(_ context.Context, user *model.User) error {
	return r.l.do(func(st *memState) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return gorm.ErrDuplicatedKey
			}
		}
		user.ID = st.nextID
		st.nextID++
		st.users[user.ID] = *user
		return nil
	})
}

func (r memUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	var out *model.User
	err := r.l.do(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r memUsers) FindByIDs(_ context.Context, ids []uint) ([]model.User, error) {
	var out []model.User
	err := r.l.do(func(st *memState) error {
		r.l.store.findByIDsCalls++
		for _, id := range ids {
			if u, ok := st.users[id]; ok {
				out = append(out, u)
			}
		}
		return nil
	})
	return out, err
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.l.do(func(st *memState) error {
		for _, u := range st.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

type memPosts struct{ l *memLedger }

func (r memPosts) Create(_ context.Context, post *model.Post) error {
	return r.l.do(func(st *memState) error {
		for _, p := range st.posts {
			if p.Title == post.Title {
				return gorm.ErrDuplicatedKey
			}
		}
		post.ID = st.nextID
		st.nextID++
		if post.CreatedAt.IsZero() {
			post.CreatedAt = time.Now()
		}
		st.posts[post.ID] = *post
		return nil
	})
}

func (r memPosts) FindByID(_ context.Context, id uint) (*model.Post, error) {
	var out *model.Post
	err := r.l.do(func(st *memState) error {
		p, ok := st.posts[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memPosts) FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error) {
	return r.FindByID(ctx, id)
}

func (r memPosts) ListBefore(_ context.Context, cursor *time.Time, limit int) ([]model.Post, error) {
	var out []model.Post
	err := r.l.do(func(st *memState) error {
		for _, p := range st.posts {
			if cursor == nil || p.CreatedAt.Before(*cursor) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r memPosts) UpdateTitle(_ context.Context, id uint, title string) error {
	return r.l.do(func(st *memState) error {
		p, ok := st.posts[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		for _, other := range st.posts {
			if other.ID != id && other.Title == title {
				return gorm.ErrDuplicatedKey
			}
		}
		p.Title = title
		st.posts[id] = p
		return nil
	})
}

func (r memPosts) Delete(_ context.Context, id uint) error {
	return r.l.do(func(st *memState) error {
		delete(st.posts, id)
		return nil
	})
}

func (r memPosts) AddPoints(_ context.Context, id uint, delta int) error {
	return r.l.do(func(st *memState) error {
		if r.l.store.addPointsErr != nil {
			return r.l.store.addPointsErr
		}
		p, ok := st.posts[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		p.Points += delta
		st.posts[id] = p
		return nil
	})
}

func (r memPosts) SetPoints(_ context.Context, id uint, points int) error {
	return r.l.do(func(st *memState) error {
		p, ok := st.posts[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		p.Points = points
		st.posts[id] = p
		return nil
	})
}

func (r memPosts) FindPoints(_ context.Context, id uint) (int, error) {
	var points int
	err := r.l.do(func(st *memState) error {
		p, ok := st.posts[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		points = p.Points
		return nil
	})
	return points, err
}

type memVotes struct{ l *memLedger }

func (r memVotes) Find(_ context.Context, key model.VoteKey) (*model.Vote, error) {
	var out *model.Vote
	err := r.l.do(func(st *memState) error {
		v, ok := st.votes[key]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (r memVotes) FindForUpdate(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	return r.Find(ctx, key)
}

func (r memVotes) FindByKeys(_ context.Context, keys []model.VoteKey) ([]model.Vote, error) {
	var out []model.Vote
	err := r.l.do(func(st *memState) error {
		r.l.store.findByKeysCalls++
		for _, k := range keys {
			if v, ok := st.votes[k]; ok {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, err
}

func (r memVotes) Create(_ context.Context, vote *model.Vote) error {
	return r.l.do(func(st *memState) error {
		if r.l.store.createConflicts > 0 {
			r.l.store.createConflicts--
			return gorm.ErrDuplicatedKey
		}
		if _, ok := st.posts[vote.PostID]; !ok {
			return gorm.ErrForeignKeyViolated
		}
		if _, ok := st.votes[vote.Key()]; ok {
			return gorm.ErrDuplicatedKey
		}
		st.votes[vote.Key()] = *vote
		return nil
	})
}

func (r memVotes) UpdateValue(_ context.Context, key model.VoteKey, value model.VoteValue) error {
	return r.l.do(func(st *memState) error {
		v, ok := st.votes[key]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		v.Value = value
		st.votes[key] = v
		return nil
	})
}

func (r memVotes) SumByPost(_ context.Context, postID uint) (int, error) {
	var sum int
	err := r.l.do(func(st *memState) error {
		for k, v := range st.votes {
			if k.PostID == postID {
				sum += int(v.Value)
			}
		}
		return nil
	})
	return sum, err
}

func (r memVotes) DeleteByPost(_ context.Context, postID uint) error {
	return r.l.do(func(st *memState) error {
		for k := range st.votes {
			if k.PostID == postID {
				delete(st.votes, k)
			}
		}
		return nil
	})
}
