package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"tsreddit/internal/auth"
	"tsreddit/internal/cache"
	"tsreddit/internal/config"
	"tsreddit/internal/db"
	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/model"
	"tsreddit/internal/repository"
	"tsreddit/internal/service"
)

// seedUsers are created once; reruns find them by email.
var seedUsers = []model.User{
	{Name: "alice", Email: "alice@example.com"},
	{Name: "bob", Email: "bob@example.com"},
	{Name: "carol", Email: "carol@example.com"},
}

// seedPosts are authored round robin by seedUsers.
var seedPosts = []struct {
	Title string
	Text  string
}{
	{"Welcome to the feed", "Say hello and vote on what you like."},
	{"Cursor pagination", "Pass the createdAt of the last post you saw to load the next page."},
	{"Batching lookups", "Creators and vote status are loaded once per page, not once per post."},
	{"Votes are a ledger", "Every vote is a row; points are the sum of the rows."},
	{"Changing your mind", "Voting the other way flips your vote and moves points by two."},
}

func main() {
	log.Println("Starting seed script...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gormDB, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	ledger := repository.NewLedger(gormDB)
	users := service.NewUserService(ledger.Users(), cacheClient)
	posts := service.NewPostService(ledger, cacheClient)
	votes := service.NewVoteService(ledger, service.NewLocalLocker(), cacheClient)
	sessions := service.NewSessionService(auth.NewJWTService(cfg.JWTSecret), auth.NewTokenStore(cacheClient))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seeded, err := seedAccounts(ctx, ledger.Users(), users)
	if err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	created, err := seedFeed(ctx, ledger.Posts(), posts, seeded)
	if err != nil {
		log.Fatalf("Failed to seed posts: %v", err)
	}

	cast := 0
	for i, post := range created {
		for j, user := range seeded {
			value := 1
			if (i+j)%3 == 0 {
				value = -1
			}
			_, err := votes.CastVote(ctx, model.SignedIn(user.ID), post.ID, value)
			switch {
			case err == nil:
				cast++
			case errors.Is(err, apperrors.ErrDuplicateVote):
			default:
				log.Fatalf("Failed to vote on post %d: %v", post.ID, err)
			}
		}
		points, err := votes.Reconcile(ctx, post.ID)
		if err != nil {
			log.Fatalf("Failed to reconcile post %d: %v", post.ID, err)
		}
		log.Printf("  - %q has %d points", post.Title, points)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - Users: %d", len(seeded))
	log.Printf("  - Posts: %d", len(created))
	log.Printf("  - New votes cast: %d", cast)

	for _, user := range seeded {
		access, refresh, err := sessions.Issue(ctx, &user)
		if err != nil {
			log.Printf("Skipping tokens for %s: %v", user.Name, err)
			continue
		}
		fmt.Printf("%s (id %d)\n  access:  %s\n  refresh: %s\n", user.Name, user.ID, access, refresh)
	}
}

// seedAccounts returns every seed user, creating the ones that do not exist yet.
func seedAccounts(ctx context.Context, repo repository.UserRepository, svc service.UserService) ([]model.User, error) {
	out := make([]model.User, 0, len(seedUsers))
	for _, u := range seedUsers {
		existing, err := repo.FindByEmail(ctx, u.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("error checking user %s: %w", u.Email, err)
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}

		user := u
		createdUser, err := svc.CreateUser(ctx, &user)
		if err != nil {
			return nil, fmt.Errorf("error creating user %s: %w", u.Email, err)
		}
		out = append(out, *createdUser)
	}
	return out, nil
}

// seedFeed creates the seed posts that are missing and returns all of them.
func seedFeed(ctx context.Context, repo repository.PostRepository, svc service.PostService, authors []model.User) ([]model.Post, error) {
	existing, err := repo.ListBefore(ctx, nil, service.MaxPageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	byTitle := make(map[string]model.Post, len(existing))
	for _, p := range existing {
		byTitle[p.Title] = p
	}

	out := make([]model.Post, 0, len(seedPosts))
	for i, p := range seedPosts {
		if post, ok := byTitle[p.Title]; ok {
			out = append(out, post)
			continue
		}
		author := authors[i%len(authors)]
		post, err := svc.CreatePost(ctx, model.SignedIn(author.ID), p.Title, p.Text)
		if errors.Is(err, apperrors.ErrTitleTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error creating post %q: %w", p.Title, err)
		}
		out = append(out, *post)
	}
	return out, nil
}
