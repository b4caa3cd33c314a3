package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	_ "tsreddit/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"tsreddit/internal/auth"
	"tsreddit/internal/cache"
	"tsreddit/internal/config"
	"tsreddit/internal/db"
	"tsreddit/internal/graph"
	"tsreddit/internal/handler"
	"tsreddit/internal/loader"
	"tsreddit/internal/repository"
	"tsreddit/internal/router"
	"tsreddit/internal/service"
)

// @title Post Feed API
// @version 1.0
// @description Posts, a cursor paginated feed and an up/down vote ledger.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	e := echo.New()

	gormDB, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Println("RESET_DB=true detected, dropping all tables...")
		db.Reset(gormDB)
		log.Println("Tables dropped")
	}

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("%v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	ledger := repository.NewLedger(gormDB)

	var locker service.Locker
	switch cfg.VoteLock {
	case "redis":
		locker = service.NewRedisLocker(cacheClient, cfg.VoteLockTTL)
	default:
		locker = service.NewLocalLocker()
	}

	var loaderOpts []loader.Option
	if cfg.LoaderWait > 0 {
		loaderOpts = append(loaderOpts, loader.WithWait(cfg.LoaderWait))
	}
	if cfg.LoaderMaxBatch > 0 {
		loaderOpts = append(loaderOpts, loader.WithMaxBatch(cfg.LoaderMaxBatch))
	}
	scopes := loader.NewFactory(ledger, loaderOpts...)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	postService := service.NewPostService(ledger, cacheClient)
	voteService := service.NewVoteService(ledger, locker, cacheClient)
	userService := service.NewUserService(ledger.Users(), cacheClient)
	sessionService := service.NewSessionService(jwtService, tokenStore)

	schema, err := graph.NewSchema(graph.Services{
		Posts: postService,
		Votes: voteService,
		Users: userService,
	})
	if err != nil {
		log.Fatalf("graphql schema: %v", err)
	}

	router.Register(e, router.Handlers{
		Posts:   handler.NewPostHandler(postService, voteService, scopes),
		Users:   handler.NewUserHandler(userService),
		Auth:    handler.NewAuthHandler(sessionService),
		GraphQL: graph.NewHandler(&schema, scopes, true),
		Health: func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := gormDB.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.Logger().Errorf("health: database: %v", err)
				return c.String(http.StatusServiceUnavailable, "database unavailable")
			}
			// the cache fails safe, so an unreachable redis only degrades
			if err := cacheClient.Ping(ctx); err != nil {
				return c.String(http.StatusOK, "ok (cache unavailable)")
			}
			return c.String(http.StatusOK, "ok")
		},
	}, auth.Middleware(jwtService, tokenStore))

	swaggerURL := "http://localhost:" + cfg.ServerPort + "/swagger/index.html"
	if cfg.SwaggerHost != "" {
		host := cfg.SwaggerHost
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "http://" + host
		}
		swaggerURL = host + "/swagger/index.html"
	}
	log.Printf("Swagger documentation available at: %s", swaggerURL)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
