// Command seed fills the configured database with demo users and cat
// posts. Every seeded account uses the password in seed.DefaultPassword.
//
//	JWT_SECRET=dev-secret-at-least-16 go run ./cmd/seed -users 20 -posts 100
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/config"
	sqliteRepo "github.com/sakif/catgram/internal/repository/sqlite"
	"github.com/sakif/catgram/internal/seed"
	"github.com/sakif/catgram/internal/service"
)

func main() {
	users := flag.Int("users", 10, "number of accounts to create")
	posts := flag.Int("posts", 40, "number of posts to create")
	comments := flag.Int("comments", 4, "maximum comments per post")
	upvotes := flag.Int("upvotes", 25, "maximum upvotes per post")
	randSeed := flag.Int64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to create token service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	profiles := service.NewProfileService(db, db, logger)
	seeder := seed.New(
		service.NewAuthService(db, profiles, tokens, auth.NewPasswordService(), logger),
		profiles,
		service.NewPostService(db, profiles, nil, logger),
		service.NewCommentService(db, db, profiles, logger),
		logger,
	)

	if _, err := seeder.Run(context.Background(), seed.Options{
		Users:           *users,
		Posts:           *posts,
		CommentsPerPost: *comments,
		MaxUpvotes:      *upvotes,
		Seed:            *randSeed,
	}); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
