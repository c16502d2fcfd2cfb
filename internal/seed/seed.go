// Package seed fills a database with demo cat posts for local development.
// Everything goes through the service layer, so seeded data obeys the same
// validation and ownership rules as real traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/service"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options controls how much data a run creates. Seed makes runs
// reproducible; 0 picks a random seed.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	MaxUpvotes      int
	Seed            int64
}

// Result counts what a run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Upvotes  int
}

type Seeder struct {
	auth     *service.AuthService
	profiles *service.ProfileService
	posts    *service.PostService
	comments *service.CommentService
	logger   *slog.Logger
}

func New(
	authService *service.AuthService,
	profiles *service.ProfileService,
	posts *service.PostService,
	comments *service.CommentService,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		auth:     authService,
		profiles: profiles,
		posts:    posts,
		comments: comments,
		logger:   logger,
	}
}

// Run creates opts.Users accounts, then opts.Posts posts spread across
// them, each with up to CommentsPerPost comments and MaxUpvotes upvotes.
// Accounts that already exist are signed into and reused.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Users <= 0 {
		return nil, errors.New("seed: need at least one user")
	}
	faker := gofakeit.New(opts.Seed)
	result := &Result{}

	users := make([]*model.Identity, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user, err := s.user(ctx, faker, i)
		if err != nil {
			return result, err
		}
		users = append(users, user)
		result.Users++
	}

	for i := 0; i < opts.Posts; i++ {
		author := users[faker.IntRange(0, len(users)-1)]
		post, err := s.posts.Create(ctx, author, service.PostInput{
			Title:    fmt.Sprintf("%s the %s", faker.PetName(), faker.Cat()),
			Content:  faker.Paragraph(1, 2, 12, " "),
			ImageURL: fmt.Sprintf("https://cataas.com/cat?seed=%s", faker.UUID()),
		})
		if err != nil {
			return result, fmt.Errorf("seed: creating post: %w", err)
		}
		result.Posts++

		for c := faker.IntRange(0, opts.CommentsPerPost); c > 0; c-- {
			commenter := users[faker.IntRange(0, len(users)-1)]
			if _, err := s.comments.Create(ctx, commenter, post.ID, faker.Sentence(faker.IntRange(3, 12))); err != nil {
				return result, fmt.Errorf("seed: commenting on %s: %w", post.ID, err)
			}
			result.Comments++
		}

		for u := faker.IntRange(0, opts.MaxUpvotes); u > 0; u-- {
			voter := users[faker.IntRange(0, len(users)-1)]
			if _, err := s.posts.Upvote(ctx, voter, post.ID); err != nil {
				return result, fmt.Errorf("seed: upvoting %s: %w", post.ID, err)
			}
			result.Upvotes++
		}
	}

	s.logger.Info("seeding finished",
		slog.Int("users", result.Users),
		slog.Int("posts", result.Posts),
		slog.Int("comments", result.Comments),
		slog.Int("upvotes", result.Upvotes),
	)
	return result, nil
}

// user signs up the i-th demo account, or signs into it if a previous run
// already created it, and gives it a fake username and bio.
func (s *Seeder) user(ctx context.Context, faker *gofakeit.Faker, i int) (*model.Identity, error) {
	email := fmt.Sprintf("cat.lover.%d@example.com", i)

	res, err := s.auth.SignUp(ctx, email, DefaultPassword)
	if errors.Is(err, apperror.ErrConflict) {
		res, err = s.auth.SignIn(ctx, email, DefaultPassword)
	}
	if err != nil {
		return nil, fmt.Errorf("seed: account %s: %w", email, err)
	}

	identity := &model.Identity{ID: res.User.ID, Email: res.User.Email, CreatedAt: res.User.CreatedAt}
	_, err = s.profiles.Update(ctx, identity, service.ProfileInput{
		Username: strings.ToLower(faker.Username()),
		Bio:      faker.Sentence(8),
	})
	if err != nil {
		return nil, fmt.Errorf("seed: profile for %s: %w", email, err)
	}
	return identity, nil
}
