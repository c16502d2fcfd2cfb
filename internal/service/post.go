package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/cache"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

const (
	MaxTitleLength    = 200
	MaxContentLength  = 10000
	MaxImageURLLength = 2048

	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

// PostCache is a best-effort read cache for single posts. Implementations
// swallow their own errors; a failed lookup is just a miss.
//
// PostVersion and SetPost guard the read-through: SetPost is a no-op if
// InvalidatePost ran after the version was taken.
type PostCache interface {
	GetPost(ctx context.Context, id string) (*model.Post, bool)
	PostVersion(ctx context.Context, id string) (int64, bool)
	SetPost(ctx context.Context, post *model.Post, version int64)
	InvalidatePost(ctx context.Context, id string)
}

// PostQuery selects the feed. Zero values mean newest first, no search,
// all authors.
type PostQuery struct {
	SortBy    string
	Direction string
	Search    string
	UserID    string
}

// PostInput is the user-editable part of a post.
type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

type PostService struct {
	posts    repository.PostRepository
	profiles *ProfileService
	cache    PostCache
	logger   *slog.Logger
}

// NewPostService wires the service. A nil cache disables caching.
func NewPostService(posts repository.PostRepository, profiles *ProfileService, postCache PostCache, logger *slog.Logger) *PostService {
	if postCache == nil {
		postCache = cache.Nop{}
	}
	return &PostService{
		posts:    posts,
		profiles: profiles,
		cache:    postCache,
		logger:   logger,
	}
}

// List returns the feed. It never fails: a store error is logged and an
// empty feed returned.
func (s *PostService) List(ctx context.Context, q PostQuery) []model.Post {
	filter := repository.PostFilter{
		SortBy:    model.SortByCreatedAt,
		Ascending: strings.EqualFold(q.Direction, DirectionAsc),
		Search:    strings.TrimSpace(q.Search),
		UserID:    strings.TrimSpace(q.UserID),
	}
	if q.SortBy == model.SortByUpvotes {
		filter.SortBy = model.SortByUpvotes
	}

	posts, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		s.logger.Error("listing posts failed, returning empty feed",
			slog.String("sort", filter.SortBy),
			slog.String("search", filter.Search),
			slog.String("error", err.Error()),
		)
		return []model.Post{}
	}

	for i := range posts {
		posts[i].ResolveAuthor()
	}
	return posts
}

// GetByID reads through the post cache.
func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if id == "" {
		return nil, apperror.NotFound("post", id)
	}
	if post, ok := s.cache.GetPost(ctx, id); ok {
		return post, nil
	}

	// taken before the load so a concurrent write makes SetPost a no-op
	version, cacheable := s.cache.PostVersion(ctx, id)

	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.SetPost(ctx, post, version)
	}
	return post, nil
}

// Create publishes a post owned by actor with zero upvotes.
func (s *PostService) Create(ctx context.Context, actor *model.Identity, in PostInput) (*model.Post, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to create a post")
	}
	in, err := validatePostInput(in)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:      in.Title,
		Content:    in.Content,
		ImageURL:   in.ImageURL,
		UserID:     actor.ID,
		AuthorName: s.profiles.DisplayName(ctx, actor),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("userID", actor.ID),
	)
	post.ResolveAuthor()
	return post, nil
}

// Update edits a post the actor owns. A missing post is not found; somebody
// else's post is forbidden and left untouched.
func (s *PostService) Update(ctx context.Context, actor *model.Identity, id string, in PostInput) (*model.Post, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to edit a post")
	}
	in, err := validatePostInput(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:       id,
		Title:    in.Title,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		UserID:   actor.ID,
	}
	// still scoped by user_id in SQL
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: updating post %s: %w", id, err)
	}
	s.cache.InvalidatePost(ctx, id)

	s.logger.Info("post updated", slog.String("postID", id), slog.String("userID", actor.ID))
	return s.load(ctx, id)
}

// Delete removes a post the actor owns together with its comments.
func (s *PostService) Delete(ctx context.Context, actor *model.Identity, id string) error {
	if actor == nil {
		return apperror.Unauthorized("sign in to delete a post")
	}
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}

	if err := s.posts.DeletePost(ctx, id, actor.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/post: deleting post %s: %w", id, err)
	}
	s.cache.InvalidatePost(ctx, id)

	s.logger.Info("post deleted", slog.String("postID", id), slog.String("userID", actor.ID))
	return nil
}

// Upvote adds one upvote for any signed-in user. The increment happens in
// the store, so concurrent upvotes are never lost; the returned post carries
// the count this call produced.
func (s *PostService) Upvote(ctx context.Context, actor *model.Identity, id string) (*model.Post, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to upvote")
	}
	if id == "" {
		return nil, apperror.NotFound("post", id)
	}

	upvotes, err := s.posts.IncrementUpvotes(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: upvoting post %s: %w", id, err)
	}
	s.cache.InvalidatePost(ctx, id)

	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Upvotes = upvotes
	return post, nil
}

// load reads a post from the store, bypassing the cache.
func (s *PostService) load(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: loading post %s: %w", id, err)
	}
	post.ResolveAuthor()
	return post, nil
}

// owned loads the post and checks that actor wrote it.
func (s *PostService) owned(ctx context.Context, actor *model.Identity, id string) (*model.Post, error) {
	if id == "" {
		return nil, apperror.NotFound("post", id)
	}
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != actor.ID {
		s.logger.Warn("rejected change to another user's post",
			slog.String("postID", id),
			slog.String("userID", actor.ID),
		)
		return nil, apperror.Forbidden("you can only change your own posts")
	}
	return post, nil
}

func validatePostInput(in PostInput) (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if in.Title == "" {
		return in, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return in, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	if utf8.RuneCountInString(in.Content) > MaxContentLength {
		return in, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or fewer", MaxContentLength))
	}
	if in.ImageURL != "" {
		if len(in.ImageURL) > MaxImageURLLength {
			return in, apperror.ValidationFailed("image_url", "image URL is too long")
		}
		u, err := url.Parse(in.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return in, apperror.ValidationFailed("image_url", "image URL must be an absolute http or https URL")
		}
	}
	return in, nil
}
