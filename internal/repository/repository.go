// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlite implements all of them.
package repository

import (
	"context"

	"github.com/sakif/catgram/internal/model"
)

// PostFilter selects and orders posts for the feed.
// SortBy must be one of model.SortByCreatedAt or model.SortByUpvotes.
// An empty Search or UserID means "no filter".
type PostFilter struct {
	SortBy    string
	Ascending bool
	Search    string
	UserID    string
}

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentityByID(ctx context.Context, id string) (*model.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error)
	UpsertGitHubIdentity(ctx context.Context, identity *model.Identity) error
}

type ProfileRepository interface {
	// CreateProfileIfMissing inserts the profile unless a row with the same
	// ID already exists, in which case it does nothing and returns nil.
	CreateProfileIfMissing(ctx context.Context, profile *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
	GetProfileStats(ctx context.Context, id string) (*model.ProfileStats, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	// UpdatePost and DeletePost only touch a row whose id AND user_id match.
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id, userID string) error
	// IncrementUpvotes adds one upvote atomically and returns the new count.
	IncrementUpvotes(ctx context.Context, id string) (int64, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id, userID string) error
}
