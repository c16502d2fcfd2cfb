// Package service contains the business logic of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Every operation that acts on behalf of a user takes that user explicitly
// as a *model.Identity. A nil identity means an anonymous caller. Services
// never look the session up themselves.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

const (
	MaxUsernameLength = 50
	MaxBioLength      = 500

	// defaultUsername is used for a new profile whose identity has no email.
	defaultUsername = "User"
)

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

// ProfileService manages the app-level user records that shadow identities.
type ProfileService struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	logger     *slog.Logger
}

func NewProfileService(identities repository.IdentityRepository, profiles repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		identities: identities,
		profiles:   profiles,
		logger:     logger,
	}
}

// Ensure returns the identity's profile, creating it on first use with the
// identity's email as username.
//
// Concurrent first calls for the same identity are safe: the insert is
// "insert if missing" and both callers then read back the single stored row.
func (s *ProfileService) Ensure(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	if identity == nil || identity.ID == "" {
		return nil, apperror.Unauthorized("sign in required")
	}

	profile, err := s.profiles.GetProfile(ctx, identity.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/profile: loading profile %s: %w", identity.ID, err)
	}

	username := strings.TrimSpace(identity.Email)
	if username == "" {
		username = defaultUsername
	}

	if err := s.profiles.CreateProfileIfMissing(ctx, &model.Profile{ID: identity.ID, Username: username}); err != nil {
		return nil, fmt.Errorf("service/profile: creating profile %s: %w", identity.ID, err)
	}

	profile, err = s.profiles.GetProfile(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: reloading profile %s: %w", identity.ID, err)
	}

	s.logger.Info("profile created",
		slog.String("userID", profile.ID),
		slog.String("username", profile.Username),
	)
	return profile, nil
}

// Get returns the profile for an identity ID, creating it if the identity
// exists but has no profile yet. An unknown ID is apperror.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	if id == "" {
		return nil, apperror.NotFound("profile", id)
	}

	identity, err := s.identities.GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("service/profile: loading identity %s: %w", id, err)
	}

	return s.Ensure(ctx, identity)
}

// Update changes the actor's own username and bio. There is no way to
// update somebody else's profile.
func (s *ProfileService) Update(ctx context.Context, actor *model.Identity, in ProfileInput) (*model.Profile, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to edit your profile")
	}

	username := strings.TrimSpace(in.Username)
	bio := strings.TrimSpace(in.Bio)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or fewer", MaxBioLength))
	}

	profile, err := s.Ensure(ctx, actor)
	if err != nil {
		return nil, err
	}

	profile.Username = username
	profile.Bio = bio
	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/profile: updating profile %s: %w", actor.ID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", actor.ID))
	return profile, nil
}

// Stats returns post, upvote and comment totals for a user.
func (s *ProfileService) Stats(ctx context.Context, userID string) (*model.ProfileStats, error) {
	if userID == "" {
		return nil, apperror.NotFound("profile", userID)
	}
	stats, err := s.profiles.GetProfileStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading stats for %s: %w", userID, err)
	}
	return stats, nil
}

// DisplayName is the author name stamped onto new posts and comments: the
// actor's profile username, or their email when the profile cannot be
// loaded.
func (s *ProfileService) DisplayName(ctx context.Context, actor *model.Identity) string {
	profile, err := s.Ensure(ctx, actor)
	if err != nil {
		s.logger.Warn("falling back to email for author name",
			slog.String("userID", actor.ID),
			slog.String("error", err.Error()),
		)
		return actor.Email
	}
	if strings.TrimSpace(profile.Username) == "" {
		return actor.Email
	}
	return profile.Username
}
