package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

const MinPasswordLength = 6

// errBadCredentials is shared by "unknown email" and "wrong password" so a
// caller cannot tell which emails are registered.
var errBadCredentials = apperror.Unauthorized("invalid email or password")

// AuthService is the session provider's business side: it creates
// identities, checks credentials and issues session tokens.
//
//	AuthHandler (HTTP) → AuthService → IdentityRepository (DB)
//	                               ↘ ProfileService, TokenService (JWT)
type AuthService struct {
	identities repository.IdentityRepository
	profiles   *ProfileService
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	logger     *slog.Logger
}

func NewAuthService(
	identities repository.IdentityRepository,
	profiles *ProfileService,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		identities: identities,
		profiles:   profiles,
		tokens:     tokens,
		passwords:  passwords,
		logger:     logger,
	}
}

// AuthResult bundles the signed-in user and the issued JWT so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.CurrentUser `json:"user"`
	Token string             `json:"-"`
}

// SignUp registers a password identity, creates its profile and signs it in.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	identity := &model.Identity{Email: email, PasswordHash: hash}
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("account", email)
		}
		return nil, fmt.Errorf("service/auth: creating identity: %w", err)
	}

	s.logger.Info("identity registered", slog.String("userID", identity.ID))
	return s.issue(ctx, identity)
}

// SignIn checks email and password and issues a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errBadCredentials
	}

	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: loading identity: %w", err)
	}

	// GitHub-only identities have no password hash and never match.
	if identity.PasswordHash == "" {
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(identity.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("identity signed in", slog.String("userID", identity.ID))
	return s.issue(ctx, identity)
}

// SignInGitHub finds or creates the identity for a GitHub account and signs
// it in. An existing password identity with the same email is linked.
func (s *AuthService) SignInGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil || ghUser.ID == 0 {
		return nil, fmt.Errorf("service/auth: GitHub user must not be empty")
	}

	identity := &model.Identity{
		Email:    ghUser.SignInEmail(),
		GitHubID: ghUser.ID,
	}
	if err := s.identities.UpsertGitHubIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("service/auth: upserting identity (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("identity signed in via GitHub",
		slog.String("userID", identity.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(ctx, identity)
}

// CurrentUser resolves the signed-in caller, making sure their profile
// exists and attaching its username. A nil actor or one whose identity no
// longer exists is unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, actor *model.Identity) (*model.CurrentUser, error) {
	if actor == nil || actor.ID == "" {
		return nil, apperror.Unauthorized("sign in required")
	}

	identity, err := s.identities.GetIdentityByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session refers to an unknown account")
		}
		return nil, fmt.Errorf("service/auth: loading identity %s: %w", actor.ID, err)
	}

	return s.currentUser(ctx, identity)
}

func (s *AuthService) currentUser(ctx context.Context, identity *model.Identity) (*model.CurrentUser, error) {
	profile, err := s.profiles.Ensure(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &model.CurrentUser{
		ID:        identity.ID,
		Email:     identity.Email,
		Username:  profile.Username,
		CreatedAt: identity.CreatedAt,
	}, nil
}

func (s *AuthService) issue(ctx context.Context, identity *model.Identity) (*AuthResult, error) {
	user, err := s.currentUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", identity.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return "", apperror.ValidationFailed("email", "email address is not valid")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}
