package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

// compile-time check that *DB implements repository.IdentityRepository
var _ repository.IdentityRepository = (*DB)(nil)

const identityColumns = `id, email, password_hash, COALESCE(github_id, 0), created_at, updated_at`

// CreateIdentity inserts a new password identity. The ID and timestamps are
// generated here. A duplicate email returns apperror.ErrConflict.
func (db *DB) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	now := db.now()
	identity.ID = xid.New().String()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		nullInt64(identity.GitHubID),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", identity.Email)
		}
		return fmt.Errorf("sqlite: inserting identity (email=%s): %w", identity.Email, err)
	}

	return nil
}

// GetIdentityByID returns apperror.ErrNotFound if no identity has that ID.
func (db *DB) GetIdentityByID(ctx context.Context, id string) (*model.Identity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity", id)
		}
		return nil, fmt.Errorf("sqlite: getting identity %s: %w", id, err)
	}
	return identity, nil
}

// GetIdentityByEmail looks an identity up by its (already normalised) email.
func (db *DB) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity", email)
		}
		return nil, fmt.Errorf("sqlite: getting identity by email: %w", err)
	}
	return identity, nil
}

// UpsertGitHubIdentity resolves a GitHub sign-in to an identity.
//
//   - an identity already linked to identity.GitHubID is returned as is
//   - otherwise an identity with the same email gets linked to the GitHub ID
//   - otherwise a new identity without a password is inserted
//
// On return identity holds the stored row.
func (db *DB) UpsertGitHubIdentity(ctx context.Context, identity *model.Identity) error {
	if identity.GitHubID == 0 {
		return fmt.Errorf("sqlite: upserting GitHub identity: github id is required")
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE github_id = ?`, identity.GitHubID)
	existing, err := scanIdentity(row)
	if err == nil {
		*identity = *existing
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up identity by github_id %d: %w", identity.GitHubID, err)
	}

	byEmail, err := db.GetIdentityByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		byEmail.GitHubID = identity.GitHubID
		byEmail.UpdatedAt = db.now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE identities SET github_id = ?, updated_at = ? WHERE id = ?`,
			byEmail.GitHubID, byEmail.UpdatedAt, byEmail.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: linking identity %s to github_id %d: %w", byEmail.ID, identity.GitHubID, err)
		}
		*identity = *byEmail
		return nil
	case errors.Is(err, apperror.ErrNotFound):
		identity.PasswordHash = ""
		return db.CreateIdentity(ctx, identity)
	default:
		return err
	}
}

func scanIdentity(row scanner) (*model.Identity, error) {
	var identity model.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.GitHubID,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}
