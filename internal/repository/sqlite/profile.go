package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// CreateProfileIfMissing inserts the profile row for profile.ID.
//
// ON CONFLICT DO NOTHING makes two concurrent first requests for the same
// identity safe: one insert wins, the other is a no-op. The caller re-reads
// the row afterwards to get whichever version was stored.
func (db *DB) CreateProfileIfMissing(ctx context.Context, profile *model.Profile) error {
	now := db.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, username, bio, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		profile.ID,
		profile.Username,
		profile.Bio,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile %s: %w", profile.ID, err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, bio, created_at, updated_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Username, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProfile overwrites username and bio and stamps updated_at.
func (db *DB) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET username = ?, bio = ?, updated_at = ? WHERE id = ?`,
		profile.Username, profile.Bio, profile.UpdatedAt, profile.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ID, err)
	}
	return checkAffected(result, apperror.NotFound("profile", profile.ID))
}

// GetProfileStats counts the identity's posts, the upvotes those posts
// received, and the comments the identity wrote.
func (db *DB) GetProfileStats(ctx context.Context, id string) (*model.ProfileStats, error) {
	var stats model.ProfileStats
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM posts WHERE user_id = ?),
			(SELECT COALESCE(SUM(upvotes), 0) FROM posts WHERE user_id = ?),
			(SELECT COUNT(*) FROM comments WHERE user_id = ?)`,
		id, id, id,
	).Scan(&stats.TotalPosts, &stats.TotalUpvotes, &stats.TotalComments)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting stats for %s: %w", id, err)
	}
	return &stats, nil
}
