package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, title, content, image_url, user_id, author_name, upvotes, created_at, updated_at, username`

// sortColumns whitelists the ORDER BY column. Filter values never reach the
// SQL text directly.
var sortColumns = map[string]string{
	model.SortByCreatedAt: "created_at",
	model.SortByUpvotes:   "upvotes",
}

// CreatePost inserts a post with a fresh ID, zero upvotes and both
// timestamps set to now.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	now := db.now()
	post.ID = xid.New().String()
	post.Upvotes = 0
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, image_url, user_id, author_name, upvotes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Title,
		post.Content,
		post.ImageURL,
		post.UserID,
		post.AuthorName,
		post.Upvotes,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post %q: %w", post.Title, err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts_with_profiles WHERE id = ?`, id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// ListPosts returns every post matching filter. An unknown SortBy falls
// back to created_at. Ties are broken by id in the same direction so the
// order is stable between calls.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[model.SortByCreatedAt]
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}

	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		where = append(where, `instr(casefold(title), casefold(?)) > 0`)
		args = append(args, filter.Search)
	}
	if filter.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, filter.UserID)
	}

	query := `SELECT ` + postColumns + ` FROM posts_with_profiles`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY %s %s, id %s`, column, direction, direction)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating post rows: %w", err)
	}

	return posts, nil
}

// UpdatePost writes title, content and image_url. The row must belong to
// post.UserID; otherwise nothing changes and apperror.ErrNotFound is
// returned.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET title = ?, content = ?, image_url = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		post.Title, post.Content, post.ImageURL, post.UpdatedAt,
		post.ID, post.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}
	return checkAffected(result, apperror.NotFound("post", post.ID))
}

// DeletePost removes the post if userID owns it. Its comments go with it
// through ON DELETE CASCADE.
func (db *DB) DeletePost(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("post", id))
}

// IncrementUpvotes adds one upvote in a single statement, so concurrent
// upvotes never overwrite each other, and returns the count it produced.
func (db *DB) IncrementUpvotes(ctx context.Context, id string) (int64, error) {
	var upvotes int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE posts SET upvotes = upvotes + 1 WHERE id = ? RETURNING upvotes`, id,
	).Scan(&upvotes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("post", id)
		}
		return 0, fmt.Errorf("sqlite: upvoting post %s: %w", id, err)
	}
	return upvotes, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*model.Post, error) {
	var p model.Post
	err := s.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.ImageURL,
		&p.UserID,
		&p.AuthorName,
		&p.Upvotes,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Username,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
