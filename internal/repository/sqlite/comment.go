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

var _ repository.CommentRepository = (*DB)(nil)

const commentColumns = `id, content, post_id, user_id, author_name, created_at, username`

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, content, post_id, user_id, author_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.Content,
		comment.PostID,
		comment.UserID,
		comment.AuthorName,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment on post %s: %w", comment.PostID, err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments_with_profiles WHERE id = ?`, id)

	comment, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return comment, nil
}

// ListCommentsByPost returns the post's comments, newest first.
func (db *DB) ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments_with_profiles
		 WHERE post_id = ?
		 ORDER BY created_at DESC, id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for post %s: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	return comments, nil
}

// DeleteComment removes the comment only if userID wrote it.
func (db *DB) DeleteComment(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("comment", id))
}

func scanComment(s scanner) (*model.Comment, error) {
	var c model.Comment
	err := s.Scan(
		&c.ID,
		&c.Content,
		&c.PostID,
		&c.UserID,
		&c.AuthorName,
		&c.CreatedAt,
		&c.Username,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
