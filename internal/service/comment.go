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

const MaxCommentLength = 2000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	profiles *ProfileService
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	profiles *ProfileService,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		profiles: profiles,
		logger:   logger,
	}
}

// ListByPost returns a post's comments newest first. Like the feed it fails
// closed to an empty list.
func (s *CommentService) ListByPost(ctx context.Context, postID string) []model.Comment {
	comments, err := s.comments.ListCommentsByPost(ctx, postID)
	if err != nil {
		s.logger.Error("listing comments failed, returning none",
			slog.String("postID", postID),
			slog.String("error", err.Error()),
		)
		return []model.Comment{}
	}
	for i := range comments {
		comments[i].ResolveAuthor()
	}
	return comments
}

func (s *CommentService) Create(ctx context.Context, actor *model.Identity, postID, content string) (*model.Comment, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("sign in to comment")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or fewer", MaxCommentLength))
	}

	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("service/comment: loading post %s: %w", postID, err)
	}

	comment := &model.Comment{
		Content:    content,
		PostID:     postID,
		UserID:     actor.ID,
		AuthorName: s.profiles.DisplayName(ctx, actor),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: creating comment on %s: %w", postID, err)
	}

	s.logger.Info("comment created",
		slog.String("commentID", comment.ID),
		slog.String("postID", postID),
		slog.String("userID", actor.ID),
	)
	comment.ResolveAuthor()
	return comment, nil
}

// Delete removes a comment the actor wrote.
func (s *CommentService) Delete(ctx context.Context, actor *model.Identity, id string) error {
	if actor == nil {
		return apperror.Unauthorized("sign in to delete a comment")
	}

	comment, err := s.comments.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/comment: loading comment %s: %w", id, err)
	}
	if comment.UserID != actor.ID {
		return apperror.Forbidden("you can only delete your own comments")
	}

	if err := s.comments.DeleteComment(ctx, id, actor.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/comment: deleting comment %s: %w", id, err)
	}

	s.logger.Info("comment deleted", slog.String("commentID", id), slog.String("userID", actor.ID))
	return nil
}
