package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests in this file cover driver failures a real SQLite database
// cannot easily be made to produce.

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return newFromConn(conn), mock
}

var errDriver = errors.New("disk I/O error")

func TestListPosts_QueryErrorIsWrapped(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts_with_profiles ORDER BY upvotes DESC, id DESC`)).
		WillReturnError(errDriver)

	posts, err := db.ListPosts(context.Background(), repository.PostFilter{SortBy: model.SortByUpvotes})
	assert.Nil(t, posts)
	assert.ErrorIs(t, err, errDriver)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosts_RowErrorIsReported(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "title", "content", "image_url", "user_id", "author_name", "upvotes", "created_at", "updated_at", "username"}).
		AddRow("p1", "Milo", "", "", "u1", "", 0, nil, nil, "").
		RowError(0, errDriver)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts_with_profiles WHERE instr(casefold(title), casefold(?)) > 0 ORDER BY created_at ASC, id ASC`)).
		WithArgs("milo").
		WillReturnRows(rows)

	_, err := db.ListPosts(context.Background(), repository.PostFilter{Search: "milo", Ascending: true})
	assert.ErrorIs(t, err, errDriver)
}

func TestGetPost_DriverErrorIsNotNotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts_with_profiles WHERE id = ?`)).
		WithArgs("p1").
		WillReturnError(errDriver)

	_, err := db.GetPost(context.Background(), "p1")
	assert.ErrorIs(t, err, errDriver)
	assert.False(t, errors.Is(err, apperror.ErrNotFound))
}

func TestIncrementUpvotes_UsesSingleAtomicStatement(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE posts SET upvotes = upvotes + 1 WHERE id = ? RETURNING upvotes`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"upvotes"}).AddRow(8))

	n, err := db.IncrementUpvotes(context.Background(), "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePost_RowsAffectedError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id = ? AND user_id = ?`)).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewErrorResult(errDriver))

	err := db.DeletePost(context.Background(), "p1", "u1")
	assert.ErrorIs(t, err, errDriver)
}

func TestCreateProfileIfMissing_ExecError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT(id) DO NOTHING`)).
		WillReturnError(errDriver)

	err := db.CreateProfileIfMissing(context.Background(), &model.Profile{ID: "u1", Username: "a"})
	assert.ErrorIs(t, err, errDriver)
}
