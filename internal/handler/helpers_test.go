package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/handler"
	sqliteRepo "github.com/sakif/catgram/internal/repository/sqlite"
	"github.com/sakif/catgram/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

// testAPI is the full handler stack over an in-memory database, mounted
// the same way the server mounts it.
type testAPI struct {
	router *chi.Mux
	logs   *bytes.Buffer
}

func newTestAPI(t *testing.T, github *auth.GitHubProvider) *testAPI {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	profiles := service.NewProfileService(db, db, logger)
	authSvc := service.NewAuthService(db, profiles, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	posts := service.NewPostService(db, profiles, nil, logger)
	comments := service.NewCommentService(db, db, profiles, logger)

	authH := handler.NewAuthHandler(authSvc, github, tokens.TTL(), false, logger)
	postH := handler.NewPostHandler(posts, logger)
	commentH := handler.NewCommentHandler(comments, logger)
	profileH := handler.NewProfileHandler(profiles, logger)

	r := chi.NewRouter()
	r.NotFound(handler.NotFound)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authH.HandleSignUp)
		r.Post("/auth/signin", authH.HandleSignIn)
		r.Post("/auth/signout", authH.HandleSignOut)
		if github != nil {
			r.Get("/auth/github/login", authH.HandleGitHubLogin)
			r.Get("/auth/github/callback", authH.HandleGitHubCallback)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/posts", postH.HandleList)
			r.Get("/posts/{id}", postH.HandleGetByID)
			r.Get("/posts/{id}/comments", commentH.HandleList)
			r.Get("/profiles/{id}", profileH.HandleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authH.HandleMe)
			r.Post("/posts", postH.HandleCreate)
			r.Put("/posts/{id}", postH.HandleUpdate)
			r.Delete("/posts/{id}", postH.HandleDelete)
			r.Post("/posts/{id}/upvote", postH.HandleUpvote)
			r.Post("/posts/{id}/comments", commentH.HandleCreate)
			r.Delete("/comments/{id}", commentH.HandleDelete)
			r.Get("/profile", profileH.HandleGetOwn)
			r.Put("/profile", profileH.HandleUpdateOwn)
			r.Get("/profile/stats", profileH.HandleStats)
		})
	})

	return &testAPI{router: r, logs: logs}
}

// do sends a request with an optional JSON body and session cookie.
func (a *testAPI) do(t *testing.T, method, path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		req.AddCookie(session)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signUp registers email and returns the session cookie.
func (a *testAPI) signUp(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": "secret12",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

// createPost publishes a post as session and returns its id.
func (a *testAPI) createPost(t *testing.T, session *http.Cookie, title string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/posts", map[string]string{
		"title":     title,
		"content":   "a cat",
		"image_url": "https://example.com/cat.jpg",
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post struct {
		ID string `json:"id"`
	}
	decode(t, rec, &post)
	return post.ID
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("response has no %q cookie", auth.CookieName)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	decode(t, rec, &resp)
	return resp
}
