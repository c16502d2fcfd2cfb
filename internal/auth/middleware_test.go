package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoIdentity writes the context identity's ID, or "anonymous".
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if identity := IdentityFromContext(r.Context()); identity != nil {
		w.Write([]byte(identity.ID))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(milo)
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, http.StatusOK, milo.ID},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, milo.ID},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK, milo.ID},
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts?sort=upvotes", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			RequireAuth(ts)(echoIdentity).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "unauthorized", body["error"])
			assert.Equal(t, "/api/posts?sort=upvotes", body["next"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(milo)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	rec := httptest.NewRecorder()
	OptionalAuth(ts)(echoIdentity).ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	OptionalAuth(ts)(echoIdentity).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	OptionalAuth(ts)(echoIdentity).ServeHTTP(rec, req)
	assert.Equal(t, milo.ID, rec.Body.String())
}

func TestTokenFromRequest_CookieWinsOverHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-cookie", TokenFromRequest(req))
}
