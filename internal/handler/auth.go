package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/service"
)

// stateCookieMaxAge bounds how long the user has to approve on GitHub.
const stateCookieMaxAge = 10 * time.Minute

// AuthHandler serves sign-up, sign-in, sign-out, GitHub OAuth and /api/me.
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider // nil when GitHub sign-in is not configured
	sessionTTL   time.Duration
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	sessionTTL time.Duration,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		github:       github,
		sessionTTL:   sessionTTL,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignUp creates an account and signs it in.
//
// HTTP: POST /api/auth/signup  {"email": "...", "password": "..."}
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.Warn("invalid credentials JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.auth.SignUp(r.Context(), body.Email, body.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, result)
}

// HandleSignIn checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/signin  {"email": "...", "password": "..."}
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.Warn("invalid credentials JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.auth.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result)
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /api/auth/signout
//
// Sessions are stateless JWTs, so the token itself stays valid until it
// expires; without the cookie the browser just stops sending it.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleMe returns the signed-in user with their profile username.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// A random state goes into a short-lived HttpOnly cookie and the
// authorization URL; the callback only proceeds if the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(auth.StateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   auth.StateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "GitHub sign-in failed"})
		return
	}

	result, err := h.auth.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setSessionCookie stores the JWT in an HttpOnly cookie so page scripts
// cannot read it. SameSite=Lax keeps it off cross-site POSTs.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
