package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// StateCookieName holds the OAuth state between the redirect to GitHub and
// the callback.
const StateCookieName = "oauth_state"

const defaultGitHubAPIURL = "https://api.github.com"

// GitHubUser is the portion of the GitHub /user API response we care about.
type GitHubUser struct {
	ID    int64  `json:"id"`    // stable numeric id
	Login string `json:"login"` // username, e.g. "octocat"
	Email string `json:"email"` // empty if hidden in GitHub settings
}

// SignInEmail is the address the identity is stored under. Accounts that
// hide their email get the GitHub noreply address for their login.
func (u *GitHubUser) SignInEmail() string {
	if email := strings.TrimSpace(u.Email); email != "" {
		return strings.ToLower(email)
	}
	return strings.ToLower(u.Login) + "@users.noreply.github.com"
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow. The code-for-token exchange happens server to server, so the
// GitHub access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
// callbackURL must match the "Authorization callback URL" of the OAuth App
// exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: defaultGitHubAPIURL,
	}
}

// NewState returns an OAuth state value with 128 bits from crypto/rand.
// The handler stores it in a cookie and compares it on callback to block
// CSRF, so it must not be derivable from time or process ids.
func NewState() string {
	return rand.Text()
}

// AuthURL returns the URL to redirect the user to for authorization.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the GitHub user profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.apiURL + "/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}
