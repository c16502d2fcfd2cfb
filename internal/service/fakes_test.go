package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/catgram/internal/apperror"
	"github.com/sakif/catgram/internal/auth"
	"github.com/sakif/catgram/internal/model"
	"github.com/sakif/catgram/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory implementation of every repository interface.
// Set an *Err field to simulate a database failure for that operation.
type memStore struct {
	mu         sync.Mutex
	nextID     int
	clock      time.Time
	identities map[string]*model.Identity
	profiles   map[string]*model.Profile
	posts      map[string]*model.Post
	comments   map[string]*model.Comment

	profileInserts int

	listPostsErr    error
	listCommentsErr error
	getProfileErr   error
	createPostErr   error
}

var (
	_ repository.IdentityRepository = (*memStore)(nil)
	_ repository.ProfileRepository  = (*memStore)(nil)
	_ repository.PostRepository     = (*memStore)(nil)
	_ repository.CommentRepository  = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		identities: make(map[string]*model.Identity),
		profiles:   make(map[string]*model.Profile),
		posts:      make(map[string]*model.Post),
		comments:   make(map[string]*model.Comment),
	}
}

// id and tick must be called with mu held.
func (m *memStore) id(prefix string) string {
	m.nextID++
	return prefix + "-" + strconv.Itoa(m.nextID)
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateIdentity(ctx context.Context, identity *model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.Email == identity.Email {
			return apperror.Conflict("account", identity.Email)
		}
	}
	identity.ID = m.id("identity")
	identity.CreatedAt = m.tick()
	identity.UpdatedAt = identity.CreatedAt
	copied := *identity
	m.identities[identity.ID] = &copied
	return nil
}

func (m *memStore) GetIdentityByID(ctx context.Context, id string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, apperror.NotFound("identity", id)
	}
	copied := *identity
	return &copied, nil
}

func (m *memStore) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Email == email {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("identity", email)
}

func (m *memStore) UpsertGitHubIdentity(ctx context.Context, identity *model.Identity) error {
	m.mu.Lock()
	for _, existing := range m.identities {
		if existing.GitHubID == identity.GitHubID {
			*identity = *existing
			m.mu.Unlock()
			return nil
		}
	}
	for _, existing := range m.identities {
		if existing.Email == identity.Email {
			existing.GitHubID = identity.GitHubID
			*identity = *existing
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()
	return m.CreateIdentity(ctx, identity)
}

func (m *memStore) CreateProfileIfMissing(ctx context.Context, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profile.ID]; ok {
		return nil
	}
	m.profileInserts++
	profile.CreatedAt = m.tick()
	profile.UpdatedAt = profile.CreatedAt
	copied := *profile
	m.profiles[profile.ID] = &copied
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getProfileErr != nil {
		return nil, m.getProfileErr
	}
	profile, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	copied := *profile
	return &copied, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[profile.ID]
	if !ok {
		return apperror.NotFound("profile", profile.ID)
	}
	existing.Username = profile.Username
	existing.Bio = profile.Bio
	existing.UpdatedAt = m.tick()
	profile.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *memStore) GetProfileStats(ctx context.Context, id string) (*model.ProfileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats model.ProfileStats
	for _, p := range m.posts {
		if p.UserID == id {
			stats.TotalPosts++
			stats.TotalUpvotes += p.Upvotes
		}
	}
	for _, c := range m.comments {
		if c.UserID == id {
			stats.TotalComments++
		}
	}
	return &stats, nil
}

// withUsername copies p and joins the profile username, like the view.
func (m *memStore) withUsername(p *model.Post) model.Post {
	copied := *p
	if profile, ok := m.profiles[p.UserID]; ok {
		copied.Username = profile.Username
	}
	return copied
}

func (m *memStore) CreatePost(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPostErr != nil {
		return m.createPostErr
	}
	post.ID = m.id("post")
	post.Upvotes = 0
	post.CreatedAt = m.tick()
	post.UpdatedAt = post.CreatedAt
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *memStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	copied := m.withUsername(p)
	return &copied, nil
}

func (m *memStore) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listPostsErr != nil {
		return nil, m.listPostsErr
	}
	out := []model.Post{}
	for _, p := range m.posts {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		out = append(out, m.withUsername(p))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if filter.Ascending {
			a, b = b, a
		}
		if filter.SortBy == model.SortByUpvotes && a.Upvotes != b.Upvotes {
			return a.Upvotes > b.Upvotes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (m *memStore) UpdatePost(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[post.ID]
	if !ok || existing.UserID != post.UserID {
		return apperror.NotFound("post", post.ID)
	}
	existing.Title = post.Title
	existing.Content = post.Content
	existing.ImageURL = post.ImageURL
	existing.UpdatedAt = m.tick()
	return nil
}

func (m *memStore) DeletePost(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[id]
	if !ok || existing.UserID != userID {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m *memStore) IncrementUpvotes(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return 0, apperror.NotFound("post", id)
	}
	p.Upvotes++
	return p.Upvotes, nil
}

func (m *memStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = m.id("comment")
	comment.CreatedAt = m.tick()
	copied := *comment
	m.comments[comment.ID] = &copied
	return nil
}

func (m *memStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listCommentsErr != nil {
		return nil, m.listCommentsErr
	}
	out := []model.Comment{}
	for _, c := range m.comments {
		if c.PostID != postID {
			continue
		}
		copied := *c
		if profile, ok := m.profiles[c.UserID]; ok {
			copied.Username = profile.Username
		}
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) DeleteComment(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.UserID != userID {
		return apperror.NotFound("comment", id)
	}
	delete(m.comments, id)
	return nil
}

// fakeCache is a map-backed PostCache that counts hits and keeps the same
// version guard as the Redis cache.
type fakeCache struct {
	mu       sync.Mutex
	posts    map[string]model.Post
	versions map[string]int64
	hits     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{posts: make(map[string]model.Post), versions: make(map[string]int64)}
}

func (c *fakeCache) GetPost(ctx context.Context, id string) (*model.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.posts[id]
	if !ok {
		return nil, false
	}
	c.hits++
	return &p, true
}

func (c *fakeCache) PostVersion(ctx context.Context, id string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[id], true
}

func (c *fakeCache) SetPost(ctx context.Context, post *model.Post, version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[post.ID] != version {
		return
	}
	c.posts[post.ID] = *post
}

func (c *fakeCache) InvalidatePost(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[id]++
	delete(c.posts, id)
}

func (c *fakeCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.posts[id]
	return ok
}

// services bundles every service wired onto one memStore.
type services struct {
	store    *memStore
	cache    *fakeCache
	tokens   *auth.TokenService
	auth     *AuthService
	profiles *ProfileService
	posts    *PostService
	comments *CommentService
}

func newTestServices(t *testing.T) *services {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := newMemStore()
	postCache := newFakeCache()
	profiles := NewProfileService(store, store, logger)

	return &services{
		store:    store,
		cache:    postCache,
		tokens:   tokens,
		auth:     NewAuthService(store, profiles, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger),
		profiles: profiles,
		posts:    NewPostService(store, profiles, postCache, logger),
		comments: NewCommentService(store, store, profiles, logger),
	}
}

// signUp registers an account and returns the identity as the auth
// middleware would see it.
func (s *services) signUp(t *testing.T, email string) *model.Identity {
	t.Helper()
	result, err := s.auth.SignUp(context.Background(), email, "secret12")
	if err != nil {
		t.Fatalf("SignUp(%q) error = %v", email, err)
	}
	return &model.Identity{ID: result.User.ID, Email: result.User.Email}
}
