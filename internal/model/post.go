package model

import "time"

// Sort keys accepted by the feed.
const (
	SortByCreatedAt = "created_at"
	SortByUpvotes   = "upvotes"
)

// Post is a cat photo post.
//
// AuthorName is the author's display name copied onto the row when the post
// is created. Username is the author's current profile username joined in
// by the posts_with_profiles view; it is only used to resolve AuthorName
// for rows stored without one.
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Upvotes    int64     `json:"upvotes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Username   string    `json:"-"`
}

// Comment belongs to exactly one post. Comments are never edited.
type Comment struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	Username   string    `json:"-"`
}
