package model

import "time"

// Profile is the app-level user record. ID is the owning Identity's ID;
// profiles never get an ID of their own.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileStats summarises a user's activity for the profile page.
type ProfileStats struct {
	TotalPosts    int64 `json:"total_posts"`
	TotalUpvotes  int64 `json:"total_upvotes"`
	TotalComments int64 `json:"total_comments"`
}
