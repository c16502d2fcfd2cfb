package model

import "strings"

// AnonymousAuthor is shown when neither a stored author name nor a profile
// username is available.
const AnonymousAuthor = "Anonymous Cat Lover"

// ResolveAuthorName picks the display name for a post or comment.
// Precedence: the stored author_name, then the joined profile username,
// then AnonymousAuthor. Blank values are skipped.
func ResolveAuthorName(stored, username string) string {
	if s := strings.TrimSpace(stored); s != "" {
		return s
	}
	if u := strings.TrimSpace(username); u != "" {
		return u
	}
	return AnonymousAuthor
}

// ResolveAuthor fills p.AuthorName in place.
func (p *Post) ResolveAuthor() {
	p.AuthorName = ResolveAuthorName(p.AuthorName, p.Username)
}

// ResolveAuthor fills c.AuthorName in place.
func (c *Comment) ResolveAuthor() {
	c.AuthorName = ResolveAuthorName(c.AuthorName, c.Username)
}
