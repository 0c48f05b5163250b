// Package entities contains main entities of the feed.
package entities

import "time"

// Post is a single ephemeral photo post. ID and CreatedAt are assigned by the
// store on first save; CreatedAt never changes across caption edits.
type Post struct {
	ID        string
	AuthorID  string
	Author    *User // populated when the query expands the author reference
	Caption   string
	ImageRef  string
	Location  string
	LikedBy   []string
	CreatedAt time.Time
}

// Liked reports whether userID is a member of LikedBy.
func (p *Post) Liked(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}

	return false
}

// Comment ...
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Author    *User // may be a bare reference right after creation
	Text      string
	CreatedAt time.Time
}

// User ...
type User struct {
	ID           string
	Username     string
	Email        string
	LastPostedAt *time.Time // nil until the user shares their first post
}
