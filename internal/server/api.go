package server

import (
	"time"

	"github.com/daybook-net/daybook/internal/entities"
)

const (
	maxLimit            = 100
	defaultFeedLimit    = 10
	defaultCommentLimit = 50
)

// Error ...
type Error struct {
	Error string `json:"error"`
}

// Post ...
type Post struct {
	ID        string   `json:"id"`
	AuthorID  string   `json:"authorId"`
	Author    *User    `json:"author,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	ImageRef  string   `json:"imageRef"`
	Location  string   `json:"location,omitempty"`
	LikedBy   []string `json:"likedBy"`
	CreatedAt int64    `json:"createdAt"`
}

// Comment ...
type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	AuthorID  string `json:"authorId"`
	Author    *User  `json:"author,omitempty"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// User ...
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	LastPostedAt *int64 `json:"lastPostedAt,omitempty"`
}

// FeedRow is a post prepared for rendering: the reveal flag is computed for
// the requesting viewer and comments are capped with an overflow count.
type FeedRow struct {
	Post         Post      `json:"post"`
	Revealed     bool      `json:"revealed"`
	Comments     []Comment `json:"comments"`
	MoreComments int       `json:"moreComments"`
}

// ListPostsResponse ...
type ListPostsResponse struct {
	Posts []Post `json:"posts"`
}

// ListCommentsResponse ...
type ListCommentsResponse struct {
	Comments []Comment `json:"comments"`
}

// FeedResponse ...
type FeedResponse struct {
	Rows []FeedRow `json:"rows"`
}

// SignupRequest ...
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest ...
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse ...
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreatePostRequest ...
type CreatePostRequest struct {
	Caption  string `json:"caption"`
	ImageRef string `json:"imageRef"`
	Location string `json:"location"`
}

// UpdatePostRequest carries the full client-side copy of the mutable fields;
// store-owned fields are never writable over the API.
type UpdatePostRequest struct {
	Caption string   `json:"caption"`
	LikedBy []string `json:"likedBy"`
}

// CreateCommentRequest ...
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// UpdateProfileRequest ...
type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// NewPost converts a post entity into its API form.
func NewPost(p *entities.Post) Post {
	out := Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Caption:   p.Caption,
		ImageRef:  p.ImageRef,
		Location:  p.Location,
		LikedBy:   p.LikedBy,
		CreatedAt: p.CreatedAt.Unix(),
	}

	if out.LikedBy == nil {
		out.LikedBy = []string{}
	}

	if p.Author != nil {
		a := NewUser(p.Author)
		out.Author = &a
	}

	return out
}

// NewComment converts a comment entity into its API form.
func NewComment(c *entities.Comment) Comment {
	out := Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt.Unix(),
	}

	if c.Author != nil {
		a := NewUser(c.Author)
		out.Author = &a
	}

	return out
}

// NewUser converts a user entity into its API form.
func NewUser(u *entities.User) User {
	out := User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}

	if u.LastPostedAt != nil {
		ts := u.LastPostedAt.Unix()
		out.LastPostedAt = &ts
	}

	return out
}

// Entity converts the API post back into its entity form.
func (p Post) Entity() *entities.Post {
	out := &entities.Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Caption:   p.Caption,
		ImageRef:  p.ImageRef,
		Location:  p.Location,
		LikedBy:   p.LikedBy,
		CreatedAt: time.Unix(p.CreatedAt, 0),
	}

	if p.Author != nil {
		out.Author = p.Author.Entity()
	}

	return out
}

// Entity converts the API comment back into its entity form.
func (c Comment) Entity() *entities.Comment {
	out := &entities.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Text:      c.Text,
		CreatedAt: time.Unix(c.CreatedAt, 0),
	}

	if c.Author != nil {
		out.Author = c.Author.Entity()
	}

	return out
}

// Entity converts the API user back into its entity form.
func (u User) Entity() *entities.User {
	out := &entities.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}

	if u.LastPostedAt != nil {
		ts := time.Unix(*u.LastPostedAt, 0)
		out.LastPostedAt = &ts
	}

	return out
}
