// Package store contains the remote object store interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/daybook-net/daybook/internal/entities"
)

//go:generate mockgen -destination=./mock/store.go -package=mock -source=store.go

// Error kinds surfaced to the viewer. Implementations and callers wrap the
// underlying cause with one of these so it can be matched with errors.Is.
var (
	// ErrNotFound ...
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists ...
	ErrAlreadyExists = errors.New("already exists")
	// ErrQuery ...
	ErrQuery = errors.New("query failed")
	// ErrSave ...
	ErrSave = errors.New("save failed")
	// ErrDelete ...
	ErrDelete = errors.New("delete failed")
	// ErrAuth ...
	ErrAuth = errors.New("authentication failed")
)

// ListPostsParams ...
type ListPostsParams struct {
	CreatedAfter time.Time
	Limit        int
}

// ListCommentsParams ...
type ListCommentsParams struct {
	PostID string
	Limit  int
}

// Store provides typed access to the remote object store.
type Store interface {
	// ListPosts returns posts created after CreatedAfter, newest first, capped
	// at Limit, with the author reference expanded.
	ListPosts(ctx context.Context, p *ListPostsParams) ([]*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	// SavePost persists p and returns the canonical post with store-assigned
	// fields populated. An empty ID means first save.
	SavePost(ctx context.Context, p *entities.Post) (*entities.Post, error)
	DeletePost(ctx context.Context, id string) error

	// ListComments returns the post's comments, newest first.
	ListComments(ctx context.Context, p *ListCommentsParams) ([]*entities.Comment, error)
	SaveComment(ctx context.Context, c *entities.Comment) (*entities.Comment, error)

	GetUser(ctx context.Context, id string) (*entities.User, error)
	SaveUser(ctx context.Context, u *entities.User) (*entities.User, error)
}

// CredentialStore is the server-side extension of Store used by the auth
// endpoints. Client-side implementations do not provide it.
type CredentialStore interface {
	Store

	CreateUser(ctx context.Context, u *entities.User, passwordHash string) (*entities.User, error)
	// GetUserCredentials returns the user and their password hash by username.
	GetUserCredentials(ctx context.Context, username string) (*entities.User, string, error)
}
