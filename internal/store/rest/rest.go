// Package rest is the client-side implementation of the store interface over
// the daybook backend HTTP API. It also implements session.Authenticator and
// attaches the session's bearer token to every request.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/server"
	"github.com/daybook-net/daybook/internal/store"
)

// Client ...
type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the backend at base, e.g. "https://api.daybook.net".
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

// Login implements session.Authenticator. The received token is attached to
// all subsequent requests.
func (c *Client) Login(ctx context.Context, username, password string) (*entities.User, string, error) {
	var resp server.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", server.LoginRequest{
		Username: username,
		Password: password,
	}, &resp); err != nil {
		return nil, "", fmt.Errorf("%w: %w", store.ErrAuth, err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	return resp.User.Entity(), resp.Token, nil
}

// Signup registers a new account and logs it in.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*entities.User, string, error) {
	var resp server.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", server.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &resp); err != nil {
		return nil, "", fmt.Errorf("%w: %w", store.ErrAuth, err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	return resp.User.Entity(), resp.Token, nil
}

// Logout implements session.Authenticator.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", store.ErrAuth, err)
	}

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	return nil
}

func (c *Client) ListPosts(ctx context.Context, p *store.ListPostsParams) ([]*entities.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("createdAfter", strconv.FormatInt(p.CreatedAfter.Unix(), 10))

	var resp server.ListPostsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/posts?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]*entities.Post, len(resp.Posts))
	for i, v := range resp.Posts {
		out[i] = v.Entity()
	}

	return out, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var resp server.Post
	if err := c.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	return resp.Entity(), nil
}

func (c *Client) SavePost(ctx context.Context, p *entities.Post) (*entities.Post, error) {
	var resp server.Post

	if p.ID == "" {
		if err := c.do(ctx, http.MethodPost, "/v1/posts", server.CreatePostRequest{
			Caption:  p.Caption,
			ImageRef: p.ImageRef,
			Location: p.Location,
		}, &resp); err != nil {
			return nil, err
		}
	} else {
		if err := c.do(ctx, http.MethodPatch, "/v1/posts/"+url.PathEscape(p.ID), server.UpdatePostRequest{
			Caption: p.Caption,
			LikedBy: p.LikedBy,
		}, &resp); err != nil {
			return nil, err
		}
	}

	return resp.Entity(), nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/posts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListComments(ctx context.Context, p *store.ListCommentsParams) ([]*entities.Comment, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))

	var resp server.ListCommentsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(p.PostID)+"/comments?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]*entities.Comment, len(resp.Comments))
	for i, v := range resp.Comments {
		out[i] = v.Entity()
	}

	return out, nil
}

func (c *Client) SaveComment(ctx context.Context, comment *entities.Comment) (*entities.Comment, error) {
	var resp server.Comment
	if err := c.do(ctx, http.MethodPost, "/v1/posts/"+url.PathEscape(comment.PostID)+"/comments", server.CreateCommentRequest{
		Text: comment.Text,
	}, &resp); err != nil {
		return nil, err
	}

	return resp.Entity(), nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*entities.User, error) {
	var resp server.User
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	return resp.Entity(), nil
}

// SaveUser updates the profile of the authenticated user; the backend does
// not allow editing anybody else.
func (c *Client) SaveUser(ctx context.Context, u *entities.User) (*entities.User, error) {
	var resp server.User
	if err := c.do(ctx, http.MethodPatch, "/v1/profile", server.UpdateProfileRequest{
		Username: u.Username,
		Email:    u.Email,
	}, &resp); err != nil {
		return nil, err
	}

	return resp.Entity(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(method, resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// apiError maps a failed response onto the store error taxonomy.
func apiError(method string, resp *http.Response) error {
	var e server.Error
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if e.Error == "" {
		e.Error = resp.Status
	}

	kind := store.ErrQuery
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = store.ErrAuth
	case resp.StatusCode == http.StatusNotFound:
		kind = store.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = store.ErrAlreadyExists
	case method == http.MethodDelete:
		kind = store.ErrDelete
	case method == http.MethodPost || method == http.MethodPatch:
		kind = store.ErrSave
	}

	return fmt.Errorf("%w: %s", kind, e.Error)
}
