package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/store"
)

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada", req["username"])
		assert.Equal(t, "secret1", req["password"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok","user":{"id":"u1","username":"ada"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	u, token, err := c.Login(context.Background(), "ada", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ada", u.Username)
}

func TestClient_Login_badCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid username or password"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, _, err := c.Login(context.Background(), "ada", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrAuth))
}

func TestClient_tokenAttached(t *testing.T) {
	var sawAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/login" {
			_, _ = w.Write([]byte(`{"token":"tok","user":{"id":"u1","username":"ada"}}`))
			return
		}

		sawAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"posts":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, _, err := c.Login(context.Background(), "ada", "secret1")
	require.NoError(t, err)

	_, err = c.ListPosts(context.Background(), &store.ListPostsParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", sawAuth)
}

func TestClient_ListPosts(t *testing.T) {
	createdAfter := time.Unix(150000, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/posts", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "150000", r.URL.Query().Get("createdAfter"))

		_, _ = w.Write([]byte(`{"posts":[
			{"id":"p1","authorId":"a1","imageRef":"img1","likedBy":["u1"],"createdAt":160000},
			{"id":"p2","authorId":"a2","imageRef":"img2","likedBy":[],"createdAt":155000}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	posts, err := c.ListPosts(context.Background(), &store.ListPostsParams{
		CreatedAfter: createdAfter,
		Limit:        20,
	})
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, time.Unix(160000, 0), posts[0].CreatedAt)
	assert.True(t, posts[0].Liked("u1"))
}

func TestClient_SavePost(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/posts", r.URL.Path)

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "img1", req["imageRef"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","authorId":"a1","imageRef":"img1","likedBy":[],"createdAt":160000}`))
		}))
		defer srv.Close()

		c := New(srv.URL, time.Second)

		saved, err := c.SavePost(context.Background(), &entities.Post{ImageRef: "img1"})
		require.NoError(t, err)
		assert.Equal(t, "p1", saved.ID)
	})

	t.Run("update", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/v1/posts/p1", r.URL.Path)

			var req struct {
				Caption string   `json:"caption"`
				LikedBy []string `json:"likedBy"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "after", req.Caption)
			assert.Equal(t, []string{"u1"}, req.LikedBy)

			_, _ = w.Write([]byte(`{"id":"p1","authorId":"a1","caption":"after","imageRef":"img1","likedBy":["u1"],"createdAt":160000}`))
		}))
		defer srv.Close()

		c := New(srv.URL, time.Second)

		saved, err := c.SavePost(context.Background(), &entities.Post{
			ID:      "p1",
			Caption: "after",
			LikedBy: []string{"u1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "after", saved.Caption)
	})
}

func TestClient_SaveComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/posts/p1/comments", r.URL.Path)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c1","postId":"p1","authorId":"u1","author":{"id":"u1","username":"ada"},"text":"hello","createdAt":160000}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	saved, err := c.SaveComment(context.Background(), &entities.Comment{PostID: "p1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "c1", saved.ID)
	require.NotNil(t, saved.Author)
	assert.Equal(t, "ada", saved.Author.Username)
}

func TestClient_DeletePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v1/posts/p1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	require.NoError(t, c.DeletePost(context.Background(), "p1"))
}

func TestClient_errorMapping(t *testing.T) {
	tt := []struct {
		name   string
		status int
		call   func(c *Client) error
		kind   error
	}{
		{
			name:   "get post 404",
			status: http.StatusNotFound,
			call: func(c *Client) error {
				_, err := c.GetPost(context.Background(), "ghost")
				return err
			},
			kind: store.ErrNotFound,
		},
		{
			name:   "get post 401",
			status: http.StatusUnauthorized,
			call: func(c *Client) error {
				_, err := c.GetPost(context.Background(), "p1")
				return err
			},
			kind: store.ErrAuth,
		},
		{
			name:   "list posts 500",
			status: http.StatusInternalServerError,
			call: func(c *Client) error {
				_, err := c.ListPosts(context.Background(), &store.ListPostsParams{Limit: 10})
				return err
			},
			kind: store.ErrQuery,
		},
		{
			name:   "save post 500",
			status: http.StatusInternalServerError,
			call: func(c *Client) error {
				_, err := c.SavePost(context.Background(), &entities.Post{ID: "p1"})
				return err
			},
			kind: store.ErrSave,
		},
		{
			name:   "delete post 500",
			status: http.StatusInternalServerError,
			call: func(c *Client) error {
				return c.DeletePost(context.Background(), "p1")
			},
			kind: store.ErrDelete,
		},
		{
			name:   "save user 409",
			status: http.StatusConflict,
			call: func(c *Client) error {
				_, err := c.SaveUser(context.Background(), &entities.User{Username: "taken"})
				return err
			},
			kind: store.ErrAlreadyExists,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			err := tc.call(New(srv.URL, time.Second))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind))
		})
	}
}

func TestClient_Logout(t *testing.T) {
	var sawAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			_, _ = w.Write([]byte(`{"token":"tok","user":{"id":"u1","username":"ada"}}`))
		case "/v1/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			sawAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"posts":[]}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, _, err := c.Login(context.Background(), "ada", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))

	// the token is dropped with the session
	_, err = c.ListPosts(context.Background(), &store.ListPostsParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, sawAuth)
}
