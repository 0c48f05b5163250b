package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/feed"
	"github.com/daybook-net/daybook/internal/store"
)

var errInvalidRequest = errors.New("invalid request")

func (s server) getFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := extractLimit(r.URL.Query(), defaultFeedLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer, err := s.s.GetUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to get viewer: %s", err.Error())
		return
	}

	posts, err := s.s.ListPosts(r.Context(), &store.ListPostsParams{
		CreatedAfter: s.now().Add(-feed.Window),
		Limit:        limit,
	})
	if err != nil {
		writeInternalError(w, "failed to list posts: %s", err.Error())
		return
	}

	rows := make([]FeedRow, len(posts))
	for i, p := range posts {
		comments, err := s.s.ListComments(r.Context(), &store.ListCommentsParams{
			PostID: p.ID,
			Limit:  defaultCommentLimit,
		})
		if err != nil {
			writeInternalError(w, "failed to list comments: %s", err.Error())
			return
		}

		row := FeedRow{
			Post:     NewPost(p),
			Revealed: feed.IsRevealed(p, viewer),
			Comments: []Comment{},
		}

		visible := comments
		if len(visible) > feed.MaxVisibleComments {
			visible = visible[:feed.MaxVisibleComments]
			row.MoreComments = len(comments) - feed.MaxVisibleComments
		}
		for _, c := range visible {
			row.Comments = append(row.Comments, NewComment(c))
		}

		rows[i] = row
	}

	writeOK(w, http.StatusOK, FeedResponse{Rows: rows})
}

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	params, err := extractListPostsParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.ListPosts(r.Context(), params)
	if err != nil {
		writeInternalError(w, "failed to list posts: %s", err.Error())
		return
	}

	out := ListPostsResponse{Posts: make([]Post, len(posts))}
	for i, p := range posts {
		out.Posts[i] = NewPost(p)
	}

	writeOK(w, http.StatusOK, out)
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeInternalError(w, "failed to get post: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, NewPost(p))
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ImageRef == "" {
		writeError(w, http.StatusBadRequest, "imageRef is required")
		return
	}

	uid := userIDFromContext(r.Context())

	saved, err := s.s.SavePost(r.Context(), &entities.Post{
		AuthorID: uid,
		Caption:  req.Caption,
		ImageRef: req.ImageRef,
		Location: req.Location,
	})
	if err != nil {
		writeInternalError(w, "failed to save post: %s", err.Error())
		return
	}

	// Stamp the author's last-posted time with the post's canonical creation
	// time, once per successful creation. The post itself is already saved,
	// so a failure here is logged but does not fail the request.
	if u, err := s.s.GetUser(r.Context(), uid); err != nil {
		log.WithError(err).WithField("user", uid).Error("failed to get author")
	} else {
		ts := saved.CreatedAt
		u.LastPostedAt = &ts
		if _, err := s.s.SaveUser(r.Context(), u); err != nil {
			log.WithError(err).WithField("user", uid).Error("failed to stamp last posted time")
		}
	}

	writeOK(w, http.StatusCreated, NewPost(saved))
}

func (s server) updatePost(w http.ResponseWriter, r *http.Request) {
	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeInternalError(w, "failed to get post: %s", err.Error())
		return
	}

	// Anyone authenticated may change likedBy; the caption belongs to the author.
	if req.Caption != p.Caption && p.AuthorID != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "only the author can edit the caption")
		return
	}

	p.Caption = req.Caption
	p.LikedBy = req.LikedBy

	saved, err := s.s.SavePost(r.Context(), p)
	if err != nil {
		writeInternalError(w, "failed to save post: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, NewPost(saved))
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeInternalError(w, "failed to get post: %s", err.Error())
		return
	}

	if p.AuthorID != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "only the author can delete the post")
		return
	}

	if err := s.s.DeletePost(r.Context(), p.ID); err != nil {
		writeInternalError(w, "failed to delete post: %s", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	limit, err := extractLimit(r.URL.Query(), defaultCommentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := s.s.ListComments(r.Context(), &store.ListCommentsParams{
		PostID: chi.URLParam(r, "id"),
		Limit:  limit,
	})
	if err != nil {
		writeInternalError(w, "failed to list comments: %s", err.Error())
		return
	}

	out := ListCommentsResponse{Comments: make([]Comment, len(comments))}
	for i, c := range comments {
		out.Comments[i] = NewComment(c)
	}

	writeOK(w, http.StatusOK, out)
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	saved, err := s.s.SaveComment(r.Context(), &entities.Comment{
		PostID:   chi.URLParam(r, "id"),
		AuthorID: userIDFromContext(r.Context()),
		Text:     req.Text,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeInternalError(w, "failed to save comment: %s", err.Error())
		return
	}

	writeOK(w, http.StatusCreated, NewComment(saved))
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.s.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(w, "failed to get user: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, NewUser(u))
}

func (s server) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.s.GetUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to get user: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, NewUser(u))
}

func (s server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username cannot be empty")
		return
	}

	u, err := s.s.GetUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, "failed to get user: %s", err.Error())
		return
	}

	u.Username = req.Username
	u.Email = req.Email

	saved, err := s.s.SaveUser(r.Context(), u)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "username is taken")
			return
		}
		writeInternalError(w, "failed to save user: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, NewUser(saved))
}

func extractListPostsParams(q url.Values, now time.Time) (*store.ListPostsParams, error) {
	out := store.ListPostsParams{
		CreatedAfter: now.Add(-feed.Window),
		Limit:        defaultFeedLimit,
	}

	limit, err := extractLimit(q, defaultFeedLimit)
	if err != nil {
		return nil, err
	}
	out.Limit = limit

	if s := q.Get("createdAfter"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse createdAfter", errInvalidRequest)
		}

		// The window never widens beyond 24 hours.
		if t := time.Unix(v, 0); t.After(out.CreatedAfter) {
			out.CreatedAfter = t
		}
	}

	return &out, nil
}

func extractLimit(q url.Values, def int) (int, error) {
	s := q.Get("limit")
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse limit", errInvalidRequest)
	}

	if v > maxLimit {
		return 0, fmt.Errorf("%w: limit is too big", errInvalidRequest)
	}

	return int(v), nil
}
