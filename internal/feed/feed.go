// Package feed implements the feed synchronization and interaction engine.
//
// The engine owns the session-scoped feed state: the visible page of the
// 24-hour window, the per-post comment cache and the pagination limit. Reads
// and writes from completion goroutines are serialized through one mutex, so
// the last processed response wins, exactly as on a UI thread.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/store"
)

var log = logrus.WithField("package", "feed")

// ErrConfirmationRequired is returned by DeletePost until the caller confirms
// the deletion with the user.
var ErrConfirmationRequired = errors.New("deletion must be confirmed")

const (
	pageSize = 10
	// MaxVisibleComments caps how many comments a rendered row carries; the
	// remainder is reported as an overflow count.
	MaxVisibleComments = 3

	commentFetchLimit = 50
)

// Viewer provides the current viewer of the session.
type Viewer interface {
	Current() *entities.User
}

// Listener receives render notifications from the engine.
type Listener interface {
	// RowChanged is emitted when a single post changed and only its row
	// should be re-rendered.
	RowChanged(postID string)
	// FeedChanged is emitted when the whole visible sequence changed.
	FeedChanged()
}

type nopListener struct{}

func (nopListener) RowChanged(string) {}
func (nopListener) FeedChanged()      {}

// Row is a render snapshot of a single visible post.
type Row struct {
	Post         *entities.Post
	Revealed     bool
	Comments     []*entities.Comment
	MoreComments int
}

// Engine ...
type Engine struct {
	store    store.Store
	viewer   Viewer
	listener Listener
	now      func() time.Time

	mu       sync.Mutex
	limit    int
	posts    []*entities.Post
	comments map[string][]*entities.Comment
}

// New creates a new engine over the given store and session viewer.
// A nil listener is allowed.
func New(s store.Store, v Viewer, l Listener) *Engine {
	if l == nil {
		l = nopListener{}
	}

	return &Engine{
		store:    s,
		viewer:   v,
		listener: l,
		now:      time.Now,
		limit:    pageSize,
		comments: make(map[string][]*entities.Comment),
	}
}

// Load fetches the current page of the 24-hour window and then refills the
// comment cache, one fetch per visible post. On failure the previously loaded
// posts are left untouched: stale data beats a blanked feed.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	limit := e.limit
	e.mu.Unlock()

	posts, err := e.store.ListPosts(ctx, &store.ListPostsParams{
		CreatedAfter: e.now().Add(-Window),
		Limit:        limit,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to list posts: %w", store.ErrQuery, err)
	}

	posts = normalizePosts(posts)

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	e.mu.Lock()
	e.posts = posts
	e.mu.Unlock()

	e.listener.FeedChanged()

	e.fetchComments(ctx, ids)

	return nil
}

// RowDisplayed reports that the row at index i became visible. When the last
// loaded row shows and the page is full, the limit grows by another page and
// the full query is re-issued from the same window. The re-query is a bounded
// superset of the previous one, not an offset query, so newly created posts
// surface at the top.
func (e *Engine) RowDisplayed(ctx context.Context, i int) error {
	e.mu.Lock()
	grow := i+1 == len(e.posts) && len(e.posts) >= e.limit
	if grow {
		e.limit += pageSize
	}
	e.mu.Unlock()

	if !grow {
		return nil
	}

	return e.Load(ctx)
}

// Refresh resets pagination and the comment cache before re-querying.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.limit = pageSize
	e.comments = make(map[string][]*entities.Comment)
	e.mu.Unlock()

	return e.Load(ctx)
}

// ToggleLike flips the viewer's like on the post locally and persists the
// post in the background. Only the affected row is re-rendered. The
// optimistic state is kept even when the save fails; the failure is logged
// and delivered on the returned channel so the caller can decide whether to
// roll back. Concurrent toggles on the same post are not fenced: each save
// carries the then-current local state and the last completed one wins.
func (e *Engine) ToggleLike(ctx context.Context, postID string) <-chan error {
	out := make(chan error, 1)

	viewer := e.viewer.Current()
	if viewer == nil {
		out <- fmt.Errorf("%w: no current user", store.ErrAuth)
		close(out)
		return out
	}

	e.mu.Lock()
	p := e.findPost(postID)
	if p == nil {
		e.mu.Unlock()
		out <- fmt.Errorf("%w: post %s", store.ErrNotFound, postID)
		close(out)
		return out
	}

	p.LikedBy = toggleMembership(p.LikedBy, viewer.ID)
	snapshot := *p
	e.mu.Unlock()

	e.listener.RowChanged(postID)

	go func() {
		defer close(out)

		saved, err := e.store.SavePost(ctx, &snapshot)
		if err != nil {
			log.WithError(err).WithField("post", postID).Error("failed to persist like")
			out <- fmt.Errorf("%w: failed to persist like: %w", store.ErrSave, err)
			return
		}

		e.replacePost(saved)
		e.listener.RowChanged(postID)

		out <- nil
	}()

	return out
}

// SubmitComment persists a new comment and prepends it to the post's cache
// once the store confirms it; the comment is not shown optimistically.
// Whitespace-only input is dropped without a network call.
func (e *Engine) SubmitComment(ctx context.Context, postID, text string) <-chan error {
	out := make(chan error, 1)

	text = strings.TrimSpace(text)
	if text == "" {
		close(out)
		return out
	}

	viewer := e.viewer.Current()
	if viewer == nil {
		out <- fmt.Errorf("%w: no current user", store.ErrAuth)
		close(out)
		return out
	}

	go func() {
		defer close(out)

		saved, err := e.store.SaveComment(ctx, &entities.Comment{
			PostID:   postID,
			AuthorID: viewer.ID,
			Text:     text,
		})
		if err != nil {
			log.WithError(err).WithField("post", postID).Error("failed to save comment")
			out <- fmt.Errorf("%w: failed to save comment: %w", store.ErrSave, err)
			return
		}

		// The store may hand back a bare author reference right after
		// creation; show the locally known viewer instead. Display only, the
		// stored reference is not touched.
		if saved.Author == nil || saved.Author.Username == "" {
			v := *viewer
			saved.Author = &v
		}

		e.mu.Lock()
		e.comments[postID] = append([]*entities.Comment{saved}, e.comments[postID]...)
		e.mu.Unlock()

		e.listener.RowChanged(postID)

		out <- nil
	}()

	return out
}

// DeletePost removes the post remotely and, on confirmation from the store,
// from the visible feed. Destructive, so the caller has to pass
// confirmed=true after asking the user.
func (e *Engine) DeletePost(ctx context.Context, postID string, confirmed bool) <-chan error {
	out := make(chan error, 1)

	if !confirmed {
		out <- ErrConfirmationRequired
		close(out)
		return out
	}

	go func() {
		defer close(out)

		if err := e.store.DeletePost(ctx, postID); err != nil {
			log.WithError(err).WithField("post", postID).Error("failed to delete post")
			out <- fmt.Errorf("%w: failed to delete post: %w", store.ErrDelete, err)
			return
		}

		e.mu.Lock()
		for i, p := range e.posts {
			if p.ID == postID {
				e.posts = append(e.posts[:i], e.posts[i+1:]...)
				break
			}
		}
		delete(e.comments, postID)
		e.mu.Unlock()

		e.listener.FeedChanged()

		out <- nil
	}()

	return out
}

// EditCaption persists the new caption and applies the canonical post the
// store hands back, so store-owned fields stay authoritative. The local
// caption is left unchanged when the save fails.
func (e *Engine) EditCaption(ctx context.Context, postID, caption string) <-chan error {
	out := make(chan error, 1)

	e.mu.Lock()
	p := e.findPost(postID)
	if p == nil {
		e.mu.Unlock()
		out <- fmt.Errorf("%w: post %s", store.ErrNotFound, postID)
		close(out)
		return out
	}
	snapshot := *p
	e.mu.Unlock()

	snapshot.Caption = caption

	go func() {
		defer close(out)

		saved, err := e.store.SavePost(ctx, &snapshot)
		if err != nil {
			log.WithError(err).WithField("post", postID).Error("failed to save caption")
			out <- fmt.Errorf("%w: failed to save caption: %w", store.ErrSave, err)
			return
		}

		e.replacePost(saved)
		e.listener.RowChanged(postID)

		out <- nil
	}()

	return out
}

// Rows returns the current render snapshot: each visible post with its reveal
// flag, its most recent comments capped at MaxVisibleComments and the
// overflow count.
func (e *Engine) Rows() []Row {
	viewer := e.viewer.Current()

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Row, len(e.posts))
	for i, p := range e.posts {
		row := Row{
			Post:     p,
			Revealed: IsRevealed(p, viewer),
		}

		comments := e.comments[p.ID]
		if len(comments) > MaxVisibleComments {
			row.Comments = comments[:MaxVisibleComments]
			row.MoreComments = len(comments) - MaxVisibleComments
		} else {
			row.Comments = comments
		}

		out[i] = row
	}

	return out
}

// fetchComments refills the comment cache with one request per post. Each
// goroutine writes only its own key; completion order is unspecified.
// Failures are logged and leave the previous entry in place.
func (e *Engine) fetchComments(ctx context.Context, postIDs []string) {
	gr, ctx := errgroup.WithContext(ctx)

	for _, id := range postIDs {
		id := id
		gr.Go(func() error {
			comments, err := e.store.ListComments(ctx, &store.ListCommentsParams{
				PostID: id,
				Limit:  commentFetchLimit,
			})
			if err != nil {
				log.WithError(err).WithField("post", id).Error("failed to fetch comments")
				return nil
			}

			e.mu.Lock()
			e.comments[id] = comments
			e.mu.Unlock()

			e.listener.RowChanged(id)

			return nil
		})
	}

	_ = gr.Wait()
}

// findPost must be called with e.mu held.
func (e *Engine) findPost(id string) *entities.Post {
	for _, p := range e.posts {
		if p.ID == id {
			return p
		}
	}

	return nil
}

// replacePost overwrites the matching row with the canonical post. If the
// store returned a bare author reference, the expanded one already on the row
// is kept for display.
func (e *Engine) replacePost(p *entities.Post) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, v := range e.posts {
		if v.ID == p.ID {
			if p.Author == nil {
				p.Author = v.Author
			}
			e.posts[i] = p
			return
		}
	}
}

func normalizePosts(in []*entities.Post) []*entities.Post {
	out := make([]*entities.Post, 0, len(in))
	seen := make(map[string]struct{}, len(in))

	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// toggleMembership adds id to the set when absent and removes it when
// present. The result never contains duplicates.
func toggleMembership(set []string, id string) []string {
	out := make([]string, 0, len(set)+1)

	removed := false
	for _, v := range set {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}

	if !removed {
		out = append(out, id)
	}

	return out
}
