package feed

import (
	"time"

	"github.com/daybook-net/daybook/internal/entities"
)

// Window is the rolling window of the feed: posts older than this are not
// queried, and the reveal gate opens only within it.
const Window = 24 * time.Hour

// IsRevealed reports whether the viewer may see the post's full content.
// The gate fails closed: a nil viewer, a viewer who has never posted, or a
// post without a created timestamp is always obscured. Otherwise the post is
// revealed when it was created within 24 hours of the viewer's own last post,
// before or after; the sign of the difference is intentionally ignored.
func IsRevealed(p *entities.Post, viewer *entities.User) bool {
	if p == nil || viewer == nil || viewer.LastPostedAt == nil || p.CreatedAt.IsZero() {
		return false
	}

	d := viewer.LastPostedAt.Sub(p.CreatedAt)
	if d < 0 {
		d = -d
	}

	return d < Window
}
