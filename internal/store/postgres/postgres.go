// Package postgres is the server-side implementation of the store interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/store"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type pg struct {
	ext sqlx.ExtContext
}

type postDTO struct {
	ID        string         `db:"id"`
	AuthorID  string         `db:"author_id"`
	Caption   string         `db:"caption"`
	ImageRef  string         `db:"image_ref"`
	Location  string         `db:"location"`
	LikedBy   pq.StringArray `db:"liked_by"`
	CreatedAt time.Time      `db:"created_at"`

	authorDTO
}

type commentDTO struct {
	ID        string    `db:"id"`
	PostID    string    `db:"post_id"`
	AuthorID  string    `db:"author_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`

	authorDTO
}

type authorDTO struct {
	AuthorUsername     string     `db:"author_username"`
	AuthorEmail        string     `db:"author_email"`
	AuthorLastPostedAt *time.Time `db:"author_last_posted_at"`
}

type userDTO struct {
	ID           string     `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	LastPostedAt *time.Time `db:"last_posted_at"`
}

const postColumns = `
	p.id, p.author_id, p.caption, p.image_ref, p.location, p.liked_by, p.created_at,
	u.username AS author_username, u.email AS author_email, u.last_posted_at AS author_last_posted_at
`

func (s pg) ListPosts(ctx context.Context, p *store.ListPostsParams) ([]*entities.Post, error) {
	var posts []*postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &posts, `
			SELECT `+postColumns+`
			FROM post p
			JOIN "user" u ON u.id = p.author_id
			WHERE p.created_at >= $1 AND p.deleted_at IS NULL
			ORDER BY p.created_at DESC
			LIMIT $2
		`,
		p.CreatedAfter.UTC(), p.Limit,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(posts))
	for i, v := range posts {
		out[i] = toPost(v)
	}

	return out, nil
}

func (s pg) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT `+postColumns+`
			FROM post p
			JOIN "user" u ON u.id = p.author_id
			WHERE p.id = $1 AND p.deleted_at IS NULL
		`,
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPost(&p), nil
}

func (s pg) SavePost(ctx context.Context, p *entities.Post) (*entities.Post, error) {
	if p.ID == "" {
		id := uuid.NewString()

		if _, err := s.ext.ExecContext(ctx, `
				INSERT INTO post(id, author_id, caption, image_ref, location, liked_by)
				VALUES($1, $2, $3, $4, $5, $6)
			`,
			id, p.AuthorID, p.Caption, p.ImageRef, p.Location, pq.StringArray(p.LikedBy),
		); err != nil {
			return nil, fmt.Errorf("failed to exec: %w", err)
		}

		return s.GetPost(ctx, id)
	}

	// created_at and author are store-owned and never rewritten here.
	res, err := s.ext.ExecContext(ctx, `
			UPDATE post SET caption=$2, liked_by=$3 WHERE id=$1 AND deleted_at IS NULL
		`,
		p.ID, p.Caption, pq.StringArray(p.LikedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetPost(ctx, p.ID)
}

func (s pg) DeletePost(ctx context.Context, id string) error {
	res, err := s.ext.ExecContext(ctx,
		`UPDATE post SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s pg) ListComments(ctx context.Context, p *store.ListCommentsParams) ([]*entities.Comment, error) {
	var comments []*commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &comments, `
			SELECT c.id, c.post_id, c.author_id, c.text, c.created_at,
				u.username AS author_username, u.email AS author_email, u.last_posted_at AS author_last_posted_at
			FROM comment c
			JOIN "user" u ON u.id = c.author_id
			WHERE c.post_id = $1
			ORDER BY c.created_at DESC
			LIMIT $2
		`,
		p.PostID, p.Limit,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(comments))
	for i, v := range comments {
		out[i] = toComment(v)
	}

	return out, nil
}

func (s pg) SaveComment(ctx context.Context, c *entities.Comment) (*entities.Comment, error) {
	id := uuid.NewString()

	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO comment(id, post_id, author_id, text)
			VALUES($1, $2, $3, $4)
		`,
		id, c.PostID, c.AuthorID, c.Text,
	); err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	var saved commentDTO
	if err := sqlx.GetContext(ctx, s.ext, &saved, `
			SELECT c.id, c.post_id, c.author_id, c.text, c.created_at,
				u.username AS author_username, u.email AS author_email, u.last_posted_at AS author_last_posted_at
			FROM comment c
			JOIN "user" u ON u.id = c.author_id
			WHERE c.id = $1
		`,
		id,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toComment(&saved), nil
}

func (s pg) GetUser(ctx context.Context, id string) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT id, username, email, last_posted_at FROM "user" WHERE id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUser(&u), nil
}

func (s pg) SaveUser(ctx context.Context, u *entities.User) (*entities.User, error) {
	res, err := s.ext.ExecContext(ctx,
		`UPDATE "user" SET username=$2, email=$3, last_posted_at=$4 WHERE id=$1`,
		u.ID, u.Username, u.Email, u.LastPostedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetUser(ctx, u.ID)
}

func (s pg) CreateUser(ctx context.Context, u *entities.User, passwordHash string) (*entities.User, error) {
	id := uuid.NewString()

	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO "user"(id, username, email, password_hash)
			VALUES($1, $2, $3, $4)
		`,
		id, u.Username, u.Email, passwordHash,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return s.GetUser(ctx, id)
}

func (s pg) GetUserCredentials(ctx context.Context, username string) (*entities.User, string, error) {
	var u struct {
		userDTO
		PasswordHash string `db:"password_hash"`
	}

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT id, username, email, last_posted_at, password_hash FROM "user" WHERE username = $1`, username,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", store.ErrNotFound
		}

		return nil, "", fmt.Errorf("failed to query: %w", err)
	}

	return toUser(&u.userDTO), u.PasswordHash, nil
}

// New creates new instance of pg.
func New(db *sql.DB) store.CredentialStore {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func toPost(p *postDTO) *entities.Post {
	return &entities.Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Author:    p.author(p.AuthorID),
		Caption:   p.Caption,
		ImageRef:  p.ImageRef,
		Location:  p.Location,
		LikedBy:   p.LikedBy,
		CreatedAt: p.CreatedAt,
	}
}

func toComment(c *commentDTO) *entities.Comment {
	return &entities.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Author:    c.author(c.AuthorID),
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func toUser(u *userDTO) *entities.User {
	return &entities.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		LastPostedAt: u.LastPostedAt,
	}
}

func (a authorDTO) author(id string) *entities.User {
	return &entities.User{
		ID:           id,
		Username:     a.AuthorUsername,
		Email:        a.AuthorEmail,
		LastPostedAt: a.AuthorLastPostedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
