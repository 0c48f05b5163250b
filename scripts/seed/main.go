// Command seed fills the database with a handful of demo accounts and posts
// so a freshly migrated backend has something to serve.
package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/store/postgres"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Postgres string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	Password string `long:"password" env:"SEED_PASSWORD" default:"daybook" description:"password assigned to all demo accounts"`
}{}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

	ctx := context.Background()
	s := postgres.New(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("failed to hash password")
	}

	usernames := []string{"ada", "grace", "linus"}
	captions := []string{"morning walk", "lunch break", "late night hack"}

	for i, username := range usernames {
		u, err := s.CreateUser(ctx, &entities.User{
			Username: username,
			Email:    fmt.Sprintf("%s@daybook.net", username),
		}, string(hash))
		if err != nil {
			logrus.WithError(err).WithField("user", username).Fatal("failed to create user")
		}

		p, err := s.SavePost(ctx, &entities.Post{
			AuthorID: u.ID,
			Caption:  captions[i],
			ImageRef: fmt.Sprintf("https://images.daybook.net/demo/%s.jpg", username),
		})
		if err != nil {
			logrus.WithError(err).WithField("user", username).Fatal("failed to create post")
		}

		ts := p.CreatedAt
		u.LastPostedAt = &ts
		if _, err := s.SaveUser(ctx, u); err != nil {
			logrus.WithError(err).WithField("user", username).Fatal("failed to stamp last posted time")
		}

		if _, err := s.SaveComment(ctx, &entities.Comment{
			PostID:   p.ID,
			AuthorID: u.ID,
			Text:     "first!",
		}); err != nil {
			logrus.WithError(err).WithField("user", username).Fatal("failed to create comment")
		}

		logrus.WithField("user", username).Info("seeded")
	}
}
