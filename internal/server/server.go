// Package server Daybook
//
// The Daybook backend provides access to the ephemeral photo feed
// (posts, likes, comments) consumed by the client engine.
//
//	Schemes: https
//	BasePath: /v1
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	mm "github.com/daybook-net/daybook/internal/middleware"
	"github.com/daybook-net/daybook/internal/store"
)

var log = logrus.WithField("package", "server")

type server struct {
	s      store.CredentialStore
	secret []byte
	now    func() time.Time
}

// SetupRouter setups handlers to chi router.
func SetupRouter(s store.CredentialStore, r chi.Router, secret []byte, timeout time.Duration) {
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.Timeout(timeout),
	)

	srv := server{
		s:      s,
		secret: secret,
		now:    time.Now,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", srv.signup)
		r.Post("/auth/login", srv.login)

		r.Group(func(r chi.Router) {
			r.Use(srv.authenticate)

			r.Post("/auth/logout", srv.logout)

			r.Get("/feed", srv.getFeed)

			r.Get("/posts", srv.listPosts)
			r.Post("/posts", srv.createPost)
			r.Get("/posts/{id}", srv.getPost)
			r.Patch("/posts/{id}", srv.updatePost)
			r.Delete("/posts/{id}", srv.deletePost)

			r.Get("/posts/{id}/comments", srv.listComments)
			r.Post("/posts/{id}/comments", srv.createComment)

			r.Get("/users/{id}", mm.Cached(time.Minute, srv.getUser))
			r.Get("/profile", srv.getProfile)
			r.Patch("/profile", srv.updateProfile)
		})
	})
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeOK(w, status, Error{Error: message})
}

func writeInternalError(w http.ResponseWriter, format string, args ...interface{}) {
	log.Errorf(format, args...)
	writeError(w, http.StatusInternalServerError, "internal error")
}
