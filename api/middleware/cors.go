package middleware

import (
	"context"
	"net/http"

	"github.com/osanval/cafeto/api/web"
	"github.com/rs/cors"
)

func Cors(origin string) web.Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			var err error
			wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(ctx, w, r)
			})

			c.Handler(wrapped).ServeHTTP(w, r)
			return err
		}
		return h
	}
	return m
}
