package middleware

import (
	"context"
	"net/http"

	"github.com/osanval/cafeto/api/web"
	"github.com/osanval/cafeto/api/weberr"
	"github.com/osanval/cafeto/errlog"
	"github.com/sirupsen/logrus"
)

// Errors is the choke point for handler failures: every error is logged
// through the sanitizing boundary, and the response body is either the
// error's attached public response or a generic message. Raw error text
// never reaches the client.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			extra := map[string]interface{}{
				"req_id": ContextRequestID(ctx),
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					extra[k] = v
				}
			}

			errlog.Diagnostic(log, r.Method+" "+r.URL.Path, err, extra)

			if body, code, ok := weberr.Response(err); ok {
				return web.Respond(ctx, w, body, code)
			}

			er := struct {
				Error string `json:"error"`
			}{
				errlog.Public(err),
			}
			return web.Respond(ctx, w, er, http.StatusInternalServerError)
		}
		return h
	}
	return m
}
