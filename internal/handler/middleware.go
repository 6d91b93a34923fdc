package handler

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
)

// Logger attaches a request-scoped logger carrying the request id and the
// caller identity to the context, and writes one access log line per request.
func Logger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			l := base.With("request_id", chimiddleware.GetReqID(r.Context()))
			if g := r.Header.Get(HeaderGuild); g != "" {
				l = l.With("guild_id", g)
			}
			if u := r.Header.Get(HeaderUser); u != "" {
				l = l.With("user_id", u)
			}
			ctx := logging.WithContext(r.Context(), l)

			next.ServeHTTP(ww, r.WithContext(ctx))

			l.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// CORS allows browser clients of the live view on other origins.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderGuild+", "+HeaderUser+", "+HeaderPrivileged)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
