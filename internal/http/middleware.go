package http

import (
	"net/http"
	"time"

	m "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"mri-console/internal/auth"
)

// RequireAPIToken guards admin routes with a static bearer token. With no
// token configured every request is refused.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok || !auth.TokenMatches(token, got) {
				writeJSON(w, http.StatusUnauthorized, errResp{"unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog writes one structured line per request.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := m.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("request_id", m.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
