package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardclash-backend/internal/apperr"
	"github.com/DoyleJ11/cardclash-backend/internal/ratelimit"
)

type ctxKey struct{}

const userHeader = "X-User-ID"

// PlayerID is the caller identity set by Identity, or "".
func PlayerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func withPlayer(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Identity trusts the X-User-ID header forwarded by the gateway. When token
// is set, requests must also carry it as a bearer token.
func Identity(token string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					log.Warn("rejected request without gateway token", zap.String("path", r.URL.Path))
					writeError(w, log, apperr.Auth("request did not come through the gateway"))
					return
				}
			}

			id := strings.TrimSpace(r.Header.Get(userHeader))
			if id == "" {
				writeError(w, log, apperr.Auth("missing %s", userHeader))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPlayer(r.Context(), id)))
		})
	}
}

// RateLimit rejects callers that exceed their bucket with 429.
func RateLimit(l ratelimit.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(PlayerID(r)) {
				log.Info("rate limited", zap.String("player_id", PlayerID(r)), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "10")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "too many requests, slow down"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
