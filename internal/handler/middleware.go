package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	userKey
)

// ActorFrom returns the authenticated actor of a request
func ActorFrom(ctx context.Context) *service.Actor {
	a, _ := ctx.Value(actorKey).(*service.Actor)
	return a
}

func userFrom(ctx context.Context) *repository.User {
	u, _ := ctx.Value(userKey).(*repository.User)
	return u
}

// authed requires a valid bearer access token
func (h *HTTPHandler) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.writeError(w, r, apperrors.Unauthorized("Unauthenticated."))
			return
		}

		actor, user, err := h.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, userKey, user)
		next(w, r.WithContext(ctx))
	})
}

// grant requires module:action before the handler runs
func (h *HTTPHandler) grant(module, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFrom(r.Context())
		if actor == nil || !actor.Can(module, action) {
			h.writeError(w, r, apperrors.Forbidden("Unauthorized"))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs every request with its status and duration
func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
