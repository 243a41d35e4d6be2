package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// ContextKeyActor is the key for storing the actor name in request context.
	ContextKeyActor contextKey = "actor"

	// ActorHeader identifies the editor performing the request.
	ActorHeader = "X-Actor"

	// DefaultActor is attributed when no actor header is sent.
	DefaultActor = "api_user"
)

// ActorMiddleware resolves the editor identity of each request, used for
// audit attribution. There is no authentication involved: the header is
// taken at face value, the transport layer upstream is trusted.
type ActorMiddleware struct{}

// NewActorMiddleware creates a new ActorMiddleware.
func NewActorMiddleware() *ActorMiddleware {
	return &ActorMiddleware{}
}

// Identify adds the actor name from the X-Actor header to request context,
// falling back to DefaultActor when the header is absent or blank.
func (m *ActorMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = DefaultActor
		}

		ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext retrieves the actor name from request context.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}
