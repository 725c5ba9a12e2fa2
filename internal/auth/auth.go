// Package auth is the boundary to the external identity collaborator. It
// extracts the caller's bearer credential and resolves it to a subject id;
// the rest of the system trusts that id as given. Token issuance and
// verification live outside this repository.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/guanacaste-labs/climatrack/internal/api/respond"
)

type contextKey struct{}

// Resolver turns a bearer credential into a subject id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, token string) (int64, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, token string) (int64, error) {
	return f(ctx, token)
}

// SubjectID returns the authenticated subject id stored by Middleware.
func SubjectID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}

// WithSubjectID stores a subject id in the context. Exposed for handler
// tests, which bypass the middleware.
func WithSubjectID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware authenticates requests: it requires an "Authorization: Bearer"
// header, resolves the token through the injected resolver, and stores the
// resulting subject id in the request context.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respond.WriteError(w, http.StatusUnauthorized, "TOKEN_MISSING", "Token is missing")
				return
			}
			subjectID, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Token is invalid")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubjectID(r.Context(), subjectID)))
		})
	}
}

// SubjectTokenResolver treats the bearer token as the subject id itself.
// Used for local development until the identity service client is wired in;
// deployments front this API with a gateway that verifies the token and
// rewrites it to the resolved subject.
func SubjectTokenResolver() Resolver {
	return ResolverFunc(func(ctx context.Context, token string) (int64, error) {
		return strconv.ParseInt(token, 10, 64)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
