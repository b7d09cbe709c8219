package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var viewerCtxKey = &contextKey{"viewer"}

// TokenVerifier est implémenté par *Verifier
type TokenVerifier interface {
	Verify(token string) (Viewer, error)
}

// Middleware exige un header "Authorization: Bearer <token>" valide.
// Toutes les routes du fil dépendent du lecteur (likedByMe, snapshot).
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				http.Error(w, "Missing or invalid token format", http.StatusUnauthorized)
				return
			}

			viewer, err := verifier.Verify(tokenStr)
			if err != nil {
				slog.Debug("Token rejected", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey, viewer)
}

// ForContext récupère le lecteur injecté par le middleware
func ForContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey).(Viewer)
	return v
}
