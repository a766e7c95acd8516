package http

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type actorContextKey struct{}

func withActor(ctx context.Context, a core.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// actorFrom returns the identity stored by requireAuth.
func actorFrom(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(core.Actor)
	return a, ok
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(auth.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireAuth resolves the session cookie into an Actor. Each accepted
// request refreshes the cookie so the browser expiry slides with the server one.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		actor, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) && token != "" {
				s.clearSessionCookie(w)
			}
			writeError(w, r, err)
			return
		}

		s.setSessionCookie(w, token)

		ctx := withActor(r.Context(), actor)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(
			applog.FieldUserID, actor.UserID,
			applog.FieldRole, string(actor.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentActor is only called behind requireAuth.
func currentActor(r *http.Request) core.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   s.auth.CookieMaxAge(),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
