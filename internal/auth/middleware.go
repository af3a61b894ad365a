package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware resolves the caller from a bearer token or, when AccessCookie is
// set, from that cookie.
type Middleware struct {
	Tokens       *Tokens
	AccessCookie string
}

// Authenticate attaches the caller identity when a valid token is present and
// otherwise serves the request anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, err := m.identify(r); err == nil {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless the request carries a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.identify(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole answers 403 for authenticated callers without role. Mount it
// behind RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch _, ok := common.UserID(r.Context()); {
			case !ok:
				writeAuthError(w, errNoToken)
			case !common.HasRole(r.Context(), role):
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}

func (m Middleware) identify(r *http.Request) (context.Context, error) {
	if m.Tokens == nil {
		return nil, errors.New("auth: tokens not configured")
	}
	raw := m.rawToken(r)
	if raw == "" {
		return nil, errNoToken
	}
	claims, err := m.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	ctx := common.WithRoles(common.WithUserID(r.Context(), claims.Subject), claims.Roles)
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", claims.Subject)
	})
	return ctx, nil
}

func (m Middleware) rawToken(r *http.Request) string {
	if scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(value)
	}
	if m.AccessCookie == "" {
		return ""
	}
	cookie, err := r.Cookie(m.AccessCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
