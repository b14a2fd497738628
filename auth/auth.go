package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")
	roleCtxKey        = ctxKey("role")
)

// Roles known to the access gate.
const (
	RoleAdmin     = "admin"
	RoleAssistant = "assistant"
	RoleAnonymous = "anonymous"
)

// UserVerifier is an optional callback to validate that a session's user still exists.
// Set it during app bootstrap via SetUserVerifier. If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, uid uint) bool

var (
	verifier UserVerifier
	secret   string
)

// SetUserVerifier configures the global verifier used by RequireAuth.
func SetUserVerifier(v UserVerifier) { verifier = v }

// SetSecret overrides the signing key. An empty value restores the env/default lookup.
func SetSecret(s string) { secret = s }

// Secret returns the configured key, SESSION_SECRET, or a default dev value.
func Secret() string {
	if secret != "" {
		return secret
	}
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie with the user id.
func CreateSession(w http.ResponseWriter, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uidStr + "." + sign(uidStr),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(12 * time.Hour),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the user id.
func ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(uidStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok
}

// WithRole stores the resolved role in context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleCtxKey, role)
}

// RoleFromContext returns the resolved role, RoleAnonymous when none was attached.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleCtxKey).(string); ok && role != "" {
		return role
	}
	return RoleAnonymous
}

// IsAdmin reports whether the context carries the admin role.
func IsAdmin(ctx context.Context) bool {
	return RoleFromContext(ctx) == RoleAdmin
}

// Middleware attaches user id to request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := ParseSession(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"unauthorized"}`)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok || uid == 0 {
			unauthorized(w, r)
			return
		}
		if verifier != nil && !verifier(r.Context(), uid) {
			// Session refers to a user that no longer exists.
			ClearSession(w)
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
