package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/gate"
	"github.com/sallegelias/metaverso-erp/httpx"
)

// AuthGate is the application's authorization checkpoint. Roles are read
// from the users table, optionally shared through Redis, and cached in
// process.
type AuthGate struct {
	Gate          *gate.Gate[uint]
	CacheResolver *gate.CachedResolver[uint]
	Roles         gate.RoleTable
}

// NewAuthGate wires the resolver chain. rdb may be nil.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration, rdb *redis.Client, log *zap.Logger) *AuthGate {
	if log == nil {
		log = zap.NewNop()
	}
	roles := Roles()

	var resolver gate.ProfileResolver[uint] = NewDBRoleResolver(db, roles)
	if rdb != nil {
		rr := gate.NewRedisResolver[uint](resolver, rdb, roles, cacheTTL)
		rr.OnError = func(op string, err error) {
			log.Warn("role cache unavailable", zap.String("op", op), zap.Error(err))
		}
		resolver = rr
	}
	cached := gate.NewCachedResolver[uint](resolver, cacheTTL)

	return &AuthGate{
		Gate:          gate.New[uint](cached),
		CacheResolver: cached,
		Roles:         roles,
	}
}

// Role returns the role name of the signed-in user, or auth.RoleAnonymous.
func (ag *AuthGate) Role(ctx context.Context) string {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return auth.RoleAnonymous
	}
	p, err := ag.Gate.Profile(ctx, userID)
	if err != nil || p == nil {
		return auth.RoleAnonymous
	}
	return p.Name()
}

// Authorize returns gate.ErrUnauthorized unless the signed-in user may
// perform action on resourceType.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType)
}

// Can is Authorize as a bool.
func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string) bool {
	return ag.Authorize(ctx, action, resourceType) == nil
}

// IsAdmin reports whether the signed-in user holds "*:*".
func (ag *AuthGate) IsAdmin(ctx context.Context) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.IsSuperAdmin(ctx, userID)
}

// InvalidateUser drops the cached role of one user.
func (ag *AuthGate) InvalidateUser(userID uint) {
	ag.CacheResolver.Invalidate(userID)
}

// InvalidateAll clears the in-process cache.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// AttachRole resolves the user's role once per request and stores it in
// the context for services and templates.
func (ag *AuthGate) AttachRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithRole(r.Context(), ag.Role(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission blocks requests whose user lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.Can(r.Context(), action, resourceType) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets "*:*" holders through.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				if httpx.WantsJSON(r) {
					httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if !ag.IsAdmin(r.Context()) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}
