package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"anoa.com/itdesk/internal/authz"
	"anoa.com/itdesk/internal/entity"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/pkg/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const identityKey = "identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	User      *entity.User
	SessionID string
}

func (i *Identity) Role() string {
	return i.User.Role
}

// CurrentIdentity returns the identity set by LoadIdentity, if any.
func CurrentIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok && identity != nil
}

// SetIdentity stores identity on the request. Used by LoadIdentity and tests.
func SetIdentity(c *gin.Context, identity *Identity) {
	c.Set(identityKey, identity)
}

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	sessions *session.Manager
	enforcer authz.Enforcer
	log      *slog.Logger
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, sessions *session.Manager, enforcer authz.Enforcer, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		sessions: sessions,
		enforcer: enforcer,
		log:      log.With("component", "auth_middleware"),
	}
}

// LoadIdentity resolves the session cookie into an Identity without
// rejecting anonymous requests. The user row is read on every request so
// role changes and deletions take effect immediately.
func (m *AuthMiddleware) LoadIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.sessions.Load(c)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				m.log.Warn("failed to resolve session", "error", err)
			}
			c.Next()
			return
		}

		user, err := m.userRepo.FindByID(c.Request.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				_ = m.sessions.End(c)
			} else {
				m.log.Error("failed to load session user", "user_id", sess.UserID, "error", err)
			}
			c.Next()
			return
		}

		SetIdentity(c, &Identity{User: user, SessionID: sess.ID})
		c.Next()
	}
}

// RequireAuth sends anonymous visitors to the login page.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			session.AddFlash(c, session.FlashWarning, "Please log in to access this page.")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAPIAuth is RequireAuth for JSON and websocket endpoints.
func (m *AuthMiddleware) RequireAPIAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Next()
	}
}

// RequirePermission lets the request through only when the caller's role
// may perform act on obj.
func (m *AuthMiddleware) RequirePermission(obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			session.AddFlash(c, session.FlashWarning, "Please log in to access this page.")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		allowed, err := m.enforcer.Allowed(identity.Role(), obj, act)
		if err != nil {
			m.log.Error("permission check failed", "role", identity.Role(), "obj", obj, "act", act, "error", err)
		}
		if !allowed {
			session.AddFlash(c, session.FlashError, "Super Admin access required.")
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAPIPermission is RequirePermission for JSON endpoints.
func (m *AuthMiddleware) RequireAPIPermission(obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		allowed, err := m.enforcer.Allowed(identity.Role(), obj, act)
		if err != nil {
			m.log.Error("permission check failed", "role", identity.Role(), "obj", obj, "act", act, "error", err)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "super admin access required"})
			return
		}
		c.Next()
	}
}
