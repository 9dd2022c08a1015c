package authmw

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/logging"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/respond"
)

const (
	CookieName = "token"

	ctxUser     = "auth.user"
	ctxIdentity = "auth.identity"
)

// UserLoader is the part of the store the middleware needs.
type UserLoader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByExternalID(ctx context.Context, subject string) (models.User, error)
}

// Authenticator resolves the caller of every protected request.
// KC is optional; when set, Keycloak access tokens are accepted too.
type Authenticator struct {
	Tokens *Tokens
	KC     *KeycloakAuth
	Users  UserLoader
}

func NewAuthenticator(tokens *Tokens, kc *KeycloakAuth, users UserLoader) *Authenticator {
	return &Authenticator{Tokens: tokens, KC: kc, Users: users}
}

// RequireAuth reloads the user on each request so deactivation and permission
// changes take effect immediately.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractAccessToken(c)
		if err != nil {
			respond.Abort(c, http.StatusUnauthorized, "not authorized, try login again")

			return
		}

		user, err := a.resolve(c.Request.Context(), tokenStr)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindStorage {
				respond.Fail(c, err)
				c.Abort()

				return
			}
			respond.Abort(c, http.StatusUnauthorized, "not authorized, try login again")

			return
		}

		if !user.IsActive {
			respond.Abort(c, http.StatusUnauthorized, "user account has been deactivated, contact the administrator")

			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxIdentity, user.Identity())
		c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), user.ID))

		c.Next()
	}
}

func (a *Authenticator) resolve(ctx context.Context, tokenStr string) (models.User, error) {
	if a.Tokens != nil {
		if subject, err := a.Tokens.Parse(tokenStr); err == nil {
			return a.Users.GetUser(ctx, subject)
		}
	}
	if a.KC != nil {
		claims, err := a.KC.Verify(tokenStr)
		if err != nil {
			return models.User{}, err
		}
		return a.Users.GetUserByExternalID(ctx, claims.Subject)
	}

	return models.User{}, errors.New("invalid token")
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !id.IsAdmin {
			respond.Abort(c, http.StatusForbidden, "not authorized as admin, try login as admin")

			return
		}

		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (access.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return access.Identity{}, false
	}
	id, ok := v.(access.Identity)

	return id, ok
}

func UserFrom(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)

	return u, ok
}

// WithIdentity stores an already resolved user, for tests and internal callers.
func WithIdentity(c *gin.Context, u models.User) {
	c.Set(ctxUser, u)
	c.Set(ctxIdentity, u.Identity())
}

func SetTokenCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", secure, true)
}

func ClearTokenCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}

// --- helpers ---

func extractAccessToken(c *gin.Context) (string, error) {
	// 1) Authorization: Bearer <token>
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		if tok := strings.TrimSpace(authz[7:]); tok != "" {
			return tok, nil
		}
	}

	// 2) session cookie set at login
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", errors.New("missing access token")
}
