package authmw

import (
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/utils"
)

type KeycloakAuth struct {
	Issuer   string // e.g. http://localhost:8080/realms/myrealm
	Audience string // usually the client id; empty skips the aud check
	ClientID string // for client roles under resource_access[ClientID].roles

	Keyfunc jwt.Keyfunc
	// optional clock skew
	Leeway time.Duration
}

// Build once at startup (don't fetch JWKS on every request)
func NewKeycloakAuth(jwksURL, issuer, audience, clientID string) (*KeycloakAuth, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute * 5,
		RefreshTimeout:   time.Second * 10,
	})
	if err != nil {
		return nil, err
	}

	return &KeycloakAuth{
		Issuer:   issuer,
		Audience: audience,
		ClientID: clientID,
		Keyfunc:  jwks.Keyfunc,
		Leeway:   30 * time.Second,
	}, nil
}

type KCClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	Firstname         string `json:"given_name"`
	Lastname          string `json:"family_name"`

	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`

	ResourceAccess map[string]struct {
		Roles []string `json:"roles"`
	} `json:"resource_access"`
}

// DisplayName prefers the full name, then the given/family names, then the username.
func (c *KCClaims) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Firstname != "" || c.Lastname != "":
		return utils.JoinNonEmpty(" ", c.Firstname, c.Lastname)
	default:
		return c.PreferredUsername
	}
}

// Verify checks signature, issuer, audience and expiry of an RS256 access token.
func (a *KeycloakAuth) Verify(tokenStr string) (*KCClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(a.Issuer),
		jwt.WithLeeway(a.Leeway),
		jwt.WithValidMethods([]string{"RS256"}),
	}
	if a.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.Audience))
	}

	claims := &KCClaims{}
	if _, err := jwt.ParseWithClaims(tokenStr, claims, a.Keyfunc, opts...); err != nil {
		return nil, err
	}

	return claims, nil
}

// Roles merges realm roles with the client roles of a.ClientID.
func (a *KeycloakAuth) Roles(claims *KCClaims) []string {
	out := make([]string, 0, 16)

	out = append(out, claims.RealmAccess.Roles...)
	if a.ClientID != "" && claims.ResourceAccess != nil {
		if ra, ok := claims.ResourceAccess[a.ClientID]; ok {
			out = append(out, ra.Roles...)
		}
	}

	return utils.Uniq(out)
}

// RoleFor maps Keycloak roles onto a local role for first-time provisioning.
func RoleFor(roles []string) access.Role {
	switch {
	case slices.Contains(roles, string(access.RoleAdmin)):
		return access.RoleAdmin
	case slices.Contains(roles, string(access.RoleManager)):
		return access.RoleManager
	default:
		return access.RoleUser
	}
}
