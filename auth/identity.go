package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity describes the principal a token was issued to.
type Identity struct {
	// Principal is the subject of the token (user ID or username).
	Principal string

	// Roles are the roles granted to the principal, e.g. admin, librarian, member.
	Roles []string

	// Claims contains the raw claims from the token.
	Claims map[string]any

	// ExpiresAt is when the token expires. Zero means no expiry.
	ExpiresAt time.Time

	// IssuedAt is when the token was issued.
	IssuedAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the identity has expired at now.
func (id *Identity) ExpiredAt(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(id.ExpiresAt)
}

func identityFromClaims(claims jwt.MapClaims) *Identity {
	id := &Identity{Claims: make(map[string]any, len(claims))}
	for k, v := range claims {
		id.Claims[k] = v
	}

	if sub, err := claims.GetSubject(); err == nil {
		id.Principal = sub
	}
	if id.Principal == "" {
		if name, ok := claims["username"].(string); ok {
			id.Principal = name
		}
	}

	switch roles := claims["roles"].(type) {
	case []any:
		id.Roles = make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	case string:
		id.Roles = []string{roles}
	}
	if role, ok := claims["role"].(string); ok && !id.HasRole(role) {
		id.Roles = append(id.Roles, role)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id
}
