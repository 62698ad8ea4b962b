// Package tokkit is a client-side OAuth2 toolkit: a managed access-token
// cache with background refresh, and a bounded-retry token introspection
// client. See the tokenmanager and introspection packages for the two
// entry points.
package tokkit

import "fmt"

// AccessToken is an opaque bearer credential. String and GoString always
// redact the secret so tokens never end up in logs by accident.
type AccessToken struct {
	value string
}

// NewAccessToken wraps a raw token value.
func NewAccessToken(value string) AccessToken {
	return AccessToken{value: value}
}

// Secret returns the raw token value for use in an Authorization header.
func (t AccessToken) Secret() string {
	return t.value
}

// String implements fmt.Stringer and redacts the token value.
func (t AccessToken) String() string {
	return "AccessToken(<redacted>)"
}

// GoString implements fmt.GoStringer and redacts the token value.
func (t AccessToken) GoString() string {
	return t.String()
}

// Scope is a single OAuth2 authorization scope.
type Scope string

// JoinScopes renders scopes as the space-separated sequence used on the
// wire, preserving the given order.
func JoinScopes(scopes []Scope) string {
	s := ""
	for i, sc := range scopes {
		if i > 0 {
			s += " "
		}
		s += string(sc)
	}
	return s
}

// SplitScopes splits a space-separated scope string, discarding empty
// tokens produced by repeated spaces. Only the space character separates
// scopes; tabs and newlines are kept as part of a scope.
func SplitScopes(s string) []Scope {
	var scopes []Scope
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			scopes = append(scopes, Scope(s[start:i]))
			start = -1
		}
	}
	return scopes
}

// UserID uniquely identifies the owner of a resource, as reported by an
// introspection endpoint.
type UserID string

func (u UserID) String() string { return string(u) }

// TokenInfo is the normalized result of introspecting an access token.
type TokenInfo struct {
	Active           bool
	UserID           *UserID
	Scopes           []Scope
	ExpiresInSeconds uint64
}

// AuthenticatedUser is derived from a TokenInfo that carries a user id.
type AuthenticatedUser struct {
	UserID UserID
	Scopes []Scope
}

// HasScope reports whether the user has been granted the given scope.
func (u AuthenticatedUser) HasScope(scope Scope) bool {
	for _, s := range u.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasScopes reports whether the user has been granted all given scopes.
func (u AuthenticatedUser) HasScopes(scopes []Scope) bool {
	for _, s := range scopes {
		if !u.HasScope(s) {
			return false
		}
	}
	return true
}

// MustHaveScope returns an error if the user lacks the given scope.
func (u AuthenticatedUser) MustHaveScope(scope Scope) error {
	if u.HasScope(scope) {
		return nil
	}
	return fmt.Errorf("user %q does not have required scope %q", u.UserID, scope)
}

// AuthenticatedUserFrom derives an AuthenticatedUser from a TokenInfo.
// It fails if the token info carries no user id.
func AuthenticatedUserFrom(info TokenInfo) (AuthenticatedUser, error) {
	if info.UserID == nil {
		return AuthenticatedUser{}, fmt.Errorf("tokkit: user id missing in token info")
	}
	return AuthenticatedUser{UserID: *info.UserID, Scopes: info.Scopes}, nil
}
