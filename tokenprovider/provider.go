// Package tokenprovider implements access-token providers: components that
// call an authorization server and return a fresh AccessToken plus its
// lifetime. The Resource Owner Password Credentials (RFC 6749 §4.3)
// variant is built on golang.org/x/oauth2; an environment-variable
// variant is provided for local development and tests.
package tokenprovider

import (
	"context"
	"time"

	"github.com/zalando-incubator/tokkit"
)

// AuthorizationServerResponse is what an AccessTokenProvider returns on
// success.
type AuthorizationServerResponse struct {
	AccessToken  tokkit.AccessToken
	ExpiresIn    time.Duration
	RefreshToken *string
}

// AccessTokenProvider calls an authorization server for an AccessToken
// with the given scopes.
type AccessTokenProvider interface {
	RequestAccessToken(ctx context.Context, scopes []tokkit.Scope) (AuthorizationServerResponse, error)
}
