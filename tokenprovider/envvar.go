package tokenprovider

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zalando-incubator/tokkit"
)

// EnvVarProvider reads a literal access token from a named environment
// variable on every call. It is meant for local development and tests
// where standing up a real authorization server is overkill; scopes are
// accepted but not enforced.
type EnvVarProvider struct {
	VarName   string
	ExpiresIn time.Duration
}

// NewEnvVarProvider builds a provider reading VarName with a fixed
// lifetime.
func NewEnvVarProvider(varName string, expiresIn time.Duration) *EnvVarProvider {
	return &EnvVarProvider{VarName: varName, ExpiresIn: expiresIn}
}

// RequestAccessToken implements AccessTokenProvider.
func (p *EnvVarProvider) RequestAccessToken(_ context.Context, _ []tokkit.Scope) (AuthorizationServerResponse, error) {
	value, ok := os.LookupEnv(p.VarName)
	if !ok {
		return AuthorizationServerResponse{}, Other(fmt.Sprintf("environment variable %q not set", p.VarName))
	}
	return AuthorizationServerResponse{
		AccessToken: tokkit.NewAccessToken(value),
		ExpiresIn:   p.ExpiresIn,
	}, nil
}
