package tokenprovider

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/credentials"
)

// ResourceOwnerPasswordCredentialsGrantProvider provides tokens via the
// Resource Owner Password Credentials grant (RFC 6749 §4.3).
//
// It delegates the actual HTTP exchange to golang.org/x/oauth2, which
// already implements the Basic-auth-plus-form-body wire format this
// grant requires; this provider's job is fetching fresh credentials on
// every call (the upstream library caches neither) and classifying the
// result into the AccessTokenProviderError taxonomy.
type ResourceOwnerPasswordCredentialsGrantProvider struct {
	endpointURL string
	httpClient  *http.Client
	credentials credentials.Provider
}

// NewResourceOwnerPasswordCredentialsGrantProvider builds a provider for
// the given token endpoint and optional realm, sourcing client and owner
// credentials from the given credentials.Provider.
func NewResourceOwnerPasswordCredentialsGrantProvider(
	endpointURL string,
	realm string,
	credentialsProvider credentials.Provider,
) *ResourceOwnerPasswordCredentialsGrantProvider {
	full := endpointURL
	if realm != "" {
		full += "?realm=" + realm
	}
	return &ResourceOwnerPasswordCredentialsGrantProvider{
		endpointURL: full,
		httpClient:  http.DefaultClient,
		credentials: credentialsProvider,
	}
}

// FromEnvWithCredentialsProvider builds a provider using
// TOKKIT_AUTHORIZATION_SERVER_URL (required) and
// TOKKIT_AUTHORIZATION_SERVER_REALM (optional).
func FromEnvWithCredentialsProvider(credentialsProvider credentials.Provider) (*ResourceOwnerPasswordCredentialsGrantProvider, error) {
	endpoint, ok := os.LookupEnv("TOKKIT_AUTHORIZATION_SERVER_URL")
	if !ok {
		return nil, Other("'TOKKIT_AUTHORIZATION_SERVER_URL' not found")
	}
	realm := os.Getenv("TOKKIT_AUTHORIZATION_SERVER_REALM")
	return NewResourceOwnerPasswordCredentialsGrantProvider(endpoint, realm, credentialsProvider), nil
}

// RequestAccessToken implements AccessTokenProvider.
func (p *ResourceOwnerPasswordCredentialsGrantProvider) RequestAccessToken(
	ctx context.Context,
	scopes []tokkit.Scope,
) (AuthorizationServerResponse, error) {
	creds, err := p.credentials.Credentials()
	if err != nil {
		return AuthorizationServerResponse{}, Credentials(err)
	}

	scopeStrings := make([]string, len(scopes))
	for i, s := range scopes {
		scopeStrings[i] = string(s)
	}

	cfg := &oauth2.Config{
		ClientID:     creds.Client.ClientID,
		ClientSecret: creds.Client.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: p.endpointURL, AuthStyle: oauth2.AuthStyleInHeader},
		Scopes:       scopeStrings,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	log.WithField("endpoint", p.endpointURL).Debug("requesting access token via resource owner password credentials grant")

	tok, err := cfg.PasswordCredentialsToken(ctx, creds.Owner.Username, creds.Owner.Password)
	if err != nil {
		return AuthorizationServerResponse{}, classifyError(err)
	}

	var refreshToken *string
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		refreshToken = &rt
	}

	var expiresIn time.Duration
	if !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry)
	}

	return AuthorizationServerResponse{
		AccessToken:  tokkit.NewAccessToken(tok.AccessToken),
		ExpiresIn:    expiresIn,
		RefreshToken: refreshToken,
	}, nil
}

func classifyError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		switch {
		case status == http.StatusBadRequest:
			var desc, uri *string
			if rErr.ErrorDescription != "" {
				d := rErr.ErrorDescription
				desc = &d
			}
			if rErr.ErrorURI != "" {
				u := rErr.ErrorURI
				uri = &u
			}
			return BadAuthorizationRequest(AuthorizationRequestError{
				Error:            rErr.ErrorCode,
				ErrorDescription: desc,
				ErrorURI:         uri,
			})
		case status >= 400 && status < 500:
			return Client(rErr.Error())
		case status >= 500:
			return Server(rErr.Error())
		default:
			return Parse(rErr.Error())
		}
	}
	return Connection(err)
}
