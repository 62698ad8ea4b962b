package introspection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/metrics"
)

// Client introspects access tokens remotely and returns the result as a
// TokenInfo. It does not retry on its own beyond what Introspect's
// caller requests via budget; construction precomputes the URL
// prefixes and probes them once so malformed endpoints fail fast.
type Client struct {
	urlPrefix         string
	fallbackURLPrefix string
	httpClient        *http.Client
	parser            Parser
	metrics           metrics.Collector
}

// Builder assembles a Client. Parser and Endpoint are mandatory.
type Builder struct {
	parser           Parser
	endpoint         string
	queryParameter   string
	fallbackEndpoint string
	httpClient       *http.Client
	metrics          metrics.Collector
}

// NewBuilder starts a Builder with the given mandatory Parser.
func NewBuilder(parser Parser) *Builder {
	return &Builder{parser: parser}
}

// WithEndpoint sets the introspection endpoint. Mandatory.
func (b *Builder) WithEndpoint(endpoint string) *Builder {
	b.endpoint = endpoint
	return b
}

// WithFallbackEndpoint sets a secondary endpoint tried once when the
// primary fails with anything other than a client error.
func (b *Builder) WithFallbackEndpoint(endpoint string) *Builder {
	b.fallbackEndpoint = endpoint
	return b
}

// WithQueryParameter puts the access token into this query parameter
// instead of appending it to the URL path.
func (b *Builder) WithQueryParameter(param string) *Builder {
	b.queryParameter = param
	return b
}

// WithHTTPClient overrides the HTTP client used for requests.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithMetrics registers a metrics.Collector; defaults to metrics.NoOp.
func (b *Builder) WithMetrics(m metrics.Collector) *Builder {
	b.metrics = m
	return b
}

// Build finalizes the Client, failing if a mandatory field is missing
// or an endpoint cannot be assembled into a valid URL.
func (b *Builder) Build() (*Client, error) {
	if b.parser == nil {
		return nil, fmt.Errorf("introspection: no parser configured")
	}
	if b.endpoint == "" {
		return nil, fmt.Errorf("introspection: no endpoint configured")
	}

	prefix, err := assembleURLPrefix(b.endpoint, b.queryParameter)
	if err != nil {
		return nil, err
	}

	var fallbackPrefix string
	if b.fallbackEndpoint != "" {
		fallbackPrefix, err = assembleURLPrefix(b.fallbackEndpoint, b.queryParameter)
		if err != nil {
			return nil, err
		}
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	m := b.metrics
	if m == nil {
		m = metrics.NoOp
	}

	return &Client{
		urlPrefix:         prefix,
		fallbackURLPrefix: fallbackPrefix,
		httpClient:        httpClient,
		parser:            b.parser,
		metrics:           m,
	}, nil
}

// PlanB starts a Builder preconfigured for a Plan B token info service.
// https://planb.readthedocs.io/en/latest/intro.html#token-info
func PlanB(endpoint string) *Builder {
	return NewBuilder(PlanBParser).WithEndpoint(endpoint).WithQueryParameter("access_token")
}

// GoogleV3 starts a Builder preconfigured for Google's OAuth2 v3
// tokeninfo endpoint.
func GoogleV3() *Builder {
	return NewBuilder(GoogleV3Parser).
		WithEndpoint("https://www.googleapis.com/oauth2/v3/tokeninfo").
		WithQueryParameter("access_token")
}

// Amazon starts a Builder preconfigured for Amazon's Login with Amazon
// tokeninfo endpoint.
func Amazon() *Builder {
	return NewBuilder(AmazonParser).
		WithEndpoint("https://api.amazon.com/auth/O2/tokeninfo").
		WithQueryParameter("access_token")
}

func assembleURLPrefix(endpoint, queryParameter string) (string, error) {
	prefix := endpoint
	if queryParameter != "" {
		prefix = strings.TrimSuffix(prefix, "/")
		prefix += "?" + queryParameter + "="
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if _, err := url.Parse(prefix + "test_token"); err != nil {
		return "", UrlError(fmt.Errorf("invalid introspection endpoint %q: %w", endpoint, err))
	}
	return prefix, nil
}

// Introspect calls the introspection endpoint for token with the given
// retry budget. A zero budget returns BudgetExceeded without making any
// HTTP call.
func (c *Client) Introspect(ctx context.Context, token tokkit.AccessToken, budget time.Duration) (tokkit.TokenInfo, error) {
	start := time.Now()
	c.metrics.IncomingIntrospectionRequest()
	c.metrics.IntrospectionRequest(start)

	info, err := c.introspectWithRetry(ctx, token, budget)

	if err != nil {
		c.metrics.IntrospectionRequestFailed(start)
	} else {
		c.metrics.IntrospectionRequestSuccessful(start)
	}
	return info, err
}

func (c *Client) introspectWithRetry(ctx context.Context, token tokkit.AccessToken, budget time.Duration) (tokkit.TokenInfo, error) {
	if budget <= 0 {
		return tokkit.TokenInfo{}, BudgetExceeded
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxElapsedTime = budget

	var info tokkit.TokenInfo
	operation := func() error {
		var err error
		info, err = c.getWithFallback(ctx, token)
		if err == nil {
			return nil
		}
		if ie, ok := err.(*Error); ok && !ie.Kind.Retriable() {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err != nil {
		err = unwrapPermanent(err)
		if ie, ok := err.(*Error); ok && ie.Kind.Retriable() {
			// The budget ran out while the last failure was still retriable.
			return tokkit.TokenInfo{}, BudgetExceeded
		}
		return tokkit.TokenInfo{}, err
	}
	return info, nil
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*backoff.PermanentError); ok {
		return pe.Err
	}
	return err
}

// getWithFallback performs one primary attempt, and, if it fails with a
// fallback-eligible error and a fallback endpoint is configured, at most
// one fallback attempt.
func (c *Client) getWithFallback(ctx context.Context, token tokkit.AccessToken) (tokkit.TokenInfo, error) {
	start := time.Now()
	info, err := c.getRemote(ctx, c.urlPrefix, token)
	if err == nil {
		c.metrics.IntrospectionServiceCalledSuccessfully(start)
		c.metrics.IntrospectionServiceCalled(start)
		return info, nil
	}
	c.metrics.IntrospectionServiceCalledAndFailed(start)
	c.metrics.IntrospectionServiceCalled(start)

	ie, ok := err.(*Error)
	if !ok || !ie.Kind.TriggersFallback() || c.fallbackURLPrefix == "" {
		return tokkit.TokenInfo{}, err
	}

	log.WithField("error", err.Error()).Warn("introspection: primary endpoint failed, trying fallback")
	return c.getRemote(ctx, c.fallbackURLPrefix, token)
}

func (c *Client) getRemote(ctx context.Context, urlPrefix string, token tokkit.AccessToken) (tokkit.TokenInfo, error) {
	fullURL := urlPrefix + url.QueryEscape(token.Secret())
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return tokkit.TokenInfo{}, UrlError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return tokkit.TokenInfo{}, UrlError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokkit.TokenInfo{}, Connection(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokkit.TokenInfo{}, Io(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		info, perr := c.parser.Parse(body)
		if perr != nil {
			return tokkit.TokenInfo{}, perr
		}
		return info, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return tokkit.TokenInfo{}, NotAuthenticated(fmt.Sprintf("the server refused the token: %s", body))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return tokkit.TokenInfo{}, ClientErr(resp.Status, string(body))
	case resp.StatusCode >= 500:
		return tokkit.TokenInfo{}, ServerErr(resp.Status, string(body))
	default:
		return tokkit.TokenInfo{}, Other(fmt.Sprintf("unexpected response (%s): %s", resp.Status, body))
	}
}
