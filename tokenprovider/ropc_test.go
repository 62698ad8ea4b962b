package tokenprovider

import (
	"errors"
	"net/http"
	"testing"

	"golang.org/x/oauth2"
)

func retrieveErrorWithStatus(status int) *oauth2.RetrieveError {
	return &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: status},
		ErrorCode: "invalid_grant",
	}
}

func TestClassifyErrorBadAuthorizationRequest(t *testing.T) {
	err := classifyError(retrieveErrorWithStatus(http.StatusBadRequest))
	pErr, ok := err.(*AccessTokenProviderError)
	if !ok {
		t.Fatalf("expected an AccessTokenProviderError, got %T", err)
	}
	if pErr.Kind != KindBadAuthorizationRequest {
		t.Fatalf("expected KindBadAuthorizationRequest, got %v", pErr.Kind)
	}
	if pErr.Kind.Transient() {
		t.Fatal("a bad authorization request must be terminal")
	}
}

func TestClassifyErrorOtherClientError(t *testing.T) {
	err := classifyError(retrieveErrorWithStatus(http.StatusForbidden))
	pErr := err.(*AccessTokenProviderError)
	if pErr.Kind != KindClient {
		t.Fatalf("expected KindClient for a 403, got %v", pErr.Kind)
	}
	if pErr.Kind.Transient() {
		t.Fatal("an other-4xx error must be terminal")
	}
}

func TestClassifyErrorServerError(t *testing.T) {
	err := classifyError(retrieveErrorWithStatus(http.StatusBadGateway))
	pErr := err.(*AccessTokenProviderError)
	if pErr.Kind != KindServer {
		t.Fatalf("expected KindServer for a 502, got %v", pErr.Kind)
	}
	if !pErr.Kind.Transient() {
		t.Fatal("a 5xx error must be transient")
	}
}

func TestClassifyErrorConnectionFailure(t *testing.T) {
	err := classifyError(errors.New("dial tcp: connection refused"))
	pErr, ok := err.(*AccessTokenProviderError)
	if !ok {
		t.Fatalf("expected an AccessTokenProviderError, got %T", err)
	}
	if pErr.Kind != KindConnection {
		t.Fatalf("expected KindConnection, got %v", pErr.Kind)
	}
	if !pErr.Kind.Transient() {
		t.Fatal("a connection failure must be transient")
	}
}

func TestClassifyErrorUnwrapsWrappedRetrieveError(t *testing.T) {
	wrapped := errors.Join(retrieveErrorWithStatus(http.StatusServiceUnavailable))
	err := classifyError(wrapped)
	pErr, ok := err.(*AccessTokenProviderError)
	if !ok {
		t.Fatalf("expected classifyError to unwrap to a RetrieveError, got %T", err)
	}
	if pErr.Kind != KindServer {
		t.Fatalf("expected KindServer, got %v", pErr.Kind)
	}
}
