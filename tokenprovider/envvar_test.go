package tokenprovider

import (
	"context"
	"testing"
	"time"
)

func TestEnvVarProviderReturnsTokenFromEnv(t *testing.T) {
	t.Setenv("TOKKIT_TEST_TOKEN", "sekret")
	p := NewEnvVarProvider("TOKKIT_TEST_TOKEN", time.Hour)

	resp, err := p.RequestAccessToken(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken.Secret() != "sekret" {
		t.Fatalf("expected 'sekret', got %q", resp.AccessToken.Secret())
	}
	if resp.ExpiresIn != time.Hour {
		t.Fatalf("expected 1h expiry, got %s", resp.ExpiresIn)
	}
}

func TestEnvVarProviderErrorsWhenUnset(t *testing.T) {
	p := NewEnvVarProvider("TOKKIT_TEST_TOKEN_MISSING", time.Hour)
	if _, err := p.RequestAccessToken(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an unset environment variable")
	}
}
