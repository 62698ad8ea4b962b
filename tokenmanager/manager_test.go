package tokenmanager

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/tokenprovider"
)

type fakeID string

func (f fakeID) String() string { return string(f) }

// fakeProvider lets a test script an exact sequence of responses and
// errors, and counts how many times it was called.
type fakeProvider struct {
	calls     atomic.Int64
	responses []fakeResponse
}

type fakeResponse struct {
	token     string
	expiresIn time.Duration
	err       error
}

func (p *fakeProvider) RequestAccessToken(_ context.Context, _ []tokkit.Scope) (tokenprovider.AuthorizationServerResponse, error) {
	n := p.calls.Add(1) - 1
	var resp fakeResponse
	if int(n) < len(p.responses) {
		resp = p.responses[n]
	} else {
		resp = p.responses[len(p.responses)-1]
	}
	if resp.err != nil {
		return tokenprovider.AuthorizationServerResponse{}, resp.err
	}
	return tokenprovider.AuthorizationServerResponse{
		AccessToken: tokkit.NewAccessToken(resp.token),
		ExpiresIn:   resp.expiresIn,
	}, nil
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestColdStartServesTokenOnceInitialized(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "abc", expiresIn: time.Hour}}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := StartAndWait([]ManagedTokenGroup[fakeID]{group}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	tok, err := mgr.Reader().GetAccessToken("t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Secret() != "abc" {
		t.Fatalf("expected token 'abc', got %q", tok.Secret())
	}
}

func TestUnregisteredIdentifierReturnsNoTokenError(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "abc", expiresIn: time.Hour}}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := StartAndWait([]ManagedTokenGroup[fakeID]{group}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	_, err = mgr.Reader().GetAccessToken("nope")
	if !tokkit.IsNoToken(err) {
		t.Fatalf("expected a NoToken error, got %v", err)
	}
}

func TestDuplicateTokenIDRejected(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "abc", expiresIn: time.Hour}}}
	groupA, _ := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("dup").Build()
	groupB, _ := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("dup").Build()

	_, err := Start([]ManagedTokenGroup[fakeID]{groupA, groupB})
	if err == nil {
		t.Fatal("expected an error for a duplicate token id")
	}
}

func TestTransientFailureKeepsPreviousTokenValid(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{token: "first", expiresIn: time.Hour},
		{err: tokenprovider.Server("boom")},
	}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).
		WithToken("t1").
		WithRefreshThreshold(0.0001).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := StartAndWait([]ManagedTokenGroup[fakeID]{group}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	waitUntil(t, 2*time.Second, func() bool { return provider.calls.Load() >= 2 })

	tok, err := mgr.Reader().GetAccessToken("t1")
	if err != nil {
		t.Fatalf("expected the previous token to still be served, got error: %v", err)
	}
	if tok.Secret() != "first" {
		t.Fatalf("expected the original token to survive a transient failure, got %q", tok.Secret())
	}
}

func TestErrorDuringInitializationSurfacesProviderError(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{err: tokenprovider.Client("bad request")}}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := Start([]ManagedTokenGroup[fakeID]{group})
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	waitUntil(t, 2*time.Second, func() bool {
		_, err := mgr.Reader().GetAccessToken("t1")
		return err != nil && !tokkit.IsNotInitialized(err)
	})

	_, err = mgr.Reader().GetAccessToken("t1")
	if !tokkit.IsAccessTokenProviderError(err) {
		t.Fatalf("expected an access token provider error, got %v", err)
	}
}

func TestForceRefreshEnqueuesAndUpdatesToken(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{token: "v1", expiresIn: time.Hour},
		{token: "v2", expiresIn: time.Hour},
	}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := StartAndWait([]ManagedTokenGroup[fakeID]{group}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	mgr.Reader().Refresh("t1")

	waitUntil(t, time.Second, func() bool {
		tok, err := mgr.Reader().GetAccessToken("t1")
		return err == nil && tok.Secret() == "v2"
	})
}

func TestStatusesReportsRegisteredTokens(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "abc", expiresIn: time.Hour}}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	mgr, err := StartAndWait([]ManagedTokenGroup[fakeID]{group}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	statuses := mgr.Statuses()
	if len(statuses) != 1 || statuses[0].TokenID != "t1" || !statuses[0].HasToken {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}

	if !mgr.RefreshByString("t1") {
		t.Fatal("expected RefreshByString to find the registered token")
	}
	if mgr.RefreshByString("missing") {
		t.Fatal("expected RefreshByString to report false for an unregistered id")
	}
}

func TestManagedTokenGroupBuilderRequiresProviderAndTokens(t *testing.T) {
	if _, err := NewManagedTokenGroupBuilder[fakeID](nil).WithToken("t1").Build(); err == nil {
		t.Fatal("expected an error for a nil provider")
	}
	if _, err := NewManagedTokenGroupBuilder[fakeID](&fakeProvider{}).Build(); err == nil {
		t.Fatal("expected an error for a group with no tokens")
	}
}

func TestWithWarningThresholdSetsWarningNotRefresh(t *testing.T) {
	provider := &fakeProvider{}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).
		WithToken("t1").
		WithWarningThreshold(0.5).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if group.WarningThreshold != 0.5 {
		t.Fatalf("expected warning threshold 0.5, got %v", group.WarningThreshold)
	}
	if group.RefreshThreshold != DefaultRefreshThreshold {
		t.Fatalf("WithWarningThreshold must not change the refresh threshold, got %v", group.RefreshThreshold)
	}
}

func TestStartAndWaitTimesOutWhenProviderNeverSucceeds(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{err: fmt.Errorf("always fails")}}}
	group, err := NewManagedTokenGroupBuilder[fakeID](provider).WithToken("t1").Build()
	if err != nil {
		t.Fatal(err)
	}

	_, err = StartAndWait([]ManagedTokenGroup[fakeID]{group}, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
