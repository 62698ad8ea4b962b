// Package tokenmanager implements the managed access-token cache: a
// scheduler/updater worker pair that keeps a set of named tokens fresh
// in the background, and a Reader handle that serves cached tokens to
// any number of callers in O(1) without ever touching the network.
package tokenmanager

import (
	"fmt"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/tokenprovider"
)

// Identifier is the constraint a caller-chosen token key must satisfy:
// equality, display-as-string, and safety to share across goroutines.
// Go's comparable cannot express "total order" directly; this package
// gets a deterministic total order instead by iterating the token map
// in registration order, recorded separately from the O(1) lookup index
// (see DESIGN.md).
type Identifier interface {
	comparable
	fmt.Stringer
}

// ManagedToken is an immutable request for a cached, auto-refreshed
// access token under a given identifier and scope set.
type ManagedToken[T Identifier] struct {
	TokenID T
	Scopes  []tokkit.Scope
}

// DefaultRefreshThreshold is the fraction of expires_in after which a
// proactive refresh is scheduled.
const DefaultRefreshThreshold = 0.75

// DefaultWarningThreshold is the fraction of expires_in after which a
// near-expiry warning is emitted to observers.
const DefaultWarningThreshold = 0.85

// ManagedTokenGroup groups tokens that share one authorization-server
// provider and refresh/warning thresholds.
type ManagedTokenGroup[T Identifier] struct {
	Provider         tokenprovider.AccessTokenProvider
	ManagedTokens    []ManagedToken[T]
	RefreshThreshold float64
	WarningThreshold float64
}

// ManagedTokenGroupBuilder builds a ManagedTokenGroup incrementally.
type ManagedTokenGroupBuilder[T Identifier] struct {
	provider         tokenprovider.AccessTokenProvider
	tokens           []ManagedToken[T]
	refreshThreshold float64
	warningThreshold float64
}

// NewManagedTokenGroupBuilder starts a builder for the given provider
// with the default thresholds.
func NewManagedTokenGroupBuilder[T Identifier](provider tokenprovider.AccessTokenProvider) *ManagedTokenGroupBuilder[T] {
	return &ManagedTokenGroupBuilder[T]{
		provider:         provider,
		refreshThreshold: DefaultRefreshThreshold,
		warningThreshold: DefaultWarningThreshold,
	}
}

// WithToken registers a managed token with this group.
func (b *ManagedTokenGroupBuilder[T]) WithToken(tokenID T, scopes ...tokkit.Scope) *ManagedTokenGroupBuilder[T] {
	b.tokens = append(b.tokens, ManagedToken[T]{TokenID: tokenID, Scopes: scopes})
	return b
}

// WithRefreshThreshold overrides the refresh threshold.
func (b *ManagedTokenGroupBuilder[T]) WithRefreshThreshold(threshold float64) *ManagedTokenGroupBuilder[T] {
	b.refreshThreshold = threshold
	return b
}

// WithWarningThreshold overrides the warning threshold. Unlike one
// snapshot of the original source this is ported from, this setter
// assigns the warning threshold, not the refresh threshold.
func (b *ManagedTokenGroupBuilder[T]) WithWarningThreshold(threshold float64) *ManagedTokenGroupBuilder[T] {
	b.warningThreshold = threshold
	return b
}

// Build finalizes the group.
func (b *ManagedTokenGroupBuilder[T]) Build() (ManagedTokenGroup[T], error) {
	if b.provider == nil {
		return ManagedTokenGroup[T]{}, fmt.Errorf("tokenmanager: group has no provider")
	}
	if len(b.tokens) == 0 {
		return ManagedTokenGroup[T]{}, fmt.Errorf("tokenmanager: group has no managed tokens")
	}
	return ManagedTokenGroup[T]{
		Provider:         b.provider,
		ManagedTokens:    b.tokens,
		RefreshThreshold: b.refreshThreshold,
		WarningThreshold: b.warningThreshold,
	}, nil
}

// State is a token row's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ok
	OkPending
	Error
	ErrorPending
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Ok:
		return "Ok"
	case OkPending:
		return "OkPending"
	case Error:
		return "Error"
	case ErrorPending:
		return "ErrorPending"
	default:
		return "Unknown"
	}
}

// IsRefreshPending reports whether a refresh command for this row's
// state is already outstanding in the command channel.
func (s State) IsRefreshPending() bool {
	return s == Initializing || s == OkPending || s == ErrorPending
}

// IsUninitializedOrInitializing reports whether no refresh has ever
// completed for this row, in which case stale-command rejection does
// not apply.
func (s State) IsUninitializedOrInitializing() bool {
	return s == Uninitialized || s == Initializing
}
