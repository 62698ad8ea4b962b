package tokenmanager

import (
	"sync"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/clock"
	"github.com/zalando-incubator/tokkit/tokenprovider"
)

// row is the per-token mutable state owned by the scheduler and updater.
// Its mutex protects only the row; the paired slot has its own mutex.
// Workers always acquire the row lock before the slot lock.
type row struct {
	mu sync.Mutex

	tokenID          string // T.String(), for logging/errors only
	scopes           []tokkit.Scope
	refreshThreshold float64
	warningThreshold float64

	lastTouched        clock.Millis
	refreshAt          clock.Millis
	warnAt             clock.Millis
	expiresAt          clock.Millis
	scheduledFor       clock.Millis
	state              State
	lastNotificationAt *clock.Millis

	provider tokenprovider.AccessTokenProvider
}

func newRow(tokenID string, scopes []tokkit.Scope, refreshThreshold, warningThreshold float64, provider tokenprovider.AccessTokenProvider) *row {
	return &row{
		tokenID:          tokenID,
		scopes:           scopes,
		refreshThreshold: refreshThreshold,
		warningThreshold: warningThreshold,
		state:            Uninitialized,
		provider:         provider,
	}
}

// slotValue is the immutable value a result slot holds: either a token
// or an error, swapped atomically as a whole so readers never observe a
// torn value.
type slotValue struct {
	token tokkit.AccessToken
	err   error
}

// slot is the reader-visible result cell for one managed token.
type slot struct {
	mu    sync.Mutex
	value slotValue
}

func newSlot(tokenID string) *slot {
	return &slot{value: slotValue{err: tokkit.NewNotInitializedError(tokenID)}}
}

func (s *slot) get() slotValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *slot) setToken(tok tokkit.AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = slotValue{token: tok}
}

func (s *slot) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = slotValue{err: err}
}
