package tokenmanager

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/clock"
	"github.com/zalando-incubator/tokkit/tokenprovider"
)

// defaultUpdaterConcurrency bounds how many refreshes the updater runs
// at once. Commands for the same row still serialize through the row's
// own mutex; this only lets different rows refresh in parallel.
const defaultUpdaterConcurrency = 4

type updater[T Identifier] struct {
	tm  *tokenMap[T]
	clk clock.Clock
	cmd <-chan command
	sem *semaphore.Weighted
}

func newUpdater[T Identifier](tm *tokenMap[T], clk clock.Clock, cmd <-chan command, concurrency int64) *updater[T] {
	if concurrency <= 0 {
		concurrency = defaultUpdaterConcurrency
	}
	return &updater[T]{tm: tm, clk: clk, cmd: cmd, sem: semaphore.NewWeighted(concurrency)}
}

func (u *updater[T]) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-u.cmd:
			if !ok {
				return
			}
			if err := u.sem.Acquire(ctx, 1); err != nil {
				return
			}
			inFlight.Add(1)
			go func(cmd command) {
				defer inFlight.Done()
				defer u.sem.Release(1)
				u.process(ctx, cmd)
			}(cmd)
		}
	}
}

func (u *updater[T]) process(ctx context.Context, cmd command) {
	r := u.tm.rows[cmd.idx]
	s := u.tm.slots[cmd.idx]

	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd.ts <= r.lastTouched && !r.state.IsUninitializedOrInitializing() {
		log.WithFields(log.Fields{
			"token_id": r.tokenID,
			"kind":     cmd.kind.String(),
		}).Debug("tokenmanager: stale command ignored, a newer refresh already landed")
		return
	}

	log.WithFields(log.Fields{
		"token_id": r.tokenID,
		"kind":     cmd.kind.String(),
	}).Debug("tokenmanager: refreshing token")

	resp, err := callProviderWithBackoff(ctx, r.provider, r.scopes)
	now := u.clk.Now()

	if err == nil {
		applySuccess(r, s, resp, now)
		return
	}

	applyFailure(r, s, err, now)
	if r.state == Error {
		log.WithFields(log.Fields{"token_id": r.tokenID, "error": err.Error()}).
			Error("tokenmanager: refresh failed, readers now see the provider error")
	}
}

// callProviderWithBackoff wraps a provider call in exponential backoff,
// stopping immediately on a terminal AccessTokenProviderError.
func callProviderWithBackoff(ctx context.Context, provider tokenprovider.AccessTokenProvider, scopes []tokkit.Scope) (tokenprovider.AuthorizationServerResponse, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 200 * time.Millisecond
	b.Multiplier = 1.5

	var resp tokenprovider.AuthorizationServerResponse
	operation := func() error {
		r, err := provider.RequestAccessToken(ctx, scopes)
		if err != nil {
			if pErr, ok := err.(*tokenprovider.AccessTokenProviderError); ok && !pErr.Kind.Transient() {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return resp, err
}

func applySuccess(r *row, s *slot, resp tokenprovider.AuthorizationServerResponse, now clock.Millis) {
	s.setToken(resp.AccessToken)

	expiresIn := clock.Millis(resp.ExpiresIn.Milliseconds())
	r.lastTouched = now
	r.expiresAt = now.Add(expiresIn)
	r.refreshAt = now.Add(clock.Millis(float64(expiresIn) * r.refreshThreshold))
	r.warnAt = now.Add(clock.Millis(float64(expiresIn) * r.warningThreshold))
	r.scheduledFor = r.refreshAt
	r.state = Ok
}

func applyFailure(r *row, s *slot, err error, now clock.Millis) {
	switch {
	case r.state.IsUninitializedOrInitializing():
		s.setError(tokkit.NewAccessTokenProviderError(r.tokenID, err.Error()))
		r.lastTouched, r.expiresAt, r.refreshAt, r.warnAt = now, now, now, now
		r.scheduledFor = now.Add(100)
		r.state = Error

	case r.state == Ok || r.state == OkPending:
		if now < r.expiresAt {
			// Error-during-valid-window gate: the previous token is
			// still valid, so a transient failure must not clobber it.
			log.WithFields(log.Fields{"token_id": r.tokenID, "error": err.Error()}).
				Warn("tokenmanager: refresh failed but previous token is still valid, keeping it")
			r.state = Ok
			return
		}
		s.setError(tokkit.NewAccessTokenProviderError(r.tokenID, err.Error()))
		r.lastTouched, r.expiresAt, r.refreshAt, r.warnAt = now, now, now, now
		r.scheduledFor = now.Add(1000)
		r.state = Error

	default: // Error, ErrorPending
		s.setError(tokkit.NewAccessTokenProviderError(r.tokenID, err.Error()))
		r.scheduledFor = now.Add(5000)
		r.state = Error
	}
}
