package tokenmanager

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/tokkit/clock"
)

// defaultNotificationInterval is the minimum time between two
// user-visible notifications for the same row.
const defaultNotificationInterval = clock.Millis(10_000)

// maxCycleSleep bounds how long the scheduler ever sleeps in one go, so
// it re-checks "is running" and outstanding-refresh state promptly.
const maxCycleSleep = 50 * time.Millisecond

// notifier is called by the scheduler when a row crosses into a
// user-visible warning state (error, expired, or past warn_at).
type notifier func(tokenID string, state State, reason string)

type scheduler[T Identifier] struct {
	tm                   *tokenMap[T]
	clk                  clock.Clock
	commands             chan<- command
	notificationInterval clock.Millis
	notify               notifier
}

func newScheduler[T Identifier](tm *tokenMap[T], clk clock.Clock, commands chan<- command, notify notifier) *scheduler[T] {
	if notify == nil {
		notify = func(string, State, string) {}
	}
	return &scheduler[T]{
		tm:                   tm,
		clk:                  clk,
		commands:             commands,
		notificationInterval: defaultNotificationInterval,
		notify:               notify,
	}
}

// run loops until ctx is done, emitting refresh commands for every row
// whose scheduled_for has come due, gated by the row's lifecycle state.
func (s *scheduler[T]) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := s.clk.Now()
		sleep := maxCycleSleep
		anyPending := false

		for idx, r := range s.tm.rows {
			r.mu.Lock()
			due := r.scheduledFor <= now

			if due {
				switch r.state {
				case Uninitialized:
					if s.emit(ctx, cmdScheduledRefresh, idx, now) {
						r.state = Initializing
					}
				case Ok:
					if s.emit(ctx, cmdScheduledRefresh, idx, now) {
						r.state = OkPending
					}
				case Error:
					if s.emit(ctx, cmdRefreshOnError, idx, now) {
						r.state = ErrorPending
					}
				}
			}

			if r.state.IsRefreshPending() {
				anyPending = true
			}

			s.evaluateNotifications(r, now)

			if remaining := r.scheduledFor.Sub(now); remaining > 0 {
				remainingDur := time.Duration(remaining) * time.Millisecond
				if remainingDur < sleep {
					sleep = remainingDur
				}
			}
			r.mu.Unlock()
		}

		if anyPending && sleep > maxCycleSleep {
			sleep = maxCycleSleep
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// emit sends a command, returning false (without updating row state) if
// the manager was shut down while the channel was full.
func (s *scheduler[T]) emit(ctx context.Context, kind commandKind, idx int, now clock.Millis) bool {
	select {
	case s.commands <- command{kind: kind, idx: idx, ts: now}:
		return true
	default:
	}

	log.WithFields(log.Fields{
		"token_id": s.tm.rows[idx].tokenID,
		"kind":     kind.String(),
	}).Warn("tokenmanager: command channel full, refresh will be delayed")

	select {
	case s.commands <- command{kind: kind, idx: idx, ts: now}:
		return true
	case <-ctx.Done():
		return false
	}
}

// evaluateNotifications emits at most one warning per cycle per row,
// rate-limited by notificationInterval.
func (s *scheduler[T]) evaluateNotifications(r *row, now clock.Millis) {
	if r.lastNotificationAt != nil && now.Sub(*r.lastNotificationAt) < s.notificationInterval {
		return
	}

	switch {
	case r.state == Error || r.state == ErrorPending:
		s.notify(r.tokenID, r.state, "row is in an error state")
	case r.state == Ok || r.state == OkPending:
		if r.expiresAt != 0 && r.expiresAt <= now {
			s.notify(r.tokenID, r.state, "token has expired")
		} else if r.warnAt != 0 && r.warnAt <= now {
			s.notify(r.tokenID, r.state, "token is approaching expiry")
		} else {
			return
		}
	default:
		return
	}

	n := now
	r.lastNotificationAt = &n
}
