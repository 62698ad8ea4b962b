package tokenmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/clock"
)

// pollInterval is how often StartAndWait polls the map for completion.
const pollInterval = 10 * time.Millisecond

// Manager owns the scheduler and updater goroutines for one set of
// token groups. Obtain a Reader from it to look up tokens; call Close
// when the manager is no longer needed.
type Manager[T Identifier] struct {
	tm     *tokenMap[T]
	clk    clock.Clock
	cmd    chan command
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Start validates that every token id is unique, builds the rows and
// slots, and spawns the scheduler and updater goroutines.
func Start[T Identifier](groups []ManagedTokenGroup[T], opts ...Option) (*Manager[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	tm, err := newTokenMap(groups)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := make(chan command, o.commandBuffer)

	m := &Manager[T]{tm: tm, clk: o.clock, cmd: cmd, cancel: cancel}

	sched := newScheduler[T](tm, o.clock, cmd, o.notify)
	upd := newUpdater[T](tm, o.clock, cmd, o.concurrency)

	m.wg.Add(2)
	go sched.run(ctx, &m.wg)
	go upd.run(ctx, &m.wg)

	return m, nil
}

// StartAndWait additionally blocks until every managed token has
// completed its first refresh (successfully or not), or returns an
// error if timeout elapses first.
func StartAndWait[T Identifier](groups []ManagedTokenGroup[T], timeout time.Duration, opts ...Option) (*Manager[T], error) {
	m, err := Start(groups, opts...)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		if m.allInitialized() {
			return m, nil
		}
		if time.Now().After(deadline) {
			m.Close()
			return nil, fmt.Errorf("tokenmanager: timed out waiting for initial refresh after %s", timeout)
		}
		time.Sleep(pollInterval)
	}
}

func (m *Manager[T]) allInitialized() bool {
	for _, s := range m.tm.slots {
		v := s.get()
		if v.err != nil && tokkit.IsNotInitialized(v.err) {
			return false
		}
	}
	return true
}

// Reader returns a handle for looking up cached tokens. Reader handles
// are cheap; share the Manager or call Reader() repeatedly as needed.
func (m *Manager[T]) Reader() *Reader[T] {
	return &Reader[T]{tm: m.tm, cmd: m.cmd, clk: m.clk}
}

// Close stops the scheduler and updater and waits for them to exit.
func (m *Manager[T]) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

// Status is a snapshot of one managed token's state, keyed by its
// string identifier, for surfaces that can't reference the concrete
// Identifier type parameter (e.g. an HTTP handler).
type Status struct {
	TokenID   string `json:"token_id"`
	State     string `json:"state"`
	HasToken  bool   `json:"has_token"`
	LastError string `json:"last_error,omitempty"`
}

// Statuses returns a Status for every managed token, in registration
// order.
func (m *Manager[T]) Statuses() []Status {
	out := make([]Status, 0, len(m.tm.rows))
	for i, r := range m.tm.rows {
		r.mu.Lock()
		state := r.state
		tokenID := r.tokenID
		r.mu.Unlock()

		v := m.tm.slots[i].get()
		st := Status{TokenID: tokenID, State: state.String(), HasToken: v.err == nil}
		if v.err != nil {
			st.LastError = v.err.Error()
		}
		out = append(out, st)
	}
	return out
}

// RefreshByString enqueues a best-effort ForceRefresh for the token
// whose String() matches id, returning false if no such token is
// registered.
func (m *Manager[T]) RefreshByString(id string) bool {
	for i, r := range m.tm.rows {
		r.mu.Lock()
		tokenID := r.tokenID
		r.mu.Unlock()
		if tokenID != id {
			continue
		}
		cmd := command{kind: cmdForceRefresh, idx: i, ts: m.clk.Now()}
		select {
		case m.cmd <- cmd:
		default:
			log.WithField("token_id", id).Warn("tokenmanager: command channel full, force refresh dropped")
		}
		return true
	}
	return false
}
