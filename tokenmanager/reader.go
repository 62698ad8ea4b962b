package tokenmanager

import (
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/clock"
)

// Reader looks up cached access tokens. Every call is O(1): a map
// lookup plus a slot-mutex-protected clone; it never blocks on the
// network.
type Reader[T Identifier] struct {
	tm  *tokenMap[T]
	cmd chan<- command
	clk clock.Clock
}

// GetAccessToken returns the currently cached token for id, or the
// reader-visible error describing why none is available.
func (r *Reader[T]) GetAccessToken(id T) (tokkit.AccessToken, error) {
	idx, ok := r.tm.lookup(id)
	if !ok {
		return tokkit.AccessToken{}, tokkit.NewNoTokenError(id.String())
	}
	v := r.tm.slots[idx].get()
	if v.err != nil {
		return tokkit.AccessToken{}, v.err
	}
	return v.token, nil
}

// Refresh enqueues a best-effort ForceRefresh for id and returns
// immediately; send failures are logged, not surfaced.
func (r *Reader[T]) Refresh(id T) {
	idx, ok := r.tm.lookup(id)
	if !ok {
		log.WithField("token_id", id.String()).Warn("tokenmanager: refresh requested for unregistered token id")
		return
	}
	cmd := command{kind: cmdForceRefresh, idx: idx, ts: r.clk.Now()}
	select {
	case r.cmd <- cmd:
	default:
		log.WithField("token_id", id.String()).Warn("tokenmanager: command channel full, force refresh dropped")
	}
}

// Pinned returns a handle fixed to a single token id for the lifetime
// of the handle, convenient when a caller only ever needs one token.
func (r *Reader[T]) Pinned(id T) *PinnedReader[T] {
	return &PinnedReader[T]{reader: r, id: id}
}

// PinnedReader is a Reader fixed to one token id.
type PinnedReader[T Identifier] struct {
	reader *Reader[T]
	id     T
}

// GetAccessToken returns the cached token for the pinned id.
func (p *PinnedReader[T]) GetAccessToken() (tokkit.AccessToken, error) {
	return p.reader.GetAccessToken(p.id)
}

// Refresh force-refreshes the pinned id.
func (p *PinnedReader[T]) Refresh() {
	p.reader.Refresh(p.id)
}
