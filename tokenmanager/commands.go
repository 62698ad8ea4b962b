package tokenmanager

import "github.com/zalando-incubator/tokkit/clock"

// commandKind distinguishes why a refresh was requested, purely for
// logging; all three are handled identically by the updater once the
// row index and timestamp are resolved.
type commandKind int

const (
	cmdScheduledRefresh commandKind = iota
	cmdRefreshOnError
	cmdForceRefresh
)

func (k commandKind) String() string {
	switch k {
	case cmdScheduledRefresh:
		return "ScheduledRefresh"
	case cmdRefreshOnError:
		return "RefreshOnError"
	default:
		return "ForceRefresh"
	}
}

// command is emitted by the scheduler (or a Reader's Refresh call) and
// consumed by the updater. ts is the clock value at emission, used by
// the updater to reject commands a newer refresh has already made
// stale.
type command struct {
	kind commandKind
	idx  int
	ts   clock.Millis
}
