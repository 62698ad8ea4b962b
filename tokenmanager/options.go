package tokenmanager

import "github.com/zalando-incubator/tokkit/clock"

// options configures a Manager at Start time.
type options struct {
	clock         clock.Clock
	commandBuffer int
	concurrency   int64
	notify        notifier
}

// Option customizes Manager.Start.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		clock:         clock.System{},
		commandBuffer: 256,
		concurrency:   defaultUpdaterConcurrency,
	}
}

// WithClock injects a Clock, primarily for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCommandBuffer sets the capacity of the scheduler→updater channel.
func WithCommandBuffer(n int) Option {
	return func(o *options) { o.commandBuffer = n }
}

// WithConcurrency bounds how many rows the updater refreshes at once.
func WithConcurrency(n int64) Option {
	return func(o *options) { o.concurrency = n }
}

// WithNotifier registers a callback for user-visible warnings (error
// states, near-expiry, expiry) emitted by the scheduler.
func WithNotifier(fn func(tokenID string, state State, reason string)) Option {
	return func(o *options) { o.notify = notifier(fn) }
}
