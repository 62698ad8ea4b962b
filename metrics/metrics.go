// Package metrics defines the pluggable observation points for the
// introspection client plus two ready-made collectors: an
// in-memory one for tests and a Redis-backed one for production use.
package metrics

import "time"

// Collector receives the seven introspection observation points. All
// methods must be safe for concurrent use. The zero-value behavior
// callers want when they don't care about metrics is NoOp.
type Collector interface {
	IncomingIntrospectionRequest()
	IntrospectionServiceCalled(requestStarted time.Time)
	IntrospectionServiceCalledAndFailed(requestStarted time.Time)
	IntrospectionServiceCalledSuccessfully(requestStarted time.Time)
	IntrospectionRequest(requestStarted time.Time)
	IntrospectionRequestSuccessful(requestStarted time.Time)
	IntrospectionRequestFailed(requestStarted time.Time)
}

type noOp struct{}

// NoOp is a Collector whose every method does nothing, the default
// when no Collector is configured.
var NoOp Collector = noOp{}

func (noOp) IncomingIntrospectionRequest()                    {}
func (noOp) IntrospectionServiceCalled(time.Time)             {}
func (noOp) IntrospectionServiceCalledAndFailed(time.Time)    {}
func (noOp) IntrospectionServiceCalledSuccessfully(time.Time) {}
func (noOp) IntrospectionRequest(time.Time)                   {}
func (noOp) IntrospectionRequestSuccessful(time.Time)         {}
func (noOp) IntrospectionRequestFailed(time.Time)             {}
