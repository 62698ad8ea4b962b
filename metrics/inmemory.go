package metrics

import (
	"sync/atomic"
	"time"
)

// InMemoryCollector counts each observation point with an atomic
// counter. It is primarily useful in tests that want to assert on call
// counts without a real metrics backend.
type InMemoryCollector struct {
	incomingIntrospectionRequests       atomic.Int64
	introspectionServiceCalled          atomic.Int64
	introspectionServiceCalledFailed    atomic.Int64
	introspectionServiceCalledSucceeded atomic.Int64
	introspectionRequests               atomic.Int64
	introspectionRequestsSucceeded      atomic.Int64
	introspectionRequestsFailed         atomic.Int64
}

// NewInMemoryCollector creates a zeroed InMemoryCollector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{}
}

func (c *InMemoryCollector) IncomingIntrospectionRequest() {
	c.incomingIntrospectionRequests.Add(1)
}

func (c *InMemoryCollector) IntrospectionServiceCalled(time.Time) {
	c.introspectionServiceCalled.Add(1)
}

func (c *InMemoryCollector) IntrospectionServiceCalledAndFailed(time.Time) {
	c.introspectionServiceCalledFailed.Add(1)
}

func (c *InMemoryCollector) IntrospectionServiceCalledSuccessfully(time.Time) {
	c.introspectionServiceCalledSucceeded.Add(1)
}

func (c *InMemoryCollector) IntrospectionRequest(time.Time) {
	c.introspectionRequests.Add(1)
}

func (c *InMemoryCollector) IntrospectionRequestSuccessful(time.Time) {
	c.introspectionRequestsSucceeded.Add(1)
}

func (c *InMemoryCollector) IntrospectionRequestFailed(time.Time) {
	c.introspectionRequestsFailed.Add(1)
}

// Snapshot returns the current counter values, keyed by observation
// point name, for assertions in tests.
func (c *InMemoryCollector) Snapshot() map[string]int64 {
	return map[string]int64{
		"incoming_introspection_requests":        c.incomingIntrospectionRequests.Load(),
		"introspection_service_called":           c.introspectionServiceCalled.Load(),
		"introspection_service_called_failed":    c.introspectionServiceCalledFailed.Load(),
		"introspection_service_called_succeeded": c.introspectionServiceCalledSucceeded.Load(),
		"introspection_requests":                 c.introspectionRequests.Load(),
		"introspection_requests_succeeded":       c.introspectionRequestsSucceeded.Load(),
		"introspection_requests_failed":          c.introspectionRequestsFailed.Load(),
	}
}

var _ Collector = (*InMemoryCollector)(nil)
