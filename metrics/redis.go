package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisCollector.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces the counters this collector writes, so
	// several processes can share one Redis instance.
	KeyPrefix string
}

// RedisCollector increments Redis counters for each observation point,
// so several processes can aggregate into one shared backend.
type RedisCollector struct {
	client *redis.Client
	prefix string
}

// NewRedisCollector connects to Redis and verifies reachability with a
// Ping before returning.
func NewRedisCollector(cfg RedisConfig) (*RedisCollector, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("metrics: redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("metrics: failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tokkit:metrics:"
	}

	return &RedisCollector{client: client, prefix: prefix}, nil
}

// Close closes the underlying Redis connection.
func (c *RedisCollector) Close() error {
	return c.client.Close()
}

func (c *RedisCollector) incr(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.client.Incr(ctx, c.prefix+name)
}

func (c *RedisCollector) IncomingIntrospectionRequest() {
	c.incr("incoming_introspection_requests")
}

func (c *RedisCollector) IntrospectionServiceCalled(time.Time) {
	c.incr("introspection_service_called")
}

func (c *RedisCollector) IntrospectionServiceCalledAndFailed(time.Time) {
	c.incr("introspection_service_called_failed")
}

func (c *RedisCollector) IntrospectionServiceCalledSuccessfully(time.Time) {
	c.incr("introspection_service_called_succeeded")
}

func (c *RedisCollector) IntrospectionRequest(time.Time) {
	c.incr("introspection_requests")
}

func (c *RedisCollector) IntrospectionRequestSuccessful(time.Time) {
	c.incr("introspection_requests_succeeded")
}

func (c *RedisCollector) IntrospectionRequestFailed(time.Time) {
	c.incr("introspection_requests_failed")
}

var _ Collector = (*RedisCollector)(nil)
