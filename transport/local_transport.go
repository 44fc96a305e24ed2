package transport

import (
	"fmt"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// LocalTransport is the in-process driver used by tests (§4.1: "an
// in-process equivalent" with "identical semantics"). It runs an embedded
// miniredis server and drives it through the exact same RedisTransport code
// the production driver uses, so there is no separate semantics to drift
// from the real thing.
type LocalTransport struct {
	*RedisTransport
	server *miniredis.Miniredis
}

// NewLocalTransport starts an embedded miniredis instance and returns a
// Transport backed by it. Call Close when done to stop the server.
func NewLocalTransport(logger *slog.Logger) (*LocalTransport, error) {
	server := miniredis.NewMiniRedis()
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return &LocalTransport{
		RedisTransport: newRedisTransport(client, logger),
		server:         server,
	}, nil
}

// Close stops the embedded server. Safe to call multiple times.
func (t *LocalTransport) Close() {
	t.server.Close()
}

// Addr returns the embedded server's listen address, useful for tests that
// want to open a second client against the same in-process broker.
func (t *LocalTransport) Addr() string {
	return t.server.Addr()
}

var _ Transport = (*LocalTransport)(nil)
var _ Transport = (*RedisTransport)(nil)
