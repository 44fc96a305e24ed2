package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// RedisTransport is the broker-backed Transport driver. It is safe for
// concurrent use; go-redis pools connections internally.
type RedisTransport struct {
	client  *redis.Client
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
}

// NewRedisTransport dials addr (host:port) with the given database index.
// The circuit breaker wraps XAdd only: it trips after 5 consecutive
// failures and probes again after 10s. Reads (including the persona-wait
// loop's blocking XReadGroup calls) do not go through it.
func NewRedisTransport(addr string, db int, logger *slog.Logger) *RedisTransport {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return newRedisTransport(client, logger)
}

// newRedisTransport wraps an already-configured client; used by
// the local (miniredis-backed) driver so both drivers share one
// implementation and therefore identical semantics.
func newRedisTransport(client *redis.Client, logger *slog.Logger) *RedisTransport {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "transport-redis",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &RedisTransport{client: client, logger: logger, breaker: breaker}
}

func (t *RedisTransport) Connect(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return classifyErr("connect", err)
	}
	return nil
}

func (t *RedisTransport) Disconnect(ctx context.Context) error {
	if err := t.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return classifyErr("disconnect", err)
	}
	return nil
}

func (t *RedisTransport) XAdd(ctx context.Context, stream, id string, fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "", NewError("xadd", KindProtocol, errors.New("fields must be non-empty"))
	}
	if id == "" {
		id = "*"
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			ID:     id,
			Values: values,
		}).Result()
	})
	if err != nil {
		return "", classifyErr("xadd", err)
	}
	return res.(string), nil
}

func (t *RedisTransport) XGroupCreate(ctx context.Context, stream, group, from string, mkstream bool) error {
	if from == "" {
		from = "$"
	}
	var err error
	if mkstream {
		err = t.client.XGroupCreateMkStream(ctx, stream, group, from).Err()
	} else {
		err = t.client.XGroupCreate(ctx, stream, group, from).Err()
	}
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return NewError("xgroupcreate", KindAlreadyExists, err)
		}
		return classifyErr("xgroupcreate", err)
	}
	return nil
}

func (t *RedisTransport) XReadGroup(ctx context.Context, group, consumer string, streams []ReadGroupRequest, count int64, block time.Duration) (map[string][]Message, error) {
	if len(streams) == 0 {
		return nil, NewError("xreadgroup", KindProtocol, errors.New("at least one stream required"))
	}
	args := make([]string, 0, len(streams)*2)
	for _, s := range streams {
		args = append(args, s.Stream)
	}
	for _, s := range streams {
		id := s.ID
		if id == "" {
			id = ">"
		}
		args = append(args, id)
	}

	res, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  args,
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// BLOCK timeout with nothing new: not an error, empty result.
			return map[string][]Message{}, nil
		}
		return nil, classifyErr("xreadgroup", err)
	}

	out := make(map[string][]Message, len(res))
	for _, stream := range res {
		msgs := make([]Message, 0, len(stream.Messages))
		for _, m := range stream.Messages {
			fields := make(map[string]string, len(m.Values))
			for k, v := range m.Values {
				fields[k] = fmt.Sprintf("%v", v)
			}
			msgs = append(msgs, Message{ID: m.ID, Fields: fields})
		}
		out[stream.Stream] = msgs
	}
	return out, nil
}

func (t *RedisTransport) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	n, err := t.client.XAck(ctx, stream, group, ids...).Result()
	if err != nil {
		return 0, classifyErr("xack", err)
	}
	return n, nil
}

func (t *RedisTransport) XRange(ctx context.Context, stream, start, stop string, count int64) ([]Message, error) {
	if start == "" {
		start = "-"
	}
	if stop == "" {
		stop = "+"
	}
	var (
		res []redis.XMessage
		err error
	)
	if count > 0 {
		res, err = t.client.XRangeN(ctx, stream, start, stop, count).Result()
	} else {
		res, err = t.client.XRange(ctx, stream, start, stop).Result()
	}
	if err != nil {
		return nil, classifyErr("xrange", err)
	}
	out := make([]Message, 0, len(res))
	for _, m := range res {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			fields[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, Message{ID: m.ID, Fields: fields})
	}
	return out, nil
}

func (t *RedisTransport) XLen(ctx context.Context, stream string) (int64, error) {
	n, err := t.client.XLen(ctx, stream).Result()
	if err != nil {
		return 0, classifyErr("xlen", err)
	}
	return n, nil
}

func (t *RedisTransport) XPending(ctx context.Context, stream, group string) (*PendingSummary, error) {
	res, err := t.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, classifyErr("xpending", err)
	}
	consumers := make(map[string]int64, len(res.Consumers))
	for name, count := range res.Consumers {
		consumers[name] = count
	}
	return &PendingSummary{
		Count:     res.Count,
		Lowest:    res.Lower,
		Highest:   res.Higher,
		Consumers: consumers,
	}, nil
}

func (t *RedisTransport) XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]Message, error) {
	res, err := t.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, classifyErr("xclaim", err)
	}
	out := make([]Message, 0, len(res))
	for _, m := range res {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			fields[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, Message{ID: m.ID, Fields: fields})
	}
	return out, nil
}

func (t *RedisTransport) Del(ctx context.Context, stream string) error {
	if err := t.client.Del(ctx, stream).Err(); err != nil {
		return classifyErr("del", err)
	}
	return nil
}

func (t *RedisTransport) XInfoGroups(ctx context.Context, stream string) ([]GroupInfo, error) {
	res, err := t.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, classifyErr("xinfogroups", err)
	}
	out := make([]GroupInfo, 0, len(res))
	for _, g := range res {
		out = append(out, GroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		})
	}
	return out, nil
}

// classifyErr maps a go-redis/gobreaker error into our transport.Error kinds.
func classifyErr(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, redis.Nil):
		return NewError(op, KindNotFound, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return NewError(op, KindDisconnected, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(op, KindTimeout, err)
	case strings.Contains(err.Error(), "BUSYGROUP"):
		return NewError(op, KindAlreadyExists, err)
	case strings.Contains(err.Error(), "NOGROUP"), strings.Contains(err.Error(), "no such key"):
		return NewError(op, KindNotFound, err)
	case strings.Contains(err.Error(), "connection"), strings.Contains(err.Error(), "EOF"), strings.Contains(err.Error(), "refused"):
		return NewError(op, KindDisconnected, err)
	case strings.Contains(err.Error(), "i/o timeout"):
		return NewError(op, KindTimeout, err)
	default:
		return NewError(op, KindIO, err)
	}
}
