// Package cache holds in-progress flow sessions in Redis. A session's answers
// live here until the user explicitly saves; Postgres only ever sees finished
// results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/flow"
)

// DefaultTTL is how long an untouched flow session survives.
const DefaultTTL = 24 * time.Hour

// ErrStateNotFound is returned by Get when no state is cached for the
// session and flow, either because it was never started or because it expired.
var ErrStateNotFound = errors.New("cache: flow state not found")

// FlowStateCache stores one flow.State per (session, flow) pair.
type FlowStateCache interface {
	Get(ctx context.Context, sessionID uuid.UUID, flowID string) (flow.State, error)
	Set(ctx context.Context, sessionID uuid.UUID, state flow.State) error
	Delete(ctx context.Context, sessionID uuid.UUID, flowID string) error
}

type flowStateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFlowStateCache returns a FlowStateCache over client. A non-positive ttl
// uses DefaultTTL.
func NewFlowStateCache(client *redis.Client, ttl time.Duration) FlowStateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &flowStateCache{client: client, ttl: ttl}
}

// Key is the Redis key a session's flow state is stored under.
func Key(sessionID uuid.UUID, flowID string) string {
	return "flowstate:" + sessionID.String() + ":" + flowID
}

func (c *flowStateCache) Get(ctx context.Context, sessionID uuid.UUID, flowID string) (flow.State, error) {
	data, err := c.client.Get(ctx, Key(sessionID, flowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return flow.State{}, ErrStateNotFound
	}
	if err != nil {
		return flow.State{}, fmt.Errorf("cache: get flow state: %w", err)
	}
	var state flow.State
	if err := json.Unmarshal(data, &state); err != nil {
		return flow.State{}, fmt.Errorf("cache: decode flow state: %w", err)
	}
	return state, nil
}

// Set writes state and refreshes its TTL, so an active session never expires
// mid-flow.
func (c *flowStateCache) Set(ctx context.Context, sessionID uuid.UUID, state flow.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cache: encode flow state: %w", err)
	}
	if err := c.client.Set(ctx, Key(sessionID, state.FlowID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set flow state: %w", err)
	}
	return nil
}

func (c *flowStateCache) Delete(ctx context.Context, sessionID uuid.UUID, flowID string) error {
	if err := c.client.Del(ctx, Key(sessionID, flowID)).Err(); err != nil {
		return fmt.Errorf("cache: delete flow state: %w", err)
	}
	return nil
}

// Open parses a redis:// URL, or a bare host:port, and verifies the server
// answers PING.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		opts = &redis.Options{Addr: rawURL}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return client, nil
}
