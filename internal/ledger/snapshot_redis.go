package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key prefix used when none is configured.
const DefaultRedisKey = "identity-ledger"

// RedisSnapshot keeps the ledger in a Redis hash (address -> record JSON) plus
// a list holding the creation order of addresses.
type RedisSnapshot struct {
	client   redis.UniversalClient
	hashKey  string
	orderKey string
}

// NewRedisSnapshot creates a RedisSnapshot under the given key prefix.
func NewRedisSnapshot(client redis.UniversalClient, prefix string) *RedisSnapshot {
	if prefix == "" {
		prefix = DefaultRedisKey
	}
	return &RedisSnapshot{
		client:   client,
		hashKey:  prefix + ":records",
		orderKey: prefix + ":order",
	}
}

// LoadAll implements Snapshot.
func (s *RedisSnapshot) LoadAll(ctx context.Context) ([]Entry, error) {
	order, err := s.client.LRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger order: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	records, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger records: %w", err)
	}

	entries := make([]Entry, 0, len(order))
	for _, addr := range order {
		raw, ok := records[addr]
		if !ok {
			return nil, fmt.Errorf("%w: address %s has no record", ErrCorruptSnapshot, addr)
		}
		e := Entry{Address: addr}
		if err := json.Unmarshal([]byte(raw), &e.Record); err != nil {
			return nil, fmt.Errorf("%w: address %s: %v", ErrCorruptSnapshot, addr, err)
		}
		if err := checkEntry(e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveAll implements Snapshot. Both keys are replaced in a single MULTI/EXEC.
func (s *RedisSnapshot) SaveAll(ctx context.Context, entries []Entry) error {
	order := make([]any, 0, len(entries))
	fields := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", e.Address, err)
		}
		order = append(order, e.Address)
		fields = append(fields, e.Address, string(raw))
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.hashKey, s.orderKey)
		if len(entries) > 0 {
			pipe.HSet(ctx, s.hashKey, fields...)
			pipe.RPush(ctx, s.orderKey, order...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write ledger snapshot to redis: %w", err)
	}
	return nil
}
