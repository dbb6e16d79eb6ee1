package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstream/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Key: key, Err: err}
	}
	return nil
}

// IncrByWithTTL pipelines INCRBY and EXPIRE NX for one key in a single round trip.
func (s *Store) IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	results := s.client.DoMulti(ctx,
		s.b().Incrby().Key(key).Increment(val).Build(),
		s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build(),
	)
	total, err := results[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Key: key, Err: err}
	}
	if err := results[1].Error(); err != nil {
		return total, &db.Error{Op: db.OpExpire, Key: key, Err: err}
	}
	return total, nil
}

// GetInts reads counters with one GET per key, sent as a single pipeline.
// GETs rather than MGET keep keys from different cluster slots readable together.
func (s *Store) GetInts(ctx context.Context, keys ...string) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Get().Key(key).Build()
	}

	out := make([]int64, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		v, err := res.AsInt64()
		switch {
		case rueidis.IsRedisNil(err):
			// absent counter
		case err != nil:
			return nil, &db.Error{Op: db.OpGet, Key: keys[i], Err: fmt.Errorf("counter: %w", err)}
		default:
			out[i] = v
		}
	}
	return out, nil
}
