package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstream/internal/db"
)

// HSetAtomic stores every hash inside one MULTI/EXEC on a single connection.
// Redis does not roll back a transaction whose commands fail at runtime, so every
// EXEC reply is inspected and the number of stored items is returned.
// Keys must hash to one slot in cluster mode (use a {tag}).
func (s *Store) HSetAtomic(ctx context.Context, items []db.HashSetItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	cmds := make(rueidis.Commands, 0, len(items)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	if len(results) != len(cmds) {
		return 0, &db.Error{Op: db.OpExec, Err: fmt.Errorf("expected %d replies, got %d", len(cmds), len(results))}
	}

	// EXEC fails as a whole on EXECABORT or transport error: nothing was applied.
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpExec, Err: err}
	}

	written := 0
	var firstErr error
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			if firstErr == nil && i < len(items) {
				firstErr = fmt.Errorf("key %s: %w", items[i].Key, err)
			}
			continue
		}
		written++
	}
	if firstErr == nil && written < len(items) {
		firstErr = fmt.Errorf("expected %d EXEC replies, got %d", len(items), len(replies))
	}
	if firstErr != nil {
		return written, &db.Error{Op: db.OpHSet, Err: firstErr}
	}
	return written, nil
}
