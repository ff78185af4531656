package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Stats describes the cache contents.
type Stats struct {
	Entries int
	Games   int
	Bytes   int64
}

// Stats counts stored entries and records and their total size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, prefix := range []string{entryPrefix, gamePrefix} {
		keys, err := c.store.Keys(ctx, prefix)
		if err != nil {
			return st, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, k := range keys {
			data, err := c.store.Get(ctx, k)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return st, fmt.Errorf("reading %s: %w", k, err)
			}
			st.Bytes += int64(len(data))
		}
		if prefix == entryPrefix {
			st.Entries = len(keys)
		} else {
			st.Games = len(keys)
		}
	}
	c.stats.SetGauge(stats.MetricCacheEntries, int64(st.Entries))
	return st, nil
}

// VerifyReport lists the results of an integrity scan.
type VerifyReport struct {
	Checked int
	Corrupt []string
	Missing []string
}

// Verify checks every stored entry. With repair set, corrupt entries are
// removed. Missing lists entries without a stored game record.
func (c *Cache) Verify(ctx context.Context, repair bool) (*VerifyReport, error) {
	ids, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := entryKey(id)
		unlock := c.locks.RLock(key)
		raw, err := c.store.Get(ctx, key)
		unlock()
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("reading entry %s: %w", id, err)
		}
		report.Checked++

		if _, derr := c.decodeEntry(id, raw); derr != nil {
			report.Corrupt = append(report.Corrupt, id)
			if repair {
				c.discard(ctx, key, raw, derr)
			}
			continue
		}

		if _, err := c.GetGame(ctx, id); errors.Is(err, ErrNotFound) {
			report.Missing = append(report.Missing, id)
		}
	}
	return report, nil
}
