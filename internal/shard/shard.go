// Package shard defines how store keys are spread across directories.
package shard

// Strategy maps store keys to shard numbers.
type Strategy interface {
	// Name returns a human-readable name for this strategy.
	Name() string

	// ShardID computes the shard for a key. The returned value is in the
	// range [0, totalShards) and depends only on the key.
	ShardID(key string, totalShards int) int
}
