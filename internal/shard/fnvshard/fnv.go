// Package fnvshard implements FNV-1a hash-based sharding of store keys.
package fnvshard

import "github.com/discochess/coach/internal/shard"

// Ensure Strategy implements shard.Strategy.
var _ shard.Strategy = (*Strategy)(nil)

// Strategy implements FNV-1a hash-based sharding.
type Strategy struct{}

// New creates a new FNV-based sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return "fnv32"
}

// ShardID computes a shard from the FNV-1a hash of the key.
func (s *Strategy) ShardID(key string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	return int(fnv1a32(key) % uint32(totalShards))
}

// fnv1a32 computes the FNV-1a 32-bit hash of a string.
func fnv1a32(s string) uint32 {
	var h uint32 = 2166136261 // FNV offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619 // FNV prime
	}
	return h
}
